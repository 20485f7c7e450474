// Package fake provides an in-memory nodesource.Source for tests, along
// with an Emit helper that runs events through the same relevance filter
// the production watch loop uses.
package fake

import (
	"context"
	"sync"

	"github.com/magicorntech/epictetus/internal/node"
	"github.com/magicorntech/epictetus/internal/nodesource"
)

// Source is a mutable, thread-safe stand-in for a live node list+watch.
type Source struct {
	DeletionTaints node.DeletionTaintSet

	mu       sync.Mutex
	nodes    map[string]node.Node
	handlers []nodesource.EventHandler
}

var _ nodesource.Source = (*Source)(nil)

// NewSource constructs an empty fake Source.
func NewSource(set node.DeletionTaintSet) *Source {
	return &Source{DeletionTaints: set, nodes: map[string]node.Node{}}
}

// SetNodes replaces the full node set without emitting watch events —
// use for fullReconcile/listNodes scenarios.
func (s *Source) SetNodes(nodes ...node.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]node.Node, len(nodes))
	for _, n := range nodes {
		s.nodes[n.Name] = n
	}
}

// ListNodes returns the current node set.
func (s *Source) ListNodes(_ context.Context) ([]node.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]node.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out, nil
}

// WatchNodes registers onEvent to be called by Emit.
func (s *Source) WatchNodes(ctx context.Context, onEvent nodesource.EventHandler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, onEvent)
	s.mu.Unlock()
	<-ctx.Done()
}

// Emit simulates a single watch event arriving for n, applying the same
// relevance filter the production source applies, and updates the fake's
// node cache accordingly. It returns whether a handler was invoked.
func (s *Source) Emit(kind nodesource.EventKind, n node.Node) bool {
	s.mu.Lock()
	old, hadOld := s.nodes[n.Name]
	if kind == nodesource.Deleted {
		delete(s.nodes, n.Name)
	} else {
		s.nodes[n.Name] = n
	}
	handlers := append([]nodesource.EventHandler(nil), s.handlers...)
	set := s.DeletionTaints
	s.mu.Unlock()

	triggered := false
	switch kind {
	case nodesource.Added:
		triggered = n.Departing(set)
	case nodesource.Modified:
		triggered = hadOld && !old.Departing(set) && n.Departing(set)
	case nodesource.Deleted:
		triggered = hadOld && old.Departing(set)
	}
	if !triggered {
		return false
	}
	for _, h := range handlers {
		h(kind, n)
	}
	return true
}
