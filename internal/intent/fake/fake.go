// Package fake provides an in-memory intent.Source for tests.
package fake

import (
	"context"
	"sync"

	"github.com/magicorntech/epictetus/internal/intent"
)

// Source is a mutable, thread-safe stand-in for a live Kubernetes
// service-annotation listing.
type Source struct {
	mu      sync.RWMutex
	intents []intent.Intent
}

var _ intent.Source = (*Source)(nil)

// Set replaces the current set of intents returned by ListIntents.
func (s *Source) Set(intents ...intent.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append([]intent.Intent(nil), intents...)
}

// ListIntents returns a copy of the current intent set.
func (s *Source) ListIntents(_ context.Context) ([]intent.Intent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]intent.Intent(nil), s.intents...), nil
}
