// Package nodesource lists and watches cluster nodes, translating the
// Kubernetes wire representation into the domain's node.Node.
package nodesource

import (
	"context"

	"github.com/magicorntech/epictetus/internal/node"
)

// EventKind is the kind of node watch event delivered to a callback.
type EventKind string

const (
	Added    EventKind = "Added"
	Modified EventKind = "Modified"
	Deleted  EventKind = "Deleted"
)

// EventHandler is invoked for node events the source judges relevant to
// DNS convergence (see Source.WatchNodes).
type EventHandler func(kind EventKind, n node.Node)

// Source lists cluster nodes and streams add/modify/delete events.
// The Kubernetes implementation retries a failed ListNodes with a fixed
// wait (three attempts, 2 seconds apart, unless configured otherwise);
// WatchNodes reconnects internally on transient stream errors with a
// 5-second back-off until the context is cancelled.
type Source interface {
	ListNodes(ctx context.Context) ([]node.Node, error)
	WatchNodes(ctx context.Context, onEvent EventHandler)
}
