// Package events defines the controller's event vocabulary and the
// Recorder interface used to publish it, independent of transport.
package events

import (
	"fmt"

	"k8s.io/client-go/util/flowcontrol"
)

// ObjectRef identifies the Kubernetes object an Event is about without
// forcing callers to hold a live API object — the reconciler only ever
// knows a node or service by name.
type ObjectRef struct {
	Kind      string
	Namespace string
	Name      string
}

const (
	KindNode    = "Node"
	KindService = "Service"
)

// Event is a transport-agnostic description of a controller event.
// DedupeValues lets a Recorder suppress repeats the way client-go's
// EventBroadcaster already does for identical (reason, message) pairs
// on the same object.
type Event struct {
	InvolvedObject ObjectRef
	Type           string
	Reason         string
	Message        string
	DedupeValues   []string
	RateLimiter    flowcontrol.RateLimiter
}

const (
	TypeNormal  = "Normal"
	TypeWarning = "Warning"
)

// Recorder publishes Events. Nil-safe implementations are expected —
// a controller run without a Kubernetes client still logs events.
type Recorder interface {
	Publish(evt Event)
}

// nodeEventRateLimiter caps noisy per-node events (a flapping node
// toggling eligibility) the way the teacher caps pod nomination events.
var nodeEventRateLimiter = flowcontrol.NewTokenBucketRateLimiter(5, 10)

// NodeAdvertisable fires when a node transitions into the advertisable
// set and becomes eligible for DNS membership.
func NodeAdvertisable(nodeName string) Event {
	return Event{
		InvolvedObject: ObjectRef{Kind: KindNode, Name: nodeName},
		Type:           TypeNormal,
		Reason:         "Advertisable",
		Message:        fmt.Sprintf("node %s is advertisable", nodeName),
		DedupeValues:   []string{nodeName},
		RateLimiter:    nodeEventRateLimiter,
	}
}

// NodeDeparting fires when a node transitions into the departing set
// (deletion taints applied); the watch handler that publishes it then
// withdraws the node's records right away.
func NodeDeparting(nodeName string) Event {
	return Event{
		InvolvedObject: ObjectRef{Kind: KindNode, Name: nodeName},
		Type:           TypeNormal,
		Reason:         "Departing",
		Message:        fmt.Sprintf("node %s is departing, scheduling dns removal", nodeName),
		DedupeValues:   []string{nodeName},
		RateLimiter:    nodeEventRateLimiter,
	}
}

// NodeRemoved fires when a departed node is deleted from the cluster.
func NodeRemoved(nodeName string) Event {
	return Event{
		InvolvedObject: ObjectRef{Kind: KindNode, Name: nodeName},
		Type:           TypeNormal,
		Reason:         "Removed",
		Message:        fmt.Sprintf("node %s removed from cluster", nodeName),
		DedupeValues:   []string{nodeName},
	}
}

// NodeEventFailed fires when a watch-driven node event's provider calls
// could not all complete.
func NodeEventFailed(nodeName string, err error) Event {
	return Event{
		InvolvedObject: ObjectRef{Kind: KindNode, Name: nodeName},
		Type:           TypeWarning,
		Reason:         "EventHandlingFailed",
		Message:        fmt.Sprintf("failed to fully process node event for %s: %s", nodeName, err),
		DedupeValues:   []string{nodeName, err.Error()},
	}
}

// RecordCreated fires for every A record the reconciler creates.
func RecordCreated(namespace, name, hostname, ip string) Event {
	return Event{
		InvolvedObject: ObjectRef{Kind: KindService, Namespace: namespace, Name: name},
		Type:           TypeNormal,
		Reason:         "RecordCreated",
		Message:        fmt.Sprintf("created A record %s -> %s", hostname, ip),
		DedupeValues:   []string{hostname, ip},
	}
}

// RecordDeleted fires for every A record the reconciler removes.
func RecordDeleted(namespace, name, hostname, ip string) Event {
	return Event{
		InvolvedObject: ObjectRef{Kind: KindService, Namespace: namespace, Name: name},
		Type:           TypeNormal,
		Reason:         "RecordDeleted",
		Message:        fmt.Sprintf("deleted A record %s -> %s", hostname, ip),
		DedupeValues:   []string{hostname, ip},
	}
}

// SyncFailed fires when a hostname's sync could not complete.
func SyncFailed(namespace, name, hostname string, err error) Event {
	return Event{
		InvolvedObject: ObjectRef{Kind: KindService, Namespace: namespace, Name: name},
		Type:           TypeWarning,
		Reason:         "SyncFailed",
		Message:        fmt.Sprintf("failed to sync %s: %s", hostname, err),
		DedupeValues:   []string{hostname, err.Error()},
	}
}

// ZoneNotFound fires when an intent's hostname matches no configured
// zone and is therefore permanently unsyncable until corrected.
func ZoneNotFound(namespace, name, hostname string) Event {
	return Event{
		InvolvedObject: ObjectRef{Kind: KindService, Namespace: namespace, Name: name},
		Type:           TypeWarning,
		Reason:         "ZoneNotFound",
		Message:        fmt.Sprintf("no configured zone matches hostname %s", hostname),
		DedupeValues:   []string{hostname},
	}
}
