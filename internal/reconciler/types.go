// Package reconciler merges node state and DNS intents into a desired
// record set, diffs it against provider truth, and issues the creates
// and deletes needed to converge. It is the component the rest of the
// system exists to serve.
package reconciler

import "time"

// EventKind classifies a ManagementEvent.
type EventKind string

const (
	NodeAdded           EventKind = "NodeAdded"
	NodeBecameDeparting EventKind = "NodeBecameDeparting"
	NodeRemoved         EventKind = "NodeRemoved"
	NodeEventFailed     EventKind = "NodeEventFailed"
)

// ManagementEvent is one entry in the bounded event log — a record of a
// single node-lifecycle transition the reconciler acted, or declined to
// act, on.
type ManagementEvent struct {
	ID              uint64
	Kind            EventKind
	Timestamp       time.Time
	NodeName        string
	NodeIP          string
	IntentsSnapshot int
	AffectedRecords int
	Success         bool
	ErrorMessage    string
	Metadata        map[string]string
}

// SyncReport summarizes one fullReconcile pass.
type SyncReport struct {
	Timestamp       time.Time
	NodesChecked    int
	NodesDeparting  int
	IntentsChecked  int
	RecordsFound    int
	RecordsCreated  int
	RecordsDeleted  int
	Errors          []string
	DurationSeconds float64
}

// SubsystemHealth is a single substrate's last-known health.
type SubsystemHealth struct {
	Healthy   bool
	CheckedAt time.Time
	Detail    string
}

// OverallHealth is the aggregate of every substrate health check: healthy
// iff every substrate is healthy, degraded iff at least one substrate
// check still succeeds, unhealthy iff none do.
type OverallHealth string

const (
	Healthy   OverallHealth = "healthy"
	Degraded  OverallHealth = "degraded"
	Unhealthy OverallHealth = "unhealthy"
)

// HealthStatus is the aggregate view exposed to the HTTP reporter.
type HealthStatus struct {
	Overall      OverallHealth
	NodeSource   SubsystemHealth
	DNSProvider  SubsystemHealth
	LastSyncTime time.Time
}
