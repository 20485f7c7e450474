package reconciler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/magicorntech/epictetus/internal/dnsprovider"
	"github.com/magicorntech/epictetus/internal/events"
	"github.com/magicorntech/epictetus/internal/intent"
	"github.com/magicorntech/epictetus/internal/metrics"
	"github.com/magicorntech/epictetus/internal/node"
	"github.com/magicorntech/epictetus/internal/nodesource"
)

const (
	eventLogCapacity  = 1000
	reportLogCapacity = 100
)

// Reconciler merges Node Source and Intent Source state into a desired
// DNS record set and converges the DNS Provider toward it. It is safe
// for concurrent use: onNodeEvent may run concurrently with
// FullReconcile, but at most one FullReconcile runs at a time.
type Reconciler struct {
	Nodes     nodesource.Source
	DNS       dnsprovider.Provider
	Intents   intent.Source
	Recorder  events.Recorder
	Logger    *zap.SugaredLogger
	Deletions node.DeletionTaintSet

	events  *ringBuffer[ManagementEvent]
	reports *ringBuffer[SyncReport]
	eventID atomic.Uint64

	reconcileMu sync.Mutex
	pending     atomic.Bool

	healthMu   sync.RWMutex
	nodeHealth SubsystemHealth
	dnsHealth  SubsystemHealth
	lastSync   time.Time

	advertisedMu    sync.Mutex
	advertisedNodes map[string]struct{}
}

// New constructs a Reconciler with its ring buffers initialized to the
// fixed capacities spec'd for the event and report logs.
func New(nodes nodesource.Source, dns dnsprovider.Provider, intents intent.Source, recorder events.Recorder, logger *zap.SugaredLogger, deletions node.DeletionTaintSet) *Reconciler {
	return &Reconciler{
		Nodes:           nodes,
		DNS:             dns,
		Intents:         intents,
		Recorder:        recorder,
		Logger:          logger,
		Deletions:       deletions,
		events:          newRingBuffer[ManagementEvent](eventLogCapacity),
		reports:         newRingBuffer[SyncReport](reportLogCapacity),
		advertisedNodes: make(map[string]struct{}),
	}
}

func (r *Reconciler) logger() *zap.SugaredLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop().Sugar()
}

func (r *Reconciler) appendEvent(e ManagementEvent) {
	e.ID = r.eventID.Add(1)
	e.Timestamp = timeNow()
	r.events.Append(e)
}

// RecentEvents returns the last n entries of the event log, oldest first.
func (r *Reconciler) RecentEvents(n int) []ManagementEvent { return r.events.Tail(n) }

// RecentReports returns the last n entries of the report log, oldest first.
func (r *Reconciler) RecentReports(n int) []SyncReport { return r.reports.Tail(n) }

// OnNodeEvent is the event-driven path: it reacts only to the
// transitions the node source already filtered for relevance (entry
// into Departing, or deletion of an already-departing node).
func (r *Reconciler) OnNodeEvent(ctx context.Context, kind nodesource.EventKind, n node.Node) {
	metrics.NodeEventsTotal.WithLabelValues(string(kind)).Inc()
	switch kind {
	case nodesource.Added:
		r.handleAdded(n)
	case nodesource.Modified:
		r.handleBecameDeparting(ctx, n)
	case nodesource.Deleted:
		r.handleRemoved(ctx, n)
	}
}

func (r *Reconciler) handleAdded(n node.Node) {
	if n.ExternalIP == "" {
		r.appendEvent(ManagementEvent{Kind: NodeAdded, NodeName: n.Name, Success: true, ErrorMessage: "node has no external ip"})
		return
	}
	// Entry into Departing is the only Added transition the source
	// forwards; advertisable adds wait for the next periodic sweep.
	r.appendEvent(ManagementEvent{Kind: NodeAdded, NodeName: n.Name, NodeIP: n.ExternalIP, Success: true})
}

func (r *Reconciler) handleBecameDeparting(ctx context.Context, n node.Node) {
	r.Recorder.Publish(events.NodeDeparting(n.Name))
	if n.ExternalIP == "" {
		r.appendEvent(ManagementEvent{Kind: NodeBecameDeparting, NodeName: n.Name, Success: true, ErrorMessage: "node has no external ip"})
		return
	}

	intents, err := r.Intents.ListIntents(ctx)
	if err != nil {
		r.failNodeEvent(NodeBecameDeparting, n, err)
		return
	}

	affected, err := r.withdrawIP(ctx, intents, n.ExternalIP)
	if err != nil {
		r.failNodeEvent(NodeBecameDeparting, n, err)
		return
	}
	r.appendEvent(ManagementEvent{
		Kind: NodeBecameDeparting, NodeName: n.Name, NodeIP: n.ExternalIP,
		IntentsSnapshot: len(intents), AffectedRecords: affected, Success: true,
	})
}

func (r *Reconciler) handleRemoved(ctx context.Context, n node.Node) {
	if n.ExternalIP == "" {
		r.appendEvent(ManagementEvent{Kind: NodeRemoved, NodeName: n.Name, Success: true, ErrorMessage: "node has no external ip"})
		return
	}

	intents, err := r.Intents.ListIntents(ctx)
	if err != nil {
		r.failNodeEvent(NodeRemoved, n, err)
		return
	}

	affected, err := r.withdrawIP(ctx, intents, n.ExternalIP)
	if err != nil {
		r.failNodeEvent(NodeRemoved, n, err)
		return
	}
	r.appendEvent(ManagementEvent{
		Kind: NodeRemoved, NodeName: n.Name, NodeIP: n.ExternalIP,
		IntentsSnapshot: len(intents), AffectedRecords: affected, Success: true,
	})
}

func (r *Reconciler) failNodeEvent(kind EventKind, n node.Node, err error) {
	r.logger().Errorw("node event handling failed", "node", n.Name, "kind", kind, "error", err)
	r.Recorder.Publish(events.NodeEventFailed(n.Name, err))
	r.appendEvent(ManagementEvent{Kind: NodeEventFailed, NodeName: n.Name, NodeIP: n.ExternalIP, Success: false, ErrorMessage: err.Error()})
}

// withdrawIP removes ip from every intent's hostname, returning the
// total number of records deleted.
func (r *Reconciler) withdrawIP(ctx context.Context, intents []intent.Intent, ip string) (int, error) {
	var errs error
	total := 0
	for _, i := range intents {
		deleted, err := r.DNS.DeleteRecordsByIP(ctx, i.Hostname, ip)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("withdrawing %s from %s, %w", ip, i.Hostname, err))
			continue
		}
		total += len(deleted)
		for range deleted {
			r.Recorder.Publish(events.RecordDeleted(i.ServiceNamespace, i.ServiceName, i.Hostname, ip))
		}
	}
	return total, errs
}

// FullReconcile performs one convergence pass. Concurrent callers
// coalesce: if a sweep is already running, this call marks pending,
// which makes the running caller sweep once more, then waits for it to
// finish and returns the most recent report without sweeping itself.
func (r *Reconciler) FullReconcile(ctx context.Context) SyncReport {
	if !r.reconcileMu.TryLock() {
		r.pending.Store(true)
		// Another goroutine owns the sweep; wait for it to finish and
		// hand back its result rather than running a second pass.
		r.reconcileMu.Lock()
		r.reconcileMu.Unlock()
		reports := r.reports.Tail(1)
		if len(reports) == 1 {
			return reports[0]
		}
		return SyncReport{Timestamp: timeNow()}
	}
	defer r.reconcileMu.Unlock()

	for {
		report := r.runSweep(ctx)
		r.reports.Append(report)

		r.healthMu.Lock()
		r.lastSync = report.Timestamp
		r.healthMu.Unlock()

		result := "success"
		if len(report.Errors) > 0 {
			result = "error"
		}
		metrics.ReconcileTotal.WithLabelValues(result).Inc()
		metrics.ReconcileDuration.WithLabelValues().Observe(report.DurationSeconds)
		metrics.RecordsCreatedTotal.Add(float64(report.RecordsCreated))
		metrics.RecordsDeletedTotal.Add(float64(report.RecordsDeleted))

		if !r.pending.CompareAndSwap(true, false) {
			return report
		}
		// Another FullReconcile call arrived mid-sweep; converge again
		// immediately rather than waiting for the next scheduled tick.
		// OnNodeEvent does not set pending.
	}
}

func (r *Reconciler) runSweep(ctx context.Context) SyncReport {
	start := timeNow()
	report := SyncReport{Timestamp: start}

	intents, err := r.Intents.ListIntents(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("listing intents, %s", err))
		report.DurationSeconds = timeNow().Sub(start).Seconds()
		return report
	}

	nodes, err := r.Nodes.ListNodes(ctx)
	if err != nil {
		// A sweep that cannot see fresh cluster truth must not touch the
		// provider at all.
		report.Errors = append(report.Errors, fmt.Sprintf("listing nodes, %s", err))
		report.DurationSeconds = timeNow().Sub(start).Seconds()
		return report
	}

	advertisable, departing := partition(nodes, r.Deletions)
	validIPs := make(map[string]struct{}, len(advertisable))
	for _, n := range advertisable {
		validIPs[n.ExternalIP] = struct{}{}
	}

	report.NodesChecked = len(nodes)
	report.NodesDeparting = len(departing)
	report.IntentsChecked = len(intents)
	metrics.NodesAdvertisable.Set(float64(len(advertisable)))
	metrics.NodesDeparting.Set(float64(len(departing)))

	for _, n := range r.trackAdvertised(advertisable) {
		r.Recorder.Publish(events.NodeAdvertisable(n.Name))
	}

	r.warnOnConflictingIntents(intents)

	for _, i := range intents {
		r.syncIntent(ctx, i, validIPs, &report)
	}

	report.DurationSeconds = timeNow().Sub(start).Seconds()
	return report
}

// syncIntent implements the delete-before-create contract for a single
// Intent: syncHostname removes records for stale IPs, then any
// advertisable IP missing from the current set is created.
func (r *Reconciler) syncIntent(ctx context.Context, i intent.Intent, validIPs map[string]struct{}, report *SyncReport) {
	if _, err := r.DNS.ResolveZone(ctx, i.Hostname); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("resolving zone for %s, %s", i.Hostname, err))
		r.Recorder.Publish(events.ZoneNotFound(i.ServiceNamespace, i.ServiceName, i.Hostname))
		return
	}

	syncResult, err := r.DNS.SyncHostname(ctx, i.Hostname, validIPs)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("syncing %s, %s", i.Hostname, err))
		r.Recorder.Publish(events.SyncFailed(i.ServiceNamespace, i.ServiceName, i.Hostname, err))
		return
	}
	report.RecordsDeleted += syncResult.Deleted
	for _, syncErr := range syncResult.Errors {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", i.Hostname, syncErr))
	}

	current, err := r.DNS.ListRecords(ctx, i.Hostname)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("listing records for %s, %s", i.Hostname, err))
		return
	}
	report.RecordsFound += len(current)

	currentIPs := make(map[string]struct{}, len(current))
	for _, rec := range current {
		currentIPs[rec.IP] = struct{}{}
	}

	for ip := range validIPs {
		if _, ok := currentIPs[ip]; ok {
			continue
		}
		if _, err := r.DNS.CreateRecord(ctx, i.Hostname, ip, i.TTL, i.Proxied); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("creating %s -> %s, %s", i.Hostname, ip, err))
			continue
		}
		report.RecordsCreated++
		r.Recorder.Publish(events.RecordCreated(i.ServiceNamespace, i.ServiceName, i.Hostname, ip))
	}
}

// trackAdvertised diffs advertisable against the set remembered from the
// previous sweep and returns the nodes that are newly advertisable.
// NodeAdvertisable is only ever emitted here, on the sweep following a
// node's entry into the advertisable set, never from the watch path.
func (r *Reconciler) trackAdvertised(advertisable []node.Node) []node.Node {
	r.advertisedMu.Lock()
	defer r.advertisedMu.Unlock()

	next := make(map[string]struct{}, len(advertisable))
	var newly []node.Node
	for _, n := range advertisable {
		next[n.Name] = struct{}{}
		if _, already := r.advertisedNodes[n.Name]; !already {
			newly = append(newly, n)
		}
	}
	r.advertisedNodes = next
	return newly
}

// warnOnConflictingIntents logs at most one WARN per sweep, for the
// first hostname shared by two enabled Intents that disagree on ttl or
// proxied. Intents are otherwise "last writer wins"; this is
// observability only, not a behavior change.
func (r *Reconciler) warnOnConflictingIntents(intents []intent.Intent) {
	seen := make(map[string]intent.Intent, len(intents))
	for _, i := range intents {
		prior, ok := seen[i.Hostname]
		if !ok {
			seen[i.Hostname] = i
			continue
		}
		if prior.TTL != i.TTL || prior.Proxied != i.Proxied {
			r.logger().Warnw("conflicting intents for hostname",
				"hostname", i.Hostname,
				"first_service", prior.ServiceNamespace+"/"+prior.ServiceName,
				"conflicting_service", i.ServiceNamespace+"/"+i.ServiceName)
			return
		}
	}
}

func partition(nodes []node.Node, set node.DeletionTaintSet) (advertisable, departing []node.Node) {
	for _, n := range nodes {
		if n.Departing(set) {
			departing = append(departing, n)
			continue
		}
		if n.Advertisable(set) {
			advertisable = append(advertisable, n)
		}
	}
	return advertisable, departing
}

// HealthSnapshot reports the last-known health of both substrates,
// computed fresh from the most recent checks rather than cached as an
// aggregate.
func (r *Reconciler) HealthSnapshot() HealthStatus {
	r.healthMu.RLock()
	defer r.healthMu.RUnlock()

	status := HealthStatus{NodeSource: r.nodeHealth, DNSProvider: r.dnsHealth, LastSyncTime: r.lastSync}
	switch {
	case r.nodeHealth.Healthy && r.dnsHealth.Healthy:
		status.Overall = Healthy
	case r.nodeHealth.Healthy || r.dnsHealth.Healthy:
		status.Overall = Degraded
	default:
		status.Overall = Unhealthy
	}
	return status
}

// RecordDNSHealth updates the cached DNS Provider health check result.
func (r *Reconciler) RecordDNSHealth(status dnsprovider.HealthStatus) {
	r.healthMu.Lock()
	defer r.healthMu.Unlock()
	detail := ""
	if status.Error != nil {
		detail = status.Error.Error()
	}
	r.dnsHealth = SubsystemHealth{Healthy: status.Healthy, CheckedAt: timeNow(), Detail: detail}
}

// RecordNodeSourceHealth updates the cached Node Source health check result.
func (r *Reconciler) RecordNodeSourceHealth(healthy bool, detail string) {
	r.healthMu.Lock()
	defer r.healthMu.Unlock()
	r.nodeHealth = SubsystemHealth{Healthy: healthy, CheckedAt: timeNow(), Detail: detail}
}

var timeNow = time.Now
