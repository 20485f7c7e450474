// Package scheduler drives periodic full reconciliation, health
// checks, and log bookkeeping, and coordinates ordered shutdown with
// the node watch stream.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/magicorntech/epictetus/internal/node"
	"github.com/magicorntech/epictetus/internal/nodesource"
	"github.com/magicorntech/epictetus/internal/reconciler"
)

// Scheduler owns the watch goroutine and the cron-driven periodic jobs.
// Only one fullSync is ever in flight; the reconciler itself enforces
// that via its reconcile mutex, so the cron jobs here do not need their
// own overlap guard.
type Scheduler struct {
	Reconciler *reconciler.Reconciler
	Nodes      nodesource.Source
	Logger     *zap.SugaredLogger

	SyncInterval   time.Duration
	HealthInterval time.Duration

	cron       *cron.Cron
	watchDone  chan struct{}
	cancelFunc context.CancelFunc
}

func (s *Scheduler) logger() *zap.SugaredLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop().Sugar()
}

// Start begins the node watch and schedules the fullSync, healthCheck,
// and cleanup jobs. It returns once everything is registered; the
// watch and the cron jobs run on their own goroutines until Shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	watchCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.watchDone = make(chan struct{})

	go func() {
		defer close(s.watchDone)
		s.Nodes.WatchNodes(watchCtx, func(kind nodesource.EventKind, n node.Node) {
			s.Reconciler.OnNodeEvent(watchCtx, kind, n)
		})
	}()

	s.cron = cron.New(cron.WithSeconds())
	syncSeconds := int(s.SyncInterval.Seconds())
	healthSeconds := int(s.HealthInterval.Seconds())

	s.mustAddJob(fullSyncSpec(syncSeconds), func() { s.runFullSync(ctx) })
	s.mustAddJob(healthCheckSpec(healthSeconds), func() { s.runHealthCheck(ctx) })
	s.mustAddJob("0 0 * * * *", s.runCleanup)

	s.cron.Start()
	s.logger().Infow("scheduler started", "sync_interval", s.SyncInterval, "health_interval", s.HealthInterval)
}

func (s *Scheduler) mustAddJob(spec string, job func()) {
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		// A malformed spec here is a programmer error (the specs are
		// computed from validated config), not a runtime condition.
		panic("scheduler: invalid cron spec " + spec + ": " + err.Error())
	}
}

func fullSyncSpec(seconds int) string {
	if seconds <= 0 {
		seconds = 60
	}
	return "@every " + time.Duration(seconds*int(time.Second)).String()
}

func healthCheckSpec(seconds int) string {
	if seconds <= 0 {
		seconds = 30
	}
	return "@every " + time.Duration(seconds*int(time.Second)).String()
}

func (s *Scheduler) runFullSync(ctx context.Context) {
	s.logger().Info("starting scheduled dns synchronization")
	report := s.Reconciler.FullReconcile(ctx)
	if len(report.Errors) > 0 {
		s.logger().Warnw("dns synchronization completed with errors",
			"errors", report.Errors, "duration_seconds", report.DurationSeconds)
		return
	}
	s.logger().Infow("completed scheduled dns synchronization",
		"duration_seconds", report.DurationSeconds,
		"nodes_checked", report.NodesChecked,
		"records_created", report.RecordsCreated,
		"records_deleted", report.RecordsDeleted)
}

// runHealthCheck probes both substrates directly and records the
// results, which is what makes HealthSnapshot (and /readyz) reflect
// reality rather than the all-zero-value default forever.
func (s *Scheduler) runHealthCheck(ctx context.Context) {
	dnsStatus := s.Reconciler.DNS.HealthCheck(ctx)
	s.Reconciler.RecordDNSHealth(dnsStatus)

	_, err := s.Nodes.ListNodes(ctx)
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	s.Reconciler.RecordNodeSourceHealth(err == nil, detail)

	status := s.Reconciler.HealthSnapshot()
	if status.Overall != reconciler.Healthy {
		s.logger().Warnw("health check indicates issues",
			"overall", status.Overall, "node_source", status.NodeSource, "dns_provider", status.DNSProvider)
		return
	}
	s.logger().Debugw("health check passed", "overall", status.Overall)
}

// runCleanup is defensive: both ring buffers already enforce their caps
// on append, so this job only logs current sizes.
func (s *Scheduler) runCleanup() {
	events := len(s.Reconciler.RecentEvents(1000))
	reports := len(s.Reconciler.RecentReports(100))
	s.logger().Infow("cleanup completed", "events_count", events, "reports_count", reports)
}

// Shutdown stops the node watch first, then the cron jobs, waiting for
// any in-flight job to finish.
func (s *Scheduler) Shutdown() {
	if s.cancelFunc != nil {
		s.cancelFunc()
		<-s.watchDone
	}
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
	}
}
