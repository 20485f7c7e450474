/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics declares the controller's Prometheus instrumentation.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	Namespace = "epictetus"

	reconcileSubsystem = "reconcile"
	recordSubsystem    = "records"
	nodeSubsystem      = "nodes"

	ResultLabel = "result"
	KindLabel   = "kind"
)

var (
	ReconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: reconcileSubsystem,
			Name:      "total",
			Help:      "Number of full reconcile sweeps, labeled by result (success or error).",
		},
		[]string{ResultLabel},
	)
	ReconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: reconcileSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration of a full reconcile sweep.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{},
	)
	RecordsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: recordSubsystem,
			Name:      "created_total",
			Help:      "Number of DNS A records created in total.",
		},
	)
	RecordsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: recordSubsystem,
			Name:      "deleted_total",
			Help:      "Number of DNS A records deleted in total.",
		},
	)
	NodesAdvertisable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: nodeSubsystem,
			Name:      "advertisable",
			Help:      "Number of nodes currently advertisable in DNS, as of the last sweep.",
		},
	)
	NodesDeparting = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: nodeSubsystem,
			Name:      "departing",
			Help:      "Number of nodes currently departing, as of the last sweep.",
		},
	)
	NodeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: nodeSubsystem,
			Name:      "events_total",
			Help:      "Number of node watch events handled, labeled by kind.",
		},
		[]string{KindLabel},
	)
)

// MustRegister registers every metric with reg. Called once from the
// bootstrap path against prometheus.DefaultRegisterer.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		ReconcileTotal,
		ReconcileDuration,
		RecordsCreatedTotal,
		RecordsDeletedTotal,
		NodesAdvertisable,
		NodesDeparting,
		NodeEventsTotal,
	)
}
