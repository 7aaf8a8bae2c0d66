/*
Copyright 2025 The Crossplane Authors.
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

// Package metrics holds the Dispatcher's Prometheus instrumentation,
// registered on controller-runtime's global metrics.Registry so it is
// served alongside every other operator metric without extra wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Metrics is the set of measurements the Dispatcher emits for one kind.
type Metrics struct {
	InFlight  prometheus.Gauge
	Duration  prometheus.Histogram
	Dropped   *prometheus.CounterVec
	QueueSize prometheus.GaugeFunc
}

// New registers and returns a Metrics for the given kind name (e.g.
// "widgets.demo.kubeops.dev"). Calling New twice for the same kind would
// panic on duplicate registration, so callers should build one Metrics per
// kind at wiring time and hold on to it.
func New(kind string, queueLen func() float64) *Metrics {
	labels := prometheus.Labels{"kind": kind}

	m := &Metrics{
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "operator",
			Subsystem:   "dispatch",
			Name:        "in_flight_reconciles",
			Help:        "Number of reconciliations currently executing.",
			ConstLabels: labels,
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "operator",
			Subsystem:   "dispatch",
			Name:        "reconcile_duration_seconds",
			Help:        "Time spent in a single reconciliation call.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "operator",
			Subsystem:   "dispatch",
			Name:        "dropped_total",
			Help:        "Reconciliations dropped by the conflict policy, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
	}

	metrics.Registry.MustRegister(m.InFlight, m.Duration, m.Dropped)

	if queueLen != nil {
		m.QueueSize = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "operator",
			Subsystem:   "workqueue",
			Name:        "scheduled_entries",
			Help:        "Number of entries currently scheduled in the timed queue.",
			ConstLabels: labels,
		}, queueLen)
		metrics.Registry.MustRegister(m.QueueSize)
	}

	return m
}
