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

// Package dispatch bounds how many reconciliations run at once and makes
// sure no two of them run for the same entity concurrently. It is the
// back-pressure and mutual-exclusion layer that sits between the TimedQueue
// and the Reconciler.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"k8s.io/apimachinery/pkg/types"

	"github.com/kubeops/operator-runtime/pkg/entity"
	"github.com/kubeops/operator-runtime/pkg/event"
	"github.com/kubeops/operator-runtime/pkg/logging"
	"github.com/kubeops/operator-runtime/pkg/metrics"
	"github.com/kubeops/operator-runtime/pkg/workqueue"
)

// ConflictStrategy decides what happens when a QueueEntry becomes ready for
// an entity UID that already has a reconciliation in flight.
type ConflictStrategy string

const (
	// Discard drops the new work. The entity's state will still be
	// reconciled eventually, either by a later watch event or a requeue.
	Discard ConflictStrategy = "Discard"
	// RequeueAfterDelay puts the entry back on the TimedQueue with a delay
	// instead of running it now.
	RequeueAfterDelay ConflictStrategy = "RequeueAfterDelay"
	// WaitForCompletion blocks the dispatching worker until the in-flight
	// reconciliation for that UID finishes, then runs the new one. This
	// strategy can reduce effective parallelism below MaxParallel when many
	// entries collide on the same UID.
	WaitForCompletion ConflictStrategy = "WaitForCompletion"
)

// Handler reconciles a single QueueEntry. Requeue reports whether, and
// after how long, the entity should be scheduled again.
type Handler interface {
	Handle(ctx context.Context, e workqueue.QueueEntry) (requeue bool, after time.Duration)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, e workqueue.QueueEntry) (bool, time.Duration)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, e workqueue.QueueEntry) (bool, time.Duration) {
	return f(ctx, e)
}

// Dispatcher pulls ready entries off a TimedQueue, bounds how many run
// concurrently with a weighted semaphore, and serializes reconciliations
// per entity UID through a UidLockTable. The global permit is always
// acquired before the next queue entry is read, so a full dispatcher
// applies back-pressure to the queue instead of buffering unboundedly in
// memory, and at most one reconciliation per UID runs at a time regardless
// of which ConflictStrategy is configured.
type Dispatcher struct {
	queue    *workqueue.TimedQueue
	locks    *UidLockTable
	sem      *semaphore.Weighted
	strategy ConflictStrategy
	handler  Handler
	requeue  time.Duration // delay used by RequeueAfterDelay

	recorder event.Recorder
	log      logging.Logger
	metrics  *metrics.Metrics
}

// Config configures a Dispatcher.
type Config struct {
	MaxParallel  int64
	Strategy     ConflictStrategy
	RequeueDelay time.Duration
	Recorder     event.Recorder
	Log          logging.Logger
	Metrics      *metrics.Metrics
}

// New returns a Dispatcher reading from queue and invoking handler for each
// entry that clears back-pressure and UID serialization.
func New(queue *workqueue.TimedQueue, handler Handler, cfg Config) *Dispatcher {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}
	if cfg.Recorder == nil {
		cfg.Recorder = event.NewNopRecorder()
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewNopLogger()
	}
	return &Dispatcher{
		queue:    queue,
		locks:    NewUidLockTable(),
		sem:      semaphore.NewWeighted(cfg.MaxParallel),
		strategy: cfg.Strategy,
		handler:  handler,
		requeue:  cfg.RequeueDelay,
		recorder: cfg.Recorder,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
	}
}

// Run drives the dispatch loop until ctx is cancelled or the queue is shut
// down. It returns once no more in-flight reconciliation can be started.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		// Acquire a permit before consuming the next entry, so back-pressure
		// lands on the queue rather than on an ever-growing in-flight set.
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return ctx.Err()
		}

		qe, ok := d.queue.Consume()
		if !ok {
			d.sem.Release(1)
			return nil
		}

		go d.dispatch(ctx, qe)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, qe workqueue.QueueEntry) {
	defer d.sem.Release(1)

	uid := types.UID(entity.UID(qe.Entity))

	switch d.strategy {
	case Discard:
		if !d.locks.TryAcquire(uid) {
			d.recordDrop(qe, "uid_busy")
			return
		}
		defer d.locks.Release(uid)

	case RequeueAfterDelay:
		if !d.locks.TryAcquire(uid) {
			if err := d.queue.Enqueue(qe.Entity, qe.ReconciliationType, qe.TriggerSource, d.requeue); err != nil {
				d.log.Error(err, "failed to requeue after conflict", "uid", uid)
			}
			return
		}
		defer d.locks.Release(uid)

	case WaitForCompletion:
		if err := d.locks.Acquire(ctx, uid); err != nil {
			return
		}
		defer d.locks.Release(uid)

	default:
		if !d.locks.TryAcquire(uid) {
			d.recordDrop(qe, "uid_busy")
			return
		}
		defer d.locks.Release(uid)
	}

	d.run(ctx, qe)
}

func (d *Dispatcher) run(ctx context.Context, qe workqueue.QueueEntry) {
	if d.metrics != nil {
		d.metrics.InFlight.Inc()
		defer d.metrics.InFlight.Dec()

		start := time.Now()
		defer func() { d.metrics.Duration.Observe(time.Since(start).Seconds()) }()
	}

	log := d.log.WithValues(
		"type", qe.ReconciliationType,
		"kind", qe.Entity.GetObjectKind().GroupVersionKind().Kind,
		"name", qe.Entity.GetName(),
		"uid", entity.UID(qe.Entity),
		"resourceVersion", qe.Entity.GetResourceVersion(),
		"triggerSource", qe.TriggerSource,
	)
	log.Debug("reconciling")

	requeue, after := d.handler.Handle(ctx, qe)
	if requeue {
		if err := d.queue.Enqueue(qe.Entity, qe.ReconciliationType, entity.Operator, after); err != nil {
			log.Error(err, "failed to requeue after handling", "key", entity.QueueKey(qe.Entity))
		}
	}
}

func (d *Dispatcher) recordDrop(qe workqueue.QueueEntry, reason string) {
	if d.metrics != nil {
		d.metrics.Dropped.WithLabelValues(reason).Inc()
	}
	d.recorder.Event(qe.Entity, event.Warning("ReconcileDropped", errDropped{reason: reason}))
}

type errDropped struct{ reason string }

func (e errDropped) Error() string { return "reconciliation dropped: " + e.reason }
