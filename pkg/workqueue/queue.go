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

// Package workqueue implements a delayed, per-key-coalesced, cancellable
// work queue of entity.Object reconciliations. It is the TimedQueue of the
// reconciliation runtime: a small container/heap due-time index in front of
// a real k8s.io/client-go/util/workqueue.TypedInterface, which is the same
// queue primitive client-go and controller-runtime hand a consumer loop
// everywhere else in this ecosystem.
package workqueue

import (
	"container/heap"
	"sync"
	"time"

	"k8s.io/client-go/util/workqueue"
	"k8s.io/utils/clock"

	"github.com/kubeops/operator-runtime/pkg/entity"
	"github.com/kubeops/operator-runtime/pkg/errors"
)

// ErrNoName is returned by Enqueue when the entity has no name and
// therefore no queue key.
var ErrNoName = errors.New("entity has no name, cannot be enqueued")

// QueueEntry is a unit of work pulled from the ready stream.
type QueueEntry struct {
	Entity             entity.Object
	ReconciliationType entity.ReconciliationType
	TriggerSource      entity.TriggerSource
}

// scheduledEntry is TimedQueue's bookkeeping for one key. Only one exists
// per key at a time; a later Enqueue for the same key replaces it in place
// (same heap slot, new due time and payload, and a bumped generation so it
// sorts as the latest arrival).
type scheduledEntry struct {
	key        string
	entry      QueueEntry
	enqueueAt  time.Time
	generation uint64
	index      int // heap index, maintained by container/heap
}

// delayHeap orders scheduledEntry by enqueueAt; ties break by arrival order
// via generation.
type delayHeap []*scheduledEntry

func (h delayHeap) Len() int { return len(h) }
func (h delayHeap) Less(i, j int) bool {
	if h[i].enqueueAt.Equal(h[j].enqueueAt) {
		return h[i].generation < h[j].generation
	}
	return h[i].enqueueAt.Before(h[j].enqueueAt)
}
func (h delayHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *delayHeap) Push(x any) {
	e := x.(*scheduledEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *delayHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// TimedQueue is a delayed, per-key-coalescing, cancellable work queue. The
// zero value is not usable; construct one with New.
type TimedQueue struct {
	clock clock.Clock

	mu         sync.Mutex
	scheduled  map[string]*scheduledEntry
	heap       delayHeap
	generation uint64

	timer *time.Timer

	ready workqueue.TypedInterface[string]
	// payload holds the QueueEntry for each key currently sitting in ready,
	// read and cleared by Consume.
	payload map[string]QueueEntry

	closeOnce sync.Once
	closed    chan struct{}
}

// New returns an empty TimedQueue.
func New() *TimedQueue {
	return newWithClock(clock.RealClock{})
}

// newWithClock returns a TimedQueue that reads the current time from c; New
// passes the real clock. The due-time timer is always a real time.AfterFunc.
func newWithClock(c clock.Clock) *TimedQueue {
	return &TimedQueue{
		clock:     c,
		scheduled: make(map[string]*scheduledEntry),
		payload:   make(map[string]QueueEntry),
		ready:     workqueue.NewTyped[string](),
		closed:    make(chan struct{}),
	}
}

// Enqueue schedules e to become ready after delay. A prior scheduled entry
// for the same key is cancelled and replaced -- the newest enqueue always
// wins, carrying its own reconciliationType and triggerSource.
func (q *TimedQueue) Enqueue(e entity.Object, t entity.ReconciliationType, src entity.TriggerSource, delay time.Duration) error {
	key := entity.QueueKey(e)
	if key == "" || e.GetName() == "" {
		return ErrNoName
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.generation++
	gen := q.generation

	if existing, ok := q.scheduled[key]; ok {
		// Replace in place: same heap slot, new due time/generation/payload.
		existing.entry = QueueEntry{Entity: e, ReconciliationType: t, TriggerSource: src}
		existing.enqueueAt = q.clock.Now().Add(delay)
		existing.generation = gen
		heap.Fix(&q.heap, existing.index)
	} else {
		se := &scheduledEntry{
			key:        key,
			entry:      QueueEntry{Entity: e, ReconciliationType: t, TriggerSource: src},
			enqueueAt:  q.clock.Now().Add(delay),
			generation: gen,
		}
		q.scheduled[key] = se
		heap.Push(&q.heap, se)
	}

	q.rearm()
	return nil
}

// Remove cancels any scheduled entry for e's key. A cancelled entry is
// never delivered by Consume. Safe to call for a key with nothing
// scheduled.
func (q *TimedQueue) Remove(e entity.Object) {
	key := entity.QueueKey(e)

	q.mu.Lock()
	defer q.mu.Unlock()

	se, ok := q.scheduled[key]
	if !ok {
		return
	}
	delete(q.scheduled, key)
	if se.index >= 0 && se.index < len(q.heap) && q.heap[se.index] == se {
		heap.Remove(&q.heap, se.index)
	}
}

// rearm re-arms the due-time timer for the next scheduled entry, or
// promotes any already-due entries straight to the ready queue. Must be
// called with q.mu held.
func (q *TimedQueue) rearm() {
	now := q.clock.Now()
	for len(q.heap) > 0 && !q.heap[0].enqueueAt.After(now) {
		se := heap.Pop(&q.heap).(*scheduledEntry)
		delete(q.scheduled, se.key)
		q.payload[se.key] = se.entry
		q.ready.Add(se.key)
	}

	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	if len(q.heap) == 0 {
		return
	}

	wait := q.heap[0].enqueueAt.Sub(now)
	q.timer = time.AfterFunc(wait, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.rearm()
	})
}

// Consume blocks until an entry is ready or the queue is shut down, in
// which case ok is false. It is safe to call Consume from multiple
// goroutines; each ready entry is delivered to exactly one caller.
func (q *TimedQueue) Consume() (QueueEntry, bool) {
	key, shutdown := q.ready.Get()
	if shutdown {
		return QueueEntry{}, false
	}
	defer q.ready.Done(key)

	q.mu.Lock()
	entry := q.payload[key]
	delete(q.payload, key)
	q.mu.Unlock()

	return entry, true
}

// ShutDown drains and stops the queue. Undelivered entries are discarded;
// this is safe because the watcher will re-observe their entities on
// restart.
func (q *TimedQueue) ShutDown() {
	q.closeOnce.Do(func() {
		close(q.closed)
		q.mu.Lock()
		if q.timer != nil {
			q.timer.Stop()
		}
		q.mu.Unlock()
		q.ready.ShutDown()
	})
}

// Len returns the number of entries currently scheduled (not yet ready).
// Intended for tests and metrics, not for control flow.
func (q *TimedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.scheduled)
}
