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

package watch

import (
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apiwatch "k8s.io/apimachinery/pkg/watch"

	"github.com/kubeops/operator-runtime/pkg/entity"
	"github.com/kubeops/operator-runtime/pkg/gencache"
	"github.com/kubeops/operator-runtime/pkg/logging"
	rtworkqueue "github.com/kubeops/operator-runtime/pkg/workqueue"
)

func newTestWatcher() (*Watcher, *rtworkqueue.TimedQueue, gencache.Cache) {
	cache := gencache.NewUnbounded()
	queue := rtworkqueue.New()
	w := New(nil, cache, queue, logging.NewNopLogger())
	return w, queue, cache
}

func consume(t *testing.T, q *rtworkqueue.TimedQueue) (rtworkqueue.QueueEntry, bool) {
	t.Helper()
	type result struct {
		e  rtworkqueue.QueueEntry
		ok bool
	}
	done := make(chan result, 1)
	go func() {
		e, ok := q.Consume()
		done <- result{e, ok}
	}()
	select {
	case r := <-done:
		return r.e, r.ok
	case <-time.After(time.Second):
		return rtworkqueue.QueueEntry{}, false
	}
}

func TestHandleAddedEnqueuesFirstSeenGeneration(t *testing.T) {
	w, q, _ := newTestWatcher()
	defer q.ShutDown()

	p := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{UID: "u1", Name: "widget-1", Generation: 1}}
	w.handle(apiwatch.Event{Type: apiwatch.Added, Object: p})

	got, ok := consume(t, q)
	if !ok {
		t.Fatal("expected the Added event to enqueue an entry")
	}
	if got.ReconciliationType != entity.Added {
		t.Errorf("ReconciliationType = %v, want %v", got.ReconciliationType, entity.Added)
	}
}

func TestHandleModifiedDropsUnchangedGeneration(t *testing.T) {
	w, q, cache := newTestWatcher()
	defer q.ShutDown()

	cache.Observe("u1", 2)
	p := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{UID: "u1", Name: "widget-1", Generation: 2}}
	w.handle(apiwatch.Event{Type: apiwatch.Modified, Object: p})

	if _, ok := consume(t, q); ok {
		t.Error("a Modified event with an already-seen generation should not enqueue anything")
	}
}

func TestHandleModifiedEnqueuesIncreasedGeneration(t *testing.T) {
	w, q, cache := newTestWatcher()
	defer q.ShutDown()

	cache.Observe("u1", 2)
	p := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{UID: "u1", Name: "widget-1", Generation: 3}}
	w.handle(apiwatch.Event{Type: apiwatch.Modified, Object: p})

	got, ok := consume(t, q)
	if !ok {
		t.Fatal("a Modified event with an increased generation should enqueue")
	}
	if got.ReconciliationType != entity.Modified {
		t.Errorf("ReconciliationType = %v, want %v", got.ReconciliationType, entity.Modified)
	}

	newGen, seen := cache.Get("u1")
	if !seen || newGen != 3 {
		t.Errorf("cache.Get(u1) = (%d, %v), want (3, true)", newGen, seen)
	}
}

func TestHandleDeletedAlwaysEnqueuesAndEvictsCache(t *testing.T) {
	w, q, cache := newTestWatcher()
	defer q.ShutDown()

	cache.Observe("u1", 5)
	p := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{UID: "u1", Name: "widget-1", Generation: 5}}
	w.handle(apiwatch.Event{Type: apiwatch.Deleted, Object: p})

	got, ok := consume(t, q)
	if !ok {
		t.Fatal("a Deleted event should always enqueue")
	}
	if got.ReconciliationType != entity.Deleted {
		t.Errorf("ReconciliationType = %v, want %v", got.ReconciliationType, entity.Deleted)
	}
	if _, seen := cache.Get("u1"); seen {
		t.Error("a Deleted event should evict the entity from the generation cache")
	}
}

func TestHandleUnknownEventTypeDropped(t *testing.T) {
	w, q, _ := newTestWatcher()
	defer q.ShutDown()

	p := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{UID: "u1", Name: "widget-1"}}
	w.handle(apiwatch.Event{Type: apiwatch.Bookmark, Object: p})

	if _, ok := consume(t, q); ok {
		t.Error("a bookmark event should not enqueue anything")
	}
}
