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

package workqueue

import (
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kubeops/operator-runtime/pkg/entity"
)

func pod(ns, name string) *corev1.Pod {
	return &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: ns, Name: name}}
}

func consumeWithTimeout(t *testing.T, q *TimedQueue, d time.Duration) (QueueEntry, bool) {
	t.Helper()
	type result struct {
		entry QueueEntry
		ok    bool
	}
	done := make(chan result, 1)
	go func() {
		e, ok := q.Consume()
		done <- result{e, ok}
	}()
	select {
	case r := <-done:
		return r.entry, r.ok
	case <-time.After(d):
		return QueueEntry{}, false
	}
}

func TestEnqueueNoNameRejected(t *testing.T) {
	q := New()
	defer q.ShutDown()

	err := q.Enqueue(pod("ns", ""), entity.Added, entity.ApiServer, 0)
	if err != ErrNoName {
		t.Errorf("Enqueue() error = %v, want %v", err, ErrNoName)
	}
}

func TestEnqueueImmediateIsConsumable(t *testing.T) {
	q := New()
	defer q.ShutDown()

	p := pod("ns", "widget-1")
	if err := q.Enqueue(p, entity.Added, entity.ApiServer, 0); err != nil {
		t.Fatalf("Enqueue() returned error: %v", err)
	}

	got, ok := consumeWithTimeout(t, q, time.Second)
	if !ok {
		t.Fatal("Consume() timed out waiting for an immediately-due entry")
	}
	if got.ReconciliationType != entity.Added {
		t.Errorf("ReconciliationType = %v, want %v", got.ReconciliationType, entity.Added)
	}
	if got.Entity.GetName() != "widget-1" {
		t.Errorf("Entity.GetName() = %q, want %q", got.Entity.GetName(), "widget-1")
	}
}

func TestEnqueueCoalescesSameKey(t *testing.T) {
	q := New()
	defer q.ShutDown()

	p := pod("ns", "widget-1")
	if err := q.Enqueue(p, entity.Added, entity.ApiServer, 50*time.Millisecond); err != nil {
		t.Fatalf("first Enqueue() returned error: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after the first Enqueue()", q.Len())
	}

	// A second Enqueue for the same key replaces the first instead of
	// scheduling a duplicate.
	if err := q.Enqueue(p, entity.Modified, entity.ApiServer, 0); err != nil {
		t.Fatalf("second Enqueue() returned error: %v", err)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0: the coalesced entry should already be ready", q.Len())
	}

	got, ok := consumeWithTimeout(t, q, time.Second)
	if !ok {
		t.Fatal("Consume() timed out")
	}
	if got.ReconciliationType != entity.Modified {
		t.Errorf("ReconciliationType = %v, want %v (the newest enqueue should win)", got.ReconciliationType, entity.Modified)
	}

	// Nothing else should ever become ready for this key.
	if _, ok := consumeWithTimeout(t, q, 100*time.Millisecond); ok {
		t.Error("Consume() returned a second entry; coalescing should have left only one")
	}
}

func TestRemoveCancelsScheduledEntry(t *testing.T) {
	q := New()
	defer q.ShutDown()

	p := pod("ns", "widget-1")
	if err := q.Enqueue(p, entity.Added, entity.ApiServer, 50*time.Millisecond); err != nil {
		t.Fatalf("Enqueue() returned error: %v", err)
	}
	q.Remove(p)

	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after Remove()", q.Len())
	}
	if _, ok := consumeWithTimeout(t, q, 150*time.Millisecond); ok {
		t.Error("Consume() returned an entry that should have been cancelled by Remove()")
	}
}

func TestRemoveUnknownKeyIsNoop(t *testing.T) {
	q := New()
	defer q.ShutDown()
	q.Remove(pod("ns", "never-scheduled"))
}

func TestConsumeDelayedEntryBecomesReady(t *testing.T) {
	q := New()
	defer q.ShutDown()

	p := pod("ns", "widget-1")
	if err := q.Enqueue(p, entity.Added, entity.ApiServer, 30*time.Millisecond); err != nil {
		t.Fatalf("Enqueue() returned error: %v", err)
	}

	// A single pending Consume call is observed twice: an abandoned second
	// caller would otherwise be first in line and take the entry.
	done := make(chan QueueEntry, 1)
	go func() {
		if e, ok := q.Consume(); ok {
			done <- e
		}
	}()

	select {
	case <-done:
		t.Error("Consume() returned an entry before its delay elapsed")
	case <-time.After(5 * time.Millisecond):
	}

	var got QueueEntry
	select {
	case got = <-done:
	case <-time.After(time.Second):
		t.Fatal("Consume() timed out waiting for the delayed entry")
	}
	if got.Entity.GetName() != "widget-1" {
		t.Errorf("Entity.GetName() = %q, want %q", got.Entity.GetName(), "widget-1")
	}
}

func TestShutDownUnblocksConsume(t *testing.T) {
	q := New()
	q.ShutDown()

	_, ok := consumeWithTimeout(t, q, time.Second)
	if ok {
		t.Error("Consume() returned ok=true after ShutDown()")
	}
}

func TestShutDownIsIdempotent(t *testing.T) {
	q := New()
	q.ShutDown()
	q.ShutDown()
}
