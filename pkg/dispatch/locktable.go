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

package dispatch

import (
	"context"
	"sync"

	"k8s.io/apimachinery/pkg/types"
)

// uidLock is a one-at-a-time binary lock for a single UID, implemented as a
// buffered channel of capacity 1 (a send is an acquire, a receive is a
// release). waiters counts goroutines that hold a reference to this entry,
// so the table can evict entries nobody is using instead of growing
// unboundedly for the lifetime of the process.
type uidLock struct {
	ch      chan struct{}
	waiters int
}

// UidLockTable hands out per-UID mutual exclusion. Only one reconciliation
// for a given entity UID runs at a time, regardless of how many worker
// slots the Dispatcher has available; this is what keeps two racing
// reconciliations for the same object from stepping on each other's
// Update calls.
type UidLockTable struct {
	mu      sync.Mutex
	entries map[types.UID]*uidLock
}

// NewUidLockTable returns an empty UidLockTable.
func NewUidLockTable() *UidLockTable {
	return &UidLockTable{entries: make(map[types.UID]*uidLock)}
}

func (t *UidLockTable) getOrCreate(uid types.UID) *uidLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.entries[uid]
	if !ok {
		l = &uidLock{ch: make(chan struct{}, 1)}
		t.entries[uid] = l
	}
	l.waiters++
	return l
}

func (t *UidLockTable) release(uid types.UID, l *uidLock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	l.waiters--
	if l.waiters == 0 {
		// Nobody else is contending for this UID; drop it so the table does
		// not retain one entry per entity ever seen.
		delete(t.entries, uid)
	}
}

// TryAcquire attempts to take the lock for uid without blocking. It reports
// whether the lock was acquired; when it was, the caller must later call
// Release with the same uid.
func (t *UidLockTable) TryAcquire(uid types.UID) bool {
	l := t.getOrCreate(uid)
	select {
	case l.ch <- struct{}{}:
		return true
	default:
		t.release(uid, l)
		return false
	}
}

// Acquire blocks until the lock for uid is held or ctx is done.
func (t *UidLockTable) Acquire(ctx context.Context, uid types.UID) error {
	l := t.getOrCreate(uid)
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		t.release(uid, l)
		return ctx.Err()
	}
}

// Release releases the lock for uid previously obtained via TryAcquire or
// Acquire.
func (t *UidLockTable) Release(uid types.UID) {
	t.mu.Lock()
	l, ok := t.entries[uid]
	t.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-l.ch:
	default:
	}
	t.release(uid, l)
}

// Len returns the number of UIDs currently tracked (held or contended).
// Intended for tests and metrics.
func (t *UidLockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
