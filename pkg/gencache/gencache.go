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

// Package gencache holds the "have we seen this generation?" state the
// Watcher uses to filter out status-only updates. It is the only place
// that state lives.
package gencache

import (
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/types"
	apicache "k8s.io/apimachinery/pkg/util/cache"
)

// Cache maps an entity UID to the last generation observed for it. Delete
// always removes the key outright, a key's stored generation only ever
// moves forward during its lifetime (callers are expected to only call
// Observe with generations the API server has actually assigned, which are
// themselves non-decreasing), and absence of a key means the entity has
// never been observed.
type Cache interface {
	// Get returns the last observed generation for uid, and whether one has
	// been observed at all.
	Get(uid types.UID) (generation int64, ok bool)
	// Observe records generation as the last one seen for uid.
	Observe(uid types.UID, generation int64)
	// Delete removes uid from the cache.
	Delete(uid types.UID)
}

// NewUnbounded returns a Cache that never evicts entries, backed by a plain
// mutex-guarded map. Suitable for clusters with a modest object count.
func NewUnbounded() Cache {
	return &mapCache{entries: make(map[types.UID]int64)}
}

type mapCache struct {
	mu      sync.RWMutex
	entries map[types.UID]int64
}

func (c *mapCache) Get(uid types.UID) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.entries[uid]
	return g, ok
}

func (c *mapCache) Observe(uid types.UID, generation int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uid] = generation
}

func (c *mapCache) Delete(uid types.UID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uid)
}

// NewBounded returns a Cache backed by
// k8s.io/apimachinery/pkg/util/cache.LRUExpireCache, the same
// concurrent-map-with-eviction primitive the rest of the Kubernetes
// ecosystem reaches for when a watch-derived cache must stay bounded on
// very large clusters. Evicting a live entry is benign: the watcher simply
// treats the entity's next event as "never seen" and reconciles once more
// than strictly necessary.
func NewBounded(maxEntries int, ttl time.Duration) Cache {
	return &lruCache{
		c:   apicache.NewLRUExpireCache(maxEntries),
		ttl: ttl,
	}
}

type lruCache struct {
	c   *apicache.LRUExpireCache
	ttl time.Duration
}

func (c *lruCache) Get(uid types.UID) (int64, bool) {
	v, ok := c.c.Get(uid)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func (c *lruCache) Observe(uid types.UID, generation int64) {
	if c.ttl > 0 {
		c.c.Add(uid, generation, c.ttl)
		return
	}
	c.c.Add(uid, generation, 100*365*24*time.Hour)
}

func (c *lruCache) Delete(uid types.UID) {
	c.c.Remove(uid)
}
