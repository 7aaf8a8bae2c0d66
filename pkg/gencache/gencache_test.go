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

package gencache

import (
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/types"
)

func TestUnboundedNeverSeen(t *testing.T) {
	c := NewUnbounded()
	if _, ok := c.Get(types.UID("a")); ok {
		t.Fatal("Get() on an empty cache reported ok=true")
	}
}

func TestUnboundedObserveThenGet(t *testing.T) {
	c := NewUnbounded()
	c.Observe("a", 3)

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("Get() after Observe() reported ok=false")
	}
	if got != 3 {
		t.Errorf("Get() = %d, want 3", got)
	}
}

func TestUnboundedObserveOverwrites(t *testing.T) {
	c := NewUnbounded()
	c.Observe("a", 3)
	c.Observe("a", 4)

	got, _ := c.Get("a")
	if got != 4 {
		t.Errorf("Get() = %d, want 4 after a second, higher Observe()", got)
	}
}

func TestUnboundedDeleteRemovesKey(t *testing.T) {
	c := NewUnbounded()
	c.Observe("a", 3)
	c.Delete("a")

	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() after Delete() reported ok=true")
	}
}

func TestUnboundedDeleteUnknownKeyIsNoop(t *testing.T) {
	c := NewUnbounded()
	c.Delete("never-seen")
}

func TestBoundedBehavesLikeUnboundedWithinCapacity(t *testing.T) {
	c := NewBounded(10, time.Hour)

	c.Observe("a", 1)
	got, ok := c.Get("a")
	if !ok || got != 1 {
		t.Fatalf("Get() = (%d, %v), want (1, true)", got, ok)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get() after Delete() reported ok=true")
	}
}

func TestBoundedEvictsOverCapacity(t *testing.T) {
	c := NewBounded(1, time.Hour)

	c.Observe("a", 1)
	c.Observe("b", 1) // evicts "a"

	if _, ok := c.Get("a"); ok {
		t.Error("Get(\"a\") reported ok=true after an eviction-inducing Observe(\"b\")")
	}
	if got, ok := c.Get("b"); !ok || got != 1 {
		t.Errorf("Get(\"b\") = (%d, %v), want (1, true)", got, ok)
	}
}
