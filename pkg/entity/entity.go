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

// Package entity defines the capability contract the runtime requires of a
// Kubernetes resource type. Any real sigs.k8s.io/controller-runtime
// client.Object whose embedded metav1.ObjectMeta is used as intended already
// satisfies Object with zero glue code.
package entity

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Object is the capability set the runtime needs from an entity: it is a
// controller-runtime client.Object (so it can be Get/List/Update/Watched)
// plus the specific accessors the reconciliation runtime reads and, for
// finalizers, writes.
type Object interface {
	client.Object
}

// UID returns the entity's stable, immutable unique identifier.
func UID(o Object) string {
	return string(o.GetUID())
}

// Generation returns the entity's spec generation, as set by the API server.
func Generation(o Object) int64 {
	return o.GetGeneration()
}

// IsDeleting reports whether the entity has a non-nil deletion timestamp.
func IsDeleting(o Object) bool {
	return o.GetDeletionTimestamp() != nil
}

// DeletionTimestamp returns the entity's deletion timestamp, or nil if it
// has not been marked for deletion.
func DeletionTimestamp(o Object) *metav1.Time {
	return o.GetDeletionTimestamp()
}

// Finalizers returns the entity's current finalizer list.
func Finalizers(o Object) []string {
	return o.GetFinalizers()
}

// HasFinalizers reports whether the entity carries any finalizers.
func HasFinalizers(o Object) bool {
	return len(o.GetFinalizers()) > 0
}

// QueueKey returns the coalescing key used by the TimedQueue and in the
// runtime's diagnostic logging: namespace/name, or just name for a
// cluster-scoped entity.
func QueueKey(o Object) string {
	if ns := o.GetNamespace(); ns != "" {
		return ns + "/" + o.GetName()
	}
	return o.GetName()
}
