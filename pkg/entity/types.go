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

package entity

import (
	"github.com/kubeops/operator-runtime/pkg/errors"
)

// ReconciliationType describes which watch event produced a unit of work,
// or that the operator synthesized it internally for a requeue.
type ReconciliationType string

// The three reconciliation types. A requeue mirrors the type of the
// reconciliation that produced it: Added requeues as Added, Modified as
// Modified, Deleted as Deleted.
const (
	Added    ReconciliationType = "Added"
	Modified ReconciliationType = "Modified"
	Deleted  ReconciliationType = "Deleted"
)

// WatchEventType mirrors the handful of event types a Kubernetes watch
// stream produces that this runtime cares about.
type WatchEventType string

// Watch event types.
const (
	WatchAdded    WatchEventType = "ADDED"
	WatchModified WatchEventType = "MODIFIED"
	WatchDeleted  WatchEventType = "DELETED"
)

// ErrUnknownEventType is returned by ToReconciliationType and
// ToWatchEventType for any value outside the three known ones.
var ErrUnknownEventType = errors.New("unknown watch event type")

// ToReconciliationType converts a watch event type to a ReconciliationType.
func ToReconciliationType(t WatchEventType) (ReconciliationType, error) {
	switch t {
	case WatchAdded:
		return Added, nil
	case WatchModified:
		return Modified, nil
	case WatchDeleted:
		return Deleted, nil
	default:
		return "", errors.Wrapf(ErrUnknownEventType, "%q", t)
	}
}

// ToWatchEventType converts a ReconciliationType back to the watch event
// type it corresponds to. It is the left and right inverse of
// ToReconciliationType for the three known values.
func ToWatchEventType(t ReconciliationType) (WatchEventType, error) {
	switch t {
	case Added:
		return WatchAdded, nil
	case Modified:
		return WatchModified, nil
	case Deleted:
		return WatchDeleted, nil
	default:
		return "", errors.Wrapf(ErrUnknownEventType, "%q", t)
	}
}

// TriggerSource records what caused a reconciliation to be scheduled. It is
// diagnostic only and never affects routing.
type TriggerSource string

// Trigger sources.
const (
	// ApiServer reconciliations were triggered by a watch event.
	ApiServer TriggerSource = "ApiServer" //nolint:stylecheck // matches the wire/spec name.
	// Operator reconciliations were synthesized internally, e.g. a
	// RequeueAfter.
	Operator TriggerSource = "Operator"
)
