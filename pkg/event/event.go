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

// Package event records Kubernetes events against entities the runtime
// reconciles, e.g. a failed finalizer run or a dropped reconciliation under
// the Discard conflict policy.
package event

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
)

// A Type of event.
type Type string

// Event types, matching corev1.Event's accepted values.
const (
	TypeNormal  Type = corev1.EventTypeNormal
	TypeWarning Type = corev1.EventTypeWarning
)

// An Event relating to an entity the runtime is reconciling.
type Event struct {
	Type    Type
	Reason  string
	Message string
}

// Normal returns a normal (informational) event.
func Normal(reason, message string) Event {
	return Event{Type: TypeNormal, Reason: reason, Message: message}
}

// Warning returns a warning event, deriving its message from err.
func Warning(reason string, err error) Event {
	return Event{Type: TypeWarning, Reason: reason, Message: err.Error()}
}

// A Recorder records events about a runtime.Object.
type Recorder interface {
	Event(obj runtime.Object, e Event)
}

// NewAPIRecorder returns a Recorder that records events using the supplied
// client-go EventRecorder, the same one a controller-runtime Manager hands
// out via GetEventRecorderFor.
func NewAPIRecorder(rec record.EventRecorder) Recorder {
	return &apiRecorder{rec: rec}
}

type apiRecorder struct {
	rec record.EventRecorder
}

func (a *apiRecorder) Event(obj runtime.Object, e Event) {
	a.rec.Event(obj, string(e.Type), e.Reason, e.Message)
}

// NewNopRecorder returns a Recorder that does nothing.
func NewNopRecorder() Recorder {
	return nopRecorder{}
}

type nopRecorder struct{}

func (nopRecorder) Event(_ runtime.Object, _ Event) {}
