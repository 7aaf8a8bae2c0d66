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

package event

import (
	"errors"
	"testing"
)

func TestNormal(t *testing.T) {
	e := Normal("Created", "widget created")
	if e.Type != TypeNormal {
		t.Errorf("Type = %v, want %v", e.Type, TypeNormal)
	}
	if e.Reason != "Created" || e.Message != "widget created" {
		t.Errorf("Normal() = %+v, want Reason=Created Message=%q", e, "widget created")
	}
}

func TestWarning(t *testing.T) {
	err := errors.New("boom")
	e := Warning("ReconcileFailed", err)
	if e.Type != TypeWarning {
		t.Errorf("Type = %v, want %v", e.Type, TypeWarning)
	}
	if e.Message != "boom" {
		t.Errorf("Message = %q, want %q", e.Message, "boom")
	}
}

func TestNopRecorderDoesNotPanic(t *testing.T) {
	r := NewNopRecorder()
	r.Event(nil, Normal("Created", "widget created"))
}
