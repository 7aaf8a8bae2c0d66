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
	"testing"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestQueueKey(t *testing.T) {
	cases := map[string]struct {
		obj  Object
		want string
	}{
		"Namespaced": {
			obj:  &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: "team-a", Name: "widget-1"}},
			want: "team-a/widget-1",
		},
		"ClusterScoped": {
			obj:  &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "widget-1"}},
			want: "widget-1",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := QueueKey(tc.obj); got != tc.want {
				t.Errorf("QueueKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsDeleting(t *testing.T) {
	now := metav1.NewTime(time.Now())

	live := &corev1.Pod{}
	if IsDeleting(live) {
		t.Error("IsDeleting() = true for an object with no deletion timestamp")
	}

	deleting := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{DeletionTimestamp: &now}}
	if !IsDeleting(deleting) {
		t.Error("IsDeleting() = false for an object with a deletion timestamp")
	}
}

func TestHasFinalizers(t *testing.T) {
	none := &corev1.Pod{}
	if HasFinalizers(none) {
		t.Error("HasFinalizers() = true for an object with no finalizers")
	}

	some := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Finalizers: []string{"demo.kubeops.dev/widgetfinalizer"}}}
	if !HasFinalizers(some) {
		t.Error("HasFinalizers() = false for an object with finalizers")
	}
}
