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

// Package client adapts sigs.k8s.io/controller-runtime's generic client to
// the narrower surface the reconciliation runtime needs: fetch-by-key,
// update spec, update status, and a raw watch stream a RetryWatcher can
// consume.
package client

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/kubeops/operator-runtime/pkg/entity"
)

// Client is the subset of CRUD operations the Reconciler and Watcher need
// for one entity kind.
type Client interface {
	// Get fetches the current state of the entity named key.Name in
	// key.Namespace into obj.
	Get(ctx context.Context, key client.ObjectKey, obj entity.Object) error
	// List fetches the entities matching opts into list.
	List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error
	// Update persists obj's spec and metadata (including finalizers).
	Update(ctx context.Context, obj entity.Object) error
	// UpdateStatus persists obj's status subresource.
	UpdateStatus(ctx context.Context, obj entity.Object) error
	// Watch opens a raw watch stream starting at opts.ResourceVersion.
	Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error)
}

// NewForKind returns a Client backed by c for the given object kind. newList
// must return a fresh, empty list of the entity's concrete list type; Watch
// uses it to tell c which kind to watch, and it is never returned to the
// caller.
func NewForKind(c client.Client, newList func() client.ObjectList) Client {
	return &typedClient{c: c, newList: newList}
}

type typedClient struct {
	c       client.Client
	newList func() client.ObjectList
}

func (t *typedClient) Get(ctx context.Context, key client.ObjectKey, obj entity.Object) error {
	return t.c.Get(ctx, key, obj)
}

func (t *typedClient) List(ctx context.Context, list client.ObjectList, opts ...client.ListOption) error {
	return t.c.List(ctx, list, opts...)
}

func (t *typedClient) Update(ctx context.Context, obj entity.Object) error {
	return t.c.Update(ctx, obj)
}

func (t *typedClient) UpdateStatus(ctx context.Context, obj entity.Object) error {
	return t.c.Status().Update(ctx, obj)
}

func (t *typedClient) Watch(ctx context.Context, opts metav1.ListOptions) (watch.Interface, error) {
	list := t.newList()
	listOpts := &client.ListOptions{Raw: &opts}
	w, err := t.c.(client.WithWatch).Watch(ctx, list, listOpts)
	if err != nil {
		return nil, err
	}
	return w, nil
}
