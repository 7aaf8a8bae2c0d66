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

// Package finalizer derives stable finalizer strings and tracks which
// finalizer-handling logic goes with which string, so the reconciler can
// look up the right detacher by name alone.
package finalizer

import (
	"context"
	"strings"

	"github.com/kubeops/operator-runtime/pkg/entity"
	"github.com/kubeops/operator-runtime/pkg/errors"
)

const maxLength = 63

// Handler runs a single finalizer's cleanup logic against obj. It returns
// done=true once the finalizer can safely be removed; returning done=false
// with a nil error asks to be invoked again on a later turn.
type Handler interface {
	Finalize(ctx context.Context, obj entity.Object) (done bool, err error)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, obj entity.Object) (bool, error)

// Finalize implements Handler.
func (f HandlerFunc) Finalize(ctx context.Context, obj entity.Object) (bool, error) {
	return f(ctx, obj)
}

// Identifier derives the deterministic finalizer string for a finalizer
// named name scoped to group (typically the entity's API group), in the form
// "<group>/<name>finalizer": lowercase, suffixed with "finalizer" unless
// name already ends with it, truncated to 63 characters so it always
// satisfies the finalizer string's length limit.
func Identifier(group, name string) string {
	name = strings.ToLower(name)
	if !strings.HasSuffix(name, "finalizer") {
		name += "finalizer"
	}
	id := strings.ToLower(group) + "/" + name
	if len(id) > maxLength {
		id = id[:maxLength]
	}
	return id
}

// Registry maps finalizer identifiers to the Handler that runs them.
type Registry struct {
	group    string
	handlers map[string]Handler
	order    []string
}

// NewRegistry returns an empty Registry for entities in the given API
// group.
func NewRegistry(group string) *Registry {
	return &Registry{group: group, handlers: make(map[string]Handler)}
}

// Register adds a finalizer named name, deriving its identifier from the
// registry's group. Registration order is preserved and is the order
// Identifiers returns, which is the order auto-attach appends missing
// finalizers to an entity. FinalizePath itself follows the entity's own
// finalizer list.
func (r *Registry) Register(name string, h Handler) string {
	id := Identifier(r.group, name)
	if _, exists := r.handlers[id]; !exists {
		r.order = append(r.order, id)
	}
	r.handlers[id] = h
	return id
}

// Lookup returns the Handler registered for identifier, if any.
func (r *Registry) Lookup(identifier string) (Handler, bool) {
	h, ok := r.handlers[identifier]
	return h, ok
}

// Identifiers returns every registered finalizer identifier, in
// registration order.
func (r *Registry) Identifiers() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ErrUnknownFinalizer describes an entity carrying a finalizer string this
// registry has no Handler for. Lookup reports that case as ok=false, and
// the reconciler treats it as another operator's finalizer rather than an
// error; nothing in this module returns ErrUnknownFinalizer.
var ErrUnknownFinalizer = errors.New("no handler registered for finalizer")
