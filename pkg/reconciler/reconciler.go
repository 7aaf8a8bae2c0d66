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

// Package reconciler routes a ready QueueEntry to user reconcile logic,
// runs the finalizer attach/detach protocol, and handles final object
// deletion. It is the piece that turns a stream of Added/Modified/Deleted
// events into calls against a single, simple Reconciler interface.
package reconciler

import (
	"context"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	rtclient "github.com/kubeops/operator-runtime/pkg/client"
	"github.com/kubeops/operator-runtime/pkg/entity"
	"github.com/kubeops/operator-runtime/pkg/errors"
	"github.com/kubeops/operator-runtime/pkg/event"
	"github.com/kubeops/operator-runtime/pkg/finalizer"
	"github.com/kubeops/operator-runtime/pkg/gencache"
	"github.com/kubeops/operator-runtime/pkg/logging"
	"github.com/kubeops/operator-runtime/pkg/workqueue"
)

// Result reports what a Reconciler call wants to happen next.
type Result struct {
	// Requeue, when true, schedules the entity again after RequeueAfter.
	Requeue bool
	// RequeueAfter is the delay before the requeued reconciliation runs.
	// Ignored unless Requeue is true.
	RequeueAfter time.Duration
}

// Done reports no further action is needed.
func Done() Result { return Result{} }

// RequeueAfter requeues the entity after d.
func RequeueAfter(d time.Duration) Result { return Result{Requeue: true, RequeueAfter: d} }

// UserReconciler is implemented by the embedding application to reconcile
// one entity kind's desired state against the cluster.
type UserReconciler interface {
	Reconcile(ctx context.Context, obj entity.Object) (Result, error)
}

// UserReconcilerFunc adapts a function to a UserReconciler.
type UserReconcilerFunc func(ctx context.Context, obj entity.Object) (Result, error)

// Reconcile implements UserReconciler.
func (f UserReconcilerFunc) Reconcile(ctx context.Context, obj entity.Object) (Result, error) {
	return f(ctx, obj)
}

// DeleteHandler is invoked once an entity has been fully removed from the
// API server (its last finalizer cleared, the object gone for good). It is
// optional: most cleanup belongs in a finalizer.Handler instead, since that
// runs while the object still exists and can report failure by simply not
// removing its finalizer.
type DeleteHandler interface {
	Delete(key string, uid string)
}

// Config configures a Reconciler.
type Config struct {
	Client               rtclient.Client
	NewObject            func() entity.Object
	Cache                gencache.Cache
	Finalizers           *finalizer.Registry
	User                 UserReconciler
	OnDelete             DeleteHandler
	AutoAttachFinalizers bool
	AutoDetachFinalizers bool
	FinalizeRequeueAfter time.Duration
	Recorder             event.Recorder
	Log                  logging.Logger
}

// Reconciler implements dispatch.Handler, routing each QueueEntry to
// ReconcileEntity, FinalizePath, or DeletePath.
type Reconciler struct {
	cfg Config
}

// New returns a Reconciler built from cfg.
func New(cfg Config) *Reconciler {
	if cfg.FinalizeRequeueAfter == 0 {
		cfg.FinalizeRequeueAfter = time.Second
	}
	if cfg.Recorder == nil {
		cfg.Recorder = event.NewNopRecorder()
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewNopLogger()
	}
	return &Reconciler{cfg: cfg}
}

// Handle implements dispatch.Handler. A panic in user reconcile or finalizer
// logic is recovered, logged and recorded like a returned error.
func (r *Reconciler) Handle(ctx context.Context, qe workqueue.QueueEntry) (requeue bool, after time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			err := errors.Errorf("reconciliation panicked: %v", p)
			r.cfg.Log.Error(err, "reconciliation failed", "key", entity.QueueKey(qe.Entity))
			r.cfg.Recorder.Event(qe.Entity, event.Warning("ReconcileFailed", err))
			requeue, after = false, 0
		}
	}()

	var result Result
	var err error

	switch qe.ReconciliationType {
	case entity.Deleted:
		r.deletePath(qe.Entity)
		return false, 0
	case entity.Added, entity.Modified:
		if entity.IsDeleting(qe.Entity) {
			result, err = r.finalizePath(ctx, qe.Entity)
		} else {
			result, err = r.reconcileEntity(ctx, qe.Entity)
		}
	default:
		r.cfg.Log.Error(errors.Errorf("unknown reconciliation type %q", qe.ReconciliationType), "dropping entry")
		return false, 0
	}

	if err != nil {
		r.cfg.Log.Error(err, "reconciliation failed", "key", entity.QueueKey(qe.Entity))
		r.cfg.Recorder.Event(qe.Entity, event.Warning("ReconcileFailed", err))
	}
	return result.Requeue, result.RequeueAfter
}

// reconcileEntity refetches the entity, auto-attaches any missing
// finalizers, and invokes user reconcile logic. Refetching guards against
// acting on a watch event that is already stale by the time its turn comes
// up in the dispatcher.
func (r *Reconciler) reconcileEntity(ctx context.Context, stale entity.Object) (Result, error) {
	obj := r.cfg.NewObject()
	if err := r.cfg.Client.Get(ctx, client.ObjectKeyFromObject(stale), obj); err != nil {
		if apierrors.IsNotFound(err) {
			return Done(), nil
		}
		return Result{}, errors.Wrap(err, "failed to refetch entity")
	}

	if r.cfg.AutoAttachFinalizers && r.cfg.Finalizers != nil {
		if attached := addMissingFinalizers(obj, r.cfg.Finalizers.Identifiers()); attached {
			if err := r.cfg.Client.Update(ctx, obj); err != nil {
				return Result{}, errors.Wrap(err, "failed to attach finalizers")
			}
		}
	}

	if r.cfg.User == nil {
		return Done(), nil
	}
	result, err := r.cfg.User.Reconcile(ctx, obj)
	if err != nil {
		return result, err
	}
	if err := r.cfg.Client.UpdateStatus(ctx, obj); err != nil {
		return Result{}, errors.Wrap(err, "failed to persist status")
	}
	return result, nil
}

// finalizePath runs at most one finalizer per call: the entity's first
// finalizer identifier, if any. This keeps cooperating operators from
// stepping on each other's cleanup and runs finalizers strictly in list
// order: a later finalizer waits until every earlier one has been removed.
func (r *Reconciler) finalizePath(ctx context.Context, stale entity.Object) (Result, error) {
	if r.cfg.Finalizers == nil {
		return Done(), nil
	}

	obj := r.cfg.NewObject()
	if err := r.cfg.Client.Get(ctx, client.ObjectKeyFromObject(stale), obj); err != nil {
		if apierrors.IsNotFound(err) {
			return Done(), nil
		}
		return Result{}, errors.Wrap(err, "failed to refetch entity")
	}

	finalizers := obj.GetFinalizers()
	if len(finalizers) == 0 {
		return Done(), nil
	}
	// Only the entity's first finalizer is ever considered: if it isn't one
	// of ours, some other operator owns the object right now, and we wait
	// for it to clear its own finalizer before our turn comes up.
	id := finalizers[0]
	h, ok := r.cfg.Finalizers.Lookup(id)
	if !ok {
		return Done(), nil
	}

	done, err := h.Finalize(ctx, obj)
	if err != nil {
		return Result{}, errors.Wrapf(err, "finalizer %q failed", id)
	}
	if !done {
		return RequeueAfter(r.cfg.FinalizeRequeueAfter), nil
	}

	if r.cfg.AutoDetachFinalizers {
		obj.SetFinalizers(removeFinalizer(obj.GetFinalizers(), id))
		if err := r.cfg.Client.Update(ctx, obj); err != nil {
			return Result{}, errors.Wrapf(err, "failed to detach finalizer %q", id)
		}
	}

	// Another finalizer (or none) may remain; let the next turn decide.
	return RequeueAfter(r.cfg.FinalizeRequeueAfter), nil
}

// deletePath runs once the entity has been fully removed from the API
// server. There is nothing left to Get or Update; all that remains is
// internal bookkeeping and an optional user notification.
func (r *Reconciler) deletePath(obj entity.Object) {
	r.cfg.Cache.Delete(obj.GetUID())
	if r.cfg.OnDelete != nil {
		r.cfg.OnDelete.Delete(entity.QueueKey(obj), string(obj.GetUID()))
	}
}

func addMissingFinalizers(obj entity.Object, identifiers []string) bool {
	present := obj.GetFinalizers()
	changed := false
	for _, id := range identifiers {
		if !contains(present, id) {
			present = append(present, id)
			changed = true
		}
	}
	if changed {
		obj.SetFinalizers(present)
	}
	return changed
}

func removeFinalizer(finalizers []string, target string) []string {
	out := finalizers[:0]
	for _, f := range finalizers {
		if f != target {
			out = append(out, f)
		}
	}
	return out
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
