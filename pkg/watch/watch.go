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

// Package watch turns a raw Kubernetes watch stream into TimedQueue
// entries, dropping any event that does not represent a change the
// reconciler has not already seen. It is built on
// k8s.io/client-go/tools/watch.RetryWatcher, which already knows how to
// reconnect with backoff and resume from the last resourceVersion, so this
// package only has to add the generation filter and the translation into
// entity.ReconciliationType.
package watch

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apiwatch "k8s.io/apimachinery/pkg/watch"
	toolscache "k8s.io/client-go/tools/cache"
	clientwatch "k8s.io/client-go/tools/watch"

	rtclient "github.com/kubeops/operator-runtime/pkg/client"
	"github.com/kubeops/operator-runtime/pkg/entity"
	"github.com/kubeops/operator-runtime/pkg/errors"
	"github.com/kubeops/operator-runtime/pkg/gencache"
	"github.com/kubeops/operator-runtime/pkg/logging"
	"github.com/kubeops/operator-runtime/pkg/workqueue"
)

// cacheWatcher adapts a rtclient.Client's Watch method to
// k8s.io/client-go/tools/cache.Watcher, the interface RetryWatcher needs.
type cacheWatcher struct {
	ctx context.Context
	c   rtclient.Client
}

func (w cacheWatcher) Watch(options metav1.ListOptions) (apiwatch.Interface, error) {
	return w.c.Watch(w.ctx, options)
}

var _ toolscache.Watcher = cacheWatcher{}

// Watcher watches one entity kind and feeds a TimedQueue with
// generation-filtered reconciliation work. A Deleted event always enqueues,
// first evicting the entity from the GenerationCache and cancelling
// anything already scheduled for it so a stale requeue from before the
// deletion never fires against a deleted object; an Added or Modified
// event enqueues only if the entity's generation has increased, or it has
// never been observed before.
type Watcher struct {
	client  rtclient.Client
	cache   gencache.Cache
	queue   *workqueue.TimedQueue
	log     logging.Logger
	trigger entity.TriggerSource
}

// New returns a Watcher publishing to queue, using cache to filter
// already-seen generations.
func New(c rtclient.Client, cache gencache.Cache, queue *workqueue.TimedQueue, log logging.Logger) *Watcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Watcher{client: c, cache: cache, queue: queue, log: log, trigger: entity.ApiServer}
}

// Run starts the watch and blocks, processing events until ctx is
// cancelled or the retry watcher gives up (e.g. on a non-recoverable API
// error). initialResourceVersion should usually be "" to start from the
// current state; a non-empty list-then-watch resumption point may also be
// supplied.
func (w *Watcher) Run(ctx context.Context, initialResourceVersion string) error {
	rw, err := clientwatch.NewRetryWatcher(initialResourceVersion, cacheWatcher{ctx: ctx, c: w.client})
	if err != nil {
		return errors.Wrap(err, "failed to start retry watcher")
	}
	defer rw.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-rw.ResultChan():
			if !ok {
				return errors.New("watch channel closed")
			}
			w.handle(evt)
		}
	}
}

func (w *Watcher) handle(evt apiwatch.Event) {
	obj, ok := evt.Object.(entity.Object)
	if !ok {
		w.log.Error(errors.New("watch event object does not satisfy entity.Object"), "dropping event")
		return
	}

	wet := entity.WatchEventType(evt.Type)
	rt, err := entity.ToReconciliationType(wet)
	if err != nil {
		// Bookmark and error events fall here; neither represents entity
		// state to reconcile.
		return
	}

	uid := obj.GetUID()

	if rt == entity.Deleted {
		w.cache.Delete(uid)
		w.queue.Remove(obj)
		if err := w.queue.Enqueue(obj, entity.Deleted, w.trigger, 0); err != nil {
			w.log.Error(err, "failed to enqueue deleted entity", "key", entity.QueueKey(obj))
		}
		return
	}

	gen := entity.Generation(obj)
	if last, seen := w.cache.Get(uid); seen && gen <= last {
		return
	}
	w.cache.Observe(uid, gen)

	if err := w.queue.Enqueue(obj, rt, w.trigger, 0); err != nil {
		w.log.Error(err, "failed to enqueue entity", "key", entity.QueueKey(obj))
	}
}
