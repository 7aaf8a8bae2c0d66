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

// Package operator wires one entity kind's GenerationCache, TimedQueue,
// Watcher, Dispatcher, and Reconciler together from pkg/config.Settings,
// following the same fluent builder shape
// pkg/reconciler/dynamic.Builder/ManagedReconcilerBuilder used in this
// codebase's previous incarnation.
package operator

import (
	"context"
	"sync"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
	"sigs.k8s.io/controller-runtime/pkg/client"

	rtclient "github.com/kubeops/operator-runtime/pkg/client"
	"github.com/kubeops/operator-runtime/pkg/config"
	"github.com/kubeops/operator-runtime/pkg/dispatch"
	"github.com/kubeops/operator-runtime/pkg/entity"
	"github.com/kubeops/operator-runtime/pkg/errors"
	"github.com/kubeops/operator-runtime/pkg/event"
	"github.com/kubeops/operator-runtime/pkg/finalizer"
	"github.com/kubeops/operator-runtime/pkg/gencache"
	"github.com/kubeops/operator-runtime/pkg/leaderelection"
	"github.com/kubeops/operator-runtime/pkg/logging"
	"github.com/kubeops/operator-runtime/pkg/metrics"
	"github.com/kubeops/operator-runtime/pkg/reconciler"
	"github.com/kubeops/operator-runtime/pkg/watch"
	"github.com/kubeops/operator-runtime/pkg/workqueue"
)

// watchRunner is satisfied by both *watch.Watcher and *watch.LeaderGated,
// so Kind.Run doesn't need to know which one it's driving.
type watchRunner interface {
	Run(ctx context.Context, initialResourceVersion string) error
}

// KindBuilder assembles the reconciliation runtime for a single entity
// kind. Each With method returns the builder so calls can be chained.
type KindBuilder struct {
	kind       string
	newObject  func() entity.Object
	newList    func() client.ObjectList
	client     client.Client
	settings   config.Settings
	user       reconciler.UserReconciler
	onDelete   reconciler.DeleteHandler
	finalizers *finalizer.Registry
	recorder   event.Recorder
	log        logging.Logger
	kubeClient kubernetes.Interface
	leaderLock resourcelock.Interface
	err        error
}

// NewKindBuilder starts building the runtime for kind (used as the metrics
// label and to derive the default operator name), backed by c, whose
// objects are produced by newObject and listed by newList.
func NewKindBuilder(kind string, c client.Client, newObject func() entity.Object, newList func() client.ObjectList) *KindBuilder {
	return &KindBuilder{
		kind:      kind,
		newObject: newObject,
		newList:   newList,
		client:    c,
		settings:  config.Default(kind),
	}
}

// WithSettings overrides the default operator settings.
func (b *KindBuilder) WithSettings(s config.Settings) *KindBuilder {
	b.settings = s
	return b
}

// WithReconciler sets the user reconcile logic invoked for non-deleting
// entities.
func (b *KindBuilder) WithReconciler(r reconciler.UserReconciler) *KindBuilder {
	b.user = r
	return b
}

// WithFinalizer registers a named finalizer, deriving its identifier from
// group.
func (b *KindBuilder) WithFinalizer(group, name string, h finalizer.Handler) *KindBuilder {
	if b.finalizers == nil {
		b.finalizers = finalizer.NewRegistry(group)
	}
	b.finalizers.Register(name, h)
	return b
}

// WithOnDelete sets the hook invoked once an entity is fully removed.
func (b *KindBuilder) WithOnDelete(h reconciler.DeleteHandler) *KindBuilder {
	b.onDelete = h
	return b
}

// WithRecorder sets the event.Recorder used for warning/normal events.
func (b *KindBuilder) WithRecorder(r event.Recorder) *KindBuilder {
	b.recorder = r
	return b
}

// WithLogger sets the logging.Logger used throughout this kind's runtime.
func (b *KindBuilder) WithLogger(l logging.Logger) *KindBuilder {
	b.log = l
	return b
}

// WithKubeClient sets the client-go clientset used to build the default
// Lease-based resourcelock when Settings.LeaderElection is
// config.LeaderElectionSingle.
func (b *KindBuilder) WithKubeClient(c kubernetes.Interface) *KindBuilder {
	b.kubeClient = c
	return b
}

// WithLeaderElection overrides the resourcelock.Interface used for leader
// election. Required when Settings.LeaderElection is
// config.LeaderElectionCustom; with config.LeaderElectionSingle it replaces
// the default Lease lock; ignored with config.LeaderElectionNone.
func (b *KindBuilder) WithLeaderElection(lock resourcelock.Interface) *KindBuilder {
	b.leaderLock = lock
	return b
}

// Kind is the assembled, runnable reconciliation runtime for one entity
// kind.
type Kind struct {
	name       string
	cache      gencache.Cache
	queue      *workqueue.TimedQueue
	watcher    watchRunner
	dispatcher *dispatch.Dispatcher
	log        logging.Logger
}

// Build validates settings and constructs the runtime. It does not start
// anything; call Run to do that.
func (b *KindBuilder) Build() (*Kind, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}
	if b.client == nil {
		return nil, errors.New("client must be set")
	}
	if b.newObject == nil || b.newList == nil {
		return nil, errors.New("newObject and newList must be set")
	}

	log := b.log
	if log == nil {
		log = logging.NewNopLogger()
	}
	recorder := b.recorder
	if recorder == nil {
		recorder = event.NewNopRecorder()
	}

	var cache gencache.Cache
	if b.settings.CacheMaxEntries > 0 {
		cache = gencache.NewBounded(b.settings.CacheMaxEntries, b.settings.CacheTTL)
	} else {
		cache = gencache.NewUnbounded()
	}

	queue := workqueue.New()

	rtc := rtclient.NewForKind(b.client, b.newList)

	plainWatcher := watch.New(rtc, cache, queue, log)
	var watcher watchRunner = plainWatcher
	if b.settings.LeaderElection != config.LeaderElectionNone {
		lock := b.leaderLock
		if lock == nil {
			switch b.settings.LeaderElection {
			case config.LeaderElectionSingle:
				if b.kubeClient == nil {
					return nil, errors.New("leader election mode Single requires a kube client; call WithKubeClient")
				}
				var err error
				lock, err = leaderelection.NewLeaseLock(b.kubeClient, b.settings.Namespace, b.settings.Name)
				if err != nil {
					return nil, errors.Wrap(err, "failed to build leader election lock")
				}
			default:
				return nil, errors.New("leader election mode Custom requires a resourcelock.Interface; call WithLeaderElection")
			}
		}
		gate := leaderelection.New(leaderelection.Config{
			Lock:          lock,
			LeaseDuration: b.settings.LeaseDuration,
			RenewDeadline: b.settings.RenewDeadline,
			RetryPeriod:   b.settings.RetryPeriod,
			Log:           log,
		})
		watcher = watch.NewLeaderGated(plainWatcher, gate, log)
	}

	rec := reconciler.New(reconciler.Config{
		Client:               rtc,
		NewObject:            b.newObject,
		Cache:                cache,
		Finalizers:           b.finalizers,
		User:                 b.user,
		OnDelete:             b.onDelete,
		AutoAttachFinalizers: b.settings.AutoAttachFinalizers,
		AutoDetachFinalizers: b.settings.AutoDetachFinalizers,
		FinalizeRequeueAfter: b.settings.RequeueDelay,
		Recorder:             recorder,
		Log:                  log,
	})

	m := metrics.New(b.kind, func() float64 { return float64(queue.Len()) })

	dispatcher := dispatch.New(queue, rec, dispatch.Config{
		MaxParallel:  b.settings.MaxParallel,
		Strategy:     b.settings.ConflictStrategy,
		RequeueDelay: b.settings.RequeueDelay,
		Recorder:     recorder,
		Log:          log,
		Metrics:      m,
	})

	return &Kind{
		name:       b.kind,
		cache:      cache,
		queue:      queue,
		watcher:    watcher,
		dispatcher: dispatcher,
		log:        log,
	}, nil
}

// Run starts the watcher and dispatcher and blocks until ctx is cancelled
// or either one exits with an error.
func (k *Kind) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		errs <- k.watcher.Run(ctx, "")
	}()
	go func() {
		defer wg.Done()
		errs <- k.dispatcher.Run(ctx)
	}()

	go func() {
		<-ctx.Done()
		k.queue.ShutDown()
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil && firstErr == nil && !errors.Is(err, context.Canceled) {
			firstErr = err
			cancel()
		}
	}
	wg.Wait()
	return firstErr
}

// Stop shuts down the TimedQueue, discarding anything still scheduled; the
// dispatcher then stops taking entries and its loop returns. The watcher is
// not stopped: it and Run keep going until the context passed to Run is
// cancelled.
func (k *Kind) Stop() {
	k.queue.ShutDown()
}
