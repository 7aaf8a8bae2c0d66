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

// Package leaderelection gates the Watcher so only the elected leader of a
// replicated operator deployment processes watch events. It is a thin
// wrapper around k8s.io/client-go/tools/leaderelection, the same leader
// election primitive controller-runtime Managers use.
package leaderelection

import (
	"context"
	"os"
	"time"

	"k8s.io/apimachinery/pkg/util/uuid"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/kubeops/operator-runtime/pkg/errors"
	"github.com/kubeops/operator-runtime/pkg/logging"
)

// NewLeaseLock builds a Lease-based resourcelock.Interface for the given
// namespace/name using clientset, deriving a unique per-process identity
// the same way controller-runtime's own leader elector does (hostname plus
// a random UUID, so two replicas on the same node never collide).
func NewLeaseLock(clientset kubernetes.Interface, namespace, name string) (resourcelock.Interface, error) {
	id, err := os.Hostname()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read hostname for leader election identity")
	}
	id = id + "_" + string(uuid.NewUUID())

	return resourcelock.New(
		resourcelock.LeasesResourceLock,
		namespace,
		name,
		clientset.CoreV1(),
		clientset.CoordinationV1(),
		resourcelock.ResourceLockConfig{Identity: id},
	)
}

// Gate runs a callback only while this process holds the leader lease, and
// another callback when it loses or never acquires it.
type Gate struct {
	lock          resourcelock.Interface
	leaseDuration time.Duration
	renewDeadline time.Duration
	retryPeriod   time.Duration
	log           logging.Logger
}

// Config configures a Gate.
type Config struct {
	Lock          resourcelock.Interface
	LeaseDuration time.Duration
	RenewDeadline time.Duration
	RetryPeriod   time.Duration
	Log           logging.Logger
}

// New returns a Gate using the supplied resource lock.
func New(cfg Config) *Gate {
	if cfg.LeaseDuration == 0 {
		cfg.LeaseDuration = 15 * time.Second
	}
	if cfg.RenewDeadline == 0 {
		cfg.RenewDeadline = 10 * time.Second
	}
	if cfg.RetryPeriod == 0 {
		cfg.RetryPeriod = 2 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logging.NewNopLogger()
	}
	return &Gate{
		lock:          cfg.Lock,
		leaseDuration: cfg.LeaseDuration,
		renewDeadline: cfg.RenewDeadline,
		retryPeriod:   cfg.RetryPeriod,
		log:           cfg.Log,
	}
}

// Run blocks until ctx is cancelled, calling onStart each time this process
// becomes leader and onStop each time it stops being leader (including on
// final shutdown).
func (g *Gate) Run(ctx context.Context, onStart func(context.Context), onStop func()) error {
	elector, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
		Lock:          g.lock,
		LeaseDuration: g.leaseDuration,
		RenewDeadline: g.renewDeadline,
		RetryPeriod:   g.retryPeriod,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(leaderCtx context.Context) {
				g.log.Info("acquired leader lease")
				onStart(leaderCtx)
			},
			OnStoppedLeading: func() {
				g.log.Info("lost leader lease")
				onStop()
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to construct leader elector")
	}

	// elector.Run returns once leadership is lost; keep competing for the
	// lease until ctx is cancelled.
	for {
		elector.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
