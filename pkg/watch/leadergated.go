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

package watch

import (
	"context"

	"github.com/kubeops/operator-runtime/pkg/errors"
	"github.com/kubeops/operator-runtime/pkg/leaderelection"
	"github.com/kubeops/operator-runtime/pkg/logging"
)

// watchRunner is the shape LeaderGated drives; *Watcher satisfies it
// directly, and a fake implementation lets tests exercise LeaderGated
// without running a real watch against an API server.
type watchRunner interface {
	Run(ctx context.Context, initialResourceVersion string) error
}

// gateRunner is the shape of *leaderelection.Gate that LeaderGated depends
// on, narrowed so tests can drive LeaderGated's start/stop logic without a
// real leader election round-trip.
type gateRunner interface {
	Run(ctx context.Context, onStart func(context.Context), onStop func()) error
}

// LeaderGated wraps a Watcher so it only runs while this process holds the
// leader lease, starting and stopping the inner Watcher on lease
// transitions. The GenerationCache and TimedQueue the Watcher feeds are
// owned by the caller, not by LeaderGated, so they outlive a lease handoff
// untouched.
type LeaderGated struct {
	watcher watchRunner
	gate    gateRunner
	log     logging.Logger
}

// NewLeaderGated returns a LeaderGated running w only while gate reports
// this process as leader.
func NewLeaderGated(w *Watcher, gate *leaderelection.Gate, log logging.Logger) *LeaderGated {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &LeaderGated{watcher: w, gate: gate, log: log}
}

// Run blocks until ctx is cancelled or the underlying Watcher reports a
// non-recoverable error while this process was leader.
func (lg *LeaderGated) Run(ctx context.Context, initialResourceVersion string) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	errs := make(chan error, 1)
	var cancel context.CancelFunc

	runErr := lg.gate.Run(ctx,
		func(leaderCtx context.Context) {
			leaderCtx, cancel = context.WithCancel(leaderCtx)
			go func() {
				if err := lg.watcher.Run(leaderCtx, initialResourceVersion); err != nil && !errors.Is(err, context.Canceled) {
					select {
					case errs <- err:
					default:
					}
					stop()
				}
			}()
		},
		func() {
			if cancel != nil {
				cancel()
			}
		},
	)

	select {
	case err := <-errs:
		return err
	default:
		return runErr
	}
}
