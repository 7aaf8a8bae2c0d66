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
	"errors"
	"testing"
	"time"

	"github.com/kubeops/operator-runtime/pkg/logging"
)

// fakeGate drives its onStart/onStop callbacks directly, standing in for a
// real leaderelection.Gate so these tests don't need a live resourcelock.
type fakeGate struct {
	becomeLeader bool
	stopAfter    <-chan struct{}
}

func (g *fakeGate) Run(ctx context.Context, onStart func(context.Context), onStop func()) error {
	if g.becomeLeader {
		leaderCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		onStart(leaderCtx)
		if g.stopAfter != nil {
			<-g.stopAfter
		} else {
			<-ctx.Done()
		}
		onStop()
	} else {
		<-ctx.Done()
	}
	return ctx.Err()
}

type fakeWatchRunner struct {
	started chan struct{}
	done    chan struct{}
	err     error
}

func newFakeWatchRunner(err error) *fakeWatchRunner {
	return &fakeWatchRunner{started: make(chan struct{}), done: make(chan struct{}), err: err}
}

func (w *fakeWatchRunner) Run(ctx context.Context, initialResourceVersion string) error {
	close(w.started)
	defer close(w.done)
	if w.err != nil {
		return w.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestLeaderGatedRunStartsWatcherWhenLeading(t *testing.T) {
	fw := newFakeWatchRunner(nil)
	lg := &LeaderGated{
		watcher: fw,
		gate:    &fakeGate{becomeLeader: true},
		log:     logging.NewNopLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- lg.Run(ctx, "") }()

	select {
	case <-fw.started:
	case <-time.After(time.Second):
		t.Fatal("LeaderGated.Run never started the inner watcher")
	}

	cancel()

	select {
	case <-fw.done:
	case <-time.After(time.Second):
		t.Fatal("the inner watcher was never stopped after the gate stopped leading")
	}
	<-runDone
}

func TestLeaderGatedRunNeverStartsWatcherWithoutLeadership(t *testing.T) {
	fw := newFakeWatchRunner(nil)
	lg := &LeaderGated{
		watcher: fw,
		gate:    &fakeGate{becomeLeader: false},
		log:     logging.NewNopLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- lg.Run(ctx, "") }()

	select {
	case <-fw.started:
		t.Fatal("the inner watcher started despite never acquiring leadership")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	<-runDone
}

func TestLeaderGatedRunSurfacesWatcherError(t *testing.T) {
	wantErr := errors.New("watch channel closed")
	fw := newFakeWatchRunner(wantErr)
	stop := make(chan struct{})
	lg := &LeaderGated{
		watcher: fw,
		gate:    &fakeGate{becomeLeader: true, stopAfter: stop},
		log:     logging.NewNopLogger(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- lg.Run(ctx, "") }()

	select {
	case <-fw.done:
	case <-time.After(time.Second):
		t.Fatal("the inner watcher never ran")
	}
	close(stop)

	select {
	case err := <-runDone:
		if err == nil || err.Error() != wantErr.Error() {
			t.Errorf("Run() error = %v, want %v", err, wantErr)
		}
	case <-time.After(time.Second):
		t.Fatal("LeaderGated.Run never returned after the watcher failed")
	}
}
