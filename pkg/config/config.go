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

// Package config holds the runtime's operator-wide settings and their
// pflag bindings, following the same fail-fast Validate convention the
// rest of this codebase uses for anything assembled from user input.
package config

import (
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kubeops/operator-runtime/pkg/dispatch"
	"github.com/kubeops/operator-runtime/pkg/errors"
)

var nonWordRunes = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeName lowercases name and collapses any run of non-alphanumeric
// characters into a single hyphen, so it's safe to use as a lease name and
// label value.
func normalizeName(name string) string {
	return strings.Trim(nonWordRunes.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// LeaderElectionMode selects how, if at all, an operator coordinates
// multiple replicas.
type LeaderElectionMode string

// Leader election modes.
const (
	// LeaderElectionNone runs every replica as an active watcher. Only
	// appropriate for single-replica deployments.
	LeaderElectionNone LeaderElectionMode = "None"
	// LeaderElectionSingle uses a single Kubernetes Lease in the
	// operator's own namespace.
	LeaderElectionSingle LeaderElectionMode = "Single"
	// LeaderElectionCustom delegates lock construction to the embedding
	// application.
	LeaderElectionCustom LeaderElectionMode = "Custom"
)

// QueueStrategy selects the TimedQueue implementation a kind uses.
type QueueStrategy string

// Queue strategies.
const (
	// QueueInMemory uses the in-process pkg/workqueue.TimedQueue.
	QueueInMemory QueueStrategy = "InMemory"
	// QueueCustom is accepted by Validate, but there is no hook for
	// supplying a queue: pkg/operator builds the in-memory TimedQueue for
	// it as well.
	QueueCustom QueueStrategy = "Custom"
)

// Settings are the operator-wide knobs that apply across every kind the
// operator manages, unless a kind overrides them.
type Settings struct {
	// Name identifies this operator, used as the leader election lease
	// name.
	Name string
	// Namespace the operator and its leader election lease run in. It does
	// not scope the watch: entities are watched in every namespace.
	Namespace string

	LeaderElection LeaderElectionMode
	LeaseDuration  time.Duration
	RenewDeadline  time.Duration
	RetryPeriod    time.Duration

	QueueStrategy QueueStrategy

	// MaxParallel bounds how many reconciliations of one kind run at once;
	// every kind built from these Settings gets its own bound of this size.
	// Defaults to twice the number of CPUs.
	MaxParallel int64
	// ConflictStrategy decides what happens when a ready entry collides
	// with an in-flight reconciliation for the same entity.
	ConflictStrategy dispatch.ConflictStrategy
	// RequeueDelay is used by the RequeueAfterDelay conflict strategy.
	RequeueDelay time.Duration

	// AutoAttachFinalizers causes the Reconciler to add every registered
	// finalizer to a new entity before invoking user reconcile logic.
	AutoAttachFinalizers bool
	// AutoDetachFinalizers causes the Reconciler to remove a finalizer
	// once its Handler reports done.
	AutoDetachFinalizers bool

	// CacheMaxEntries bounds the GenerationCache, if greater than zero. A
	// value of zero uses an unbounded cache.
	CacheMaxEntries int
	CacheTTL        time.Duration
}

// Default returns Settings with every field set to its documented default.
func Default(name string) Settings {
	return Settings{
		Name:                 normalizeName(name),
		LeaderElection:       LeaderElectionNone,
		LeaseDuration:        15 * time.Second,
		RenewDeadline:        10 * time.Second,
		RetryPeriod:          2 * time.Second,
		QueueStrategy:        QueueInMemory,
		MaxParallel:          int64(2 * runtime.NumCPU()),
		ConflictStrategy:     dispatch.RequeueAfterDelay,
		RequeueDelay:         5 * time.Second,
		AutoAttachFinalizers: true,
		AutoDetachFinalizers: true,
	}
}

// Validate checks Settings for internal consistency, failing fast before
// any runtime component is constructed from it.
func (s Settings) Validate() error {
	if s.Name == "" {
		return errors.New("name must not be empty")
	}
	if s.MaxParallel <= 0 {
		return errors.New("maxParallel must be greater than zero")
	}
	switch s.LeaderElection {
	case LeaderElectionNone, LeaderElectionSingle, LeaderElectionCustom:
	default:
		return errors.Errorf("unknown leader election mode %q", s.LeaderElection)
	}
	if s.LeaderElection != LeaderElectionNone && s.Namespace == "" {
		return errors.New("namespace must be set when leader election is enabled")
	}
	switch s.QueueStrategy {
	case QueueInMemory, QueueCustom:
	default:
		return errors.Errorf("unknown queue strategy %q", s.QueueStrategy)
	}
	switch s.ConflictStrategy {
	case dispatch.Discard, dispatch.RequeueAfterDelay, dispatch.WaitForCompletion:
	default:
		return errors.Errorf("unknown conflict strategy %q", s.ConflictStrategy)
	}
	if s.ConflictStrategy == dispatch.RequeueAfterDelay && s.RequeueDelay <= 0 {
		return errors.New("requeueDelay must be greater than zero when using RequeueAfterDelay")
	}
	if s.CacheMaxEntries < 0 {
		return errors.New("cacheMaxEntries must not be negative")
	}
	return nil
}

// BindFlags registers Settings' fields on fs, in the style of every other
// flag-bound config struct in this codebase.
func (s *Settings) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.Name, "operator-name", s.Name, "Name identifying this operator instance.")
	fs.StringVar(&s.Namespace, "namespace", s.Namespace, "Namespace the operator and its leader election lease run in.")
	fs.StringVar((*string)(&s.LeaderElection), "leader-election", string(s.LeaderElection), "Leader election mode: None, Single, or Custom.")
	fs.DurationVar(&s.LeaseDuration, "leader-election-lease-duration", s.LeaseDuration, "Leader election lease duration.")
	fs.DurationVar(&s.RenewDeadline, "leader-election-renew-deadline", s.RenewDeadline, "Leader election renew deadline.")
	fs.DurationVar(&s.RetryPeriod, "leader-election-retry-period", s.RetryPeriod, "Leader election retry period.")
	fs.Int64Var(&s.MaxParallel, "max-parallel-reconciles", s.MaxParallel, "Maximum number of reconciliations running at once.")
	fs.StringVar((*string)(&s.ConflictStrategy), "conflict-strategy", string(s.ConflictStrategy), "Conflict strategy: Discard, RequeueAfterDelay, or WaitForCompletion.")
	fs.DurationVar(&s.RequeueDelay, "requeue-delay", s.RequeueDelay, "Delay used by the RequeueAfterDelay conflict strategy.")
	fs.BoolVar(&s.AutoAttachFinalizers, "auto-attach-finalizers", s.AutoAttachFinalizers, "Automatically attach registered finalizers to new entities.")
	fs.BoolVar(&s.AutoDetachFinalizers, "auto-detach-finalizers", s.AutoDetachFinalizers, "Automatically detach finalizers once their handler reports done.")
	fs.IntVar(&s.CacheMaxEntries, "generation-cache-max-entries", s.CacheMaxEntries, "Bound the generation cache to this many entries; 0 means unbounded.")
	fs.DurationVar(&s.CacheTTL, "generation-cache-ttl", s.CacheTTL, "Expire generation cache entries after this long; 0 means no expiry.")
}
