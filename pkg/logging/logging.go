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

// Package logging provides a small structured logging interface, backed by
// github.com/go-logr/logr, used throughout the runtime instead of any one
// concrete logging library.
package logging

import "github.com/go-logr/logr"

// A Logger logs messages. Debug messages are typically only surfaced when
// verbose logging is enabled.
type Logger interface {
	// Info logs a message with optional structured key-value pairs.
	Info(msg string, keysAndValues ...any)
	// Debug logs a message that is only interesting when debugging.
	Debug(msg string, keysAndValues ...any)
	// Error logs a message associated with an error.
	Error(err error, msg string, keysAndValues ...any)
	// WithValues returns a Logger that always logs the supplied key-value
	// pairs alongside whatever is passed to Info/Debug/Error.
	WithValues(keysAndValues ...any) Logger
}

// NewLogrLogger returns a Logger backed by the supplied logr.Logger. Debug
// messages are emitted at a higher verbosity (V(1)) than Info.
func NewLogrLogger(l logr.Logger) Logger {
	return logrLogger{log: l}
}

type logrLogger struct {
	log logr.Logger
}

func (l logrLogger) Info(msg string, keysAndValues ...any) {
	l.log.Info(msg, keysAndValues...)
}

func (l logrLogger) Debug(msg string, keysAndValues ...any) {
	l.log.V(1).Info(msg, keysAndValues...)
}

func (l logrLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(err, msg, keysAndValues...)
}

func (l logrLogger) WithValues(keysAndValues ...any) Logger {
	return logrLogger{log: l.log.WithValues(keysAndValues...)}
}

// NewNopLogger returns a Logger that does nothing. It is the default for
// every constructor in this module that accepts a Logger option.
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (n nopLogger) Info(_ string, _ ...any)           {}
func (n nopLogger) Debug(_ string, _ ...any)          {}
func (n nopLogger) Error(_ error, _ string, _ ...any) {}
func (n nopLogger) WithValues(_ ...any) Logger        { return n }
