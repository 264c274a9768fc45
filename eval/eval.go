// Package eval models computations that may suspend on inputs that are not
// yet available.
//
// A compute function returns either Done(value) or Pending(keys...). A
// pending computation is re-executed from its start once the listed inputs
// exist, so it must not perform unrepeatable side effects before the point
// where it suspends. Work that should survive restarts lives in the per-key
// state returned by Env.State.
//
// The Evaluator in this package is a small memoizing driver for these
// functions. Any engine that honours the same contract can host them.
package eval

import (
	"context"
	"fmt"
)

// FunctionName selects the compute function for a key.
type FunctionName string

// Key identifies one computation. Implementations must be comparable.
type Key interface {
	Function() FunctionName
	String() string
}

// Result is the outcome of one compute attempt.
type Result struct {
	value   any
	missing []Key
}

// Done returns a completed result.
func Done(value any) Result {
	return Result{value: value}
}

// Pending returns a suspended result naming the inputs the computation is
// waiting for. At least one key is required.
func Pending(keys ...Key) Result {
	if len(keys) == 0 {
		panic("eval.Pending requires at least one key")
	}
	return Result{missing: keys}
}

// IsPending reports whether the computation suspended.
func (r Result) IsPending() bool { return len(r.missing) > 0 }

// Value returns the completed value.
func (r Result) Value() any { return r.value }

// Missing returns the inputs a pending computation waits for.
func (r Result) Missing() []Key { return r.missing }

// Level is an event severity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
)

func (l Level) String() string {
	if l == LevelWarn {
		return "WARNING"
	}
	return "INFO"
}

// Event is a diagnostic reported by a computation.
type Event struct {
	Level   Level
	Key     Key
	Message string
}

func (e Event) String() string {
	return fmt.Sprintf("%s: %s", e.Level, e.Message)
}

// Env is what a compute function sees of the engine.
type Env interface {
	// Get returns the value of key when it has been computed. ok is false
	// while the value is unavailable; err is the failure recorded for key.
	Get(key Key) (value any, ok bool, err error)

	// State returns the state object of the running computation, creating it
	// with init on first use. The same object is returned on every restart
	// until the computation completes.
	State(init func() any) any

	// Warnf and Infof report events. Events of an attempt that ends Pending
	// are discarded.
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

// Function computes values for keys of one FunctionName.
type Function interface {
	Compute(ctx context.Context, key Key, env Env) (Result, error)
}

// FunctionFunc adapts a plain function to Function.
type FunctionFunc func(ctx context.Context, key Key, env Env) (Result, error)

// Compute calls f.
func (f FunctionFunc) Compute(ctx context.Context, key Key, env Env) (Result, error) {
	return f(ctx, key, env)
}

// Get is Env.Get with the value asserted to T.
func Get[T any](env Env, key Key) (T, bool, error) {
	var zero T
	v, ok, err := env.Get(key)
	if err != nil || !ok {
		return zero, ok, err
	}
	t, isT := v.(T)
	if !isT {
		return zero, false, fmt.Errorf("value of %s has type %T, want %T", key, v, zero)
	}
	return t, true, nil
}
