// Package evaltest provides an in-memory eval.Env for testing compute
// functions one attempt at a time.
package evaltest

import (
	"fmt"

	"github.com/albertocavalcante/go-bzlresolve/eval"
)

// Env is an eval.Env backed by maps. Keys absent from both Values and
// Errors are reported as unavailable and recorded in Requested.
type Env struct {
	Values    map[eval.Key]any
	Errors    map[eval.Key]error
	Requested []eval.Key
	Events    []eval.Event

	key   eval.Key
	state any
}

var _ eval.Env = (*Env)(nil)

// New returns an empty Env for computations of key.
func New(key eval.Key) *Env {
	return &Env{
		Values: make(map[eval.Key]any),
		Errors: make(map[eval.Key]error),
		key:    key,
	}
}

// Set makes key available with value v.
func (e *Env) Set(key eval.Key, v any) *Env {
	e.Values[key] = v
	return e
}

// Fail records err as the failure of key.
func (e *Env) Fail(key eval.Key, err error) *Env {
	e.Errors[key] = err
	return e
}

// Restart clears per-attempt bookkeeping and keeps the computation state,
// as the engine does between attempts.
func (e *Env) Restart() {
	e.Requested = nil
	e.Events = nil
}

func (e *Env) Get(key eval.Key) (any, bool, error) {
	if err, ok := e.Errors[key]; ok {
		return nil, true, err
	}
	if v, ok := e.Values[key]; ok {
		return v, true, nil
	}
	e.Requested = append(e.Requested, key)
	return nil, false, nil
}

func (e *Env) State(init func() any) any {
	if e.state == nil {
		e.state = init()
	}
	return e.state
}

func (e *Env) Warnf(format string, args ...any) {
	e.Events = append(e.Events, eval.Event{Level: eval.LevelWarn, Key: e.key, Message: fmt.Sprintf(format, args...)})
}

func (e *Env) Infof(format string, args ...any) {
	e.Events = append(e.Events, eval.Event{Level: eval.LevelInfo, Key: e.key, Message: fmt.Sprintf(format, args...)})
}

// Warnings returns the messages of the warning events of the last attempt.
func (e *Env) Warnings() []string {
	var out []string
	for _, ev := range e.Events {
		if ev.Level == eval.LevelWarn {
			out = append(out, ev.Message)
		}
	}
	return out
}
