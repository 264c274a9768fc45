package eval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// ErrCycle is wrapped by the error returned when a computation depends on
// itself, directly or transitively.
var ErrCycle = errors.New("dependency cycle")

// CycleError names the keys forming a cycle, starting and ending with the
// same key.
type CycleError struct {
	Path []Key
}

func (e *CycleError) Error() string {
	names := make([]string, len(e.Path))
	for i, k := range e.Path {
		names[i] = k.String()
	}
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(names, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// DefaultParallelism bounds how many pending inputs of one computation are
// evaluated at once.
const DefaultParallelism = 8

// Evaluator memoizes compute functions and drives their restarts.
//
// When a computation returns Pending, the evaluator computes the missing
// inputs (concurrently, up to the parallelism limit) and then re-runs the
// computation. Values and failures are both memoized: a key is computed to
// completion at most once per Evaluator. Two computations racing for the
// same key may both run it; the first completion wins.
type Evaluator struct {
	functions   map[FunctionName]Function
	logger      *log.Logger
	parallelism int

	mu     sync.Mutex
	done   map[Key]*entry
	events []Event
}

type entry struct {
	value any
	err   error
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger sets the logger published events and restarts are written to.
func WithLogger(l *log.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithParallelism sets how many pending inputs are evaluated at once.
// Values below one mean one.
func WithParallelism(n int) EvaluatorOption {
	return func(e *Evaluator) {
		e.parallelism = max(n, 1)
	}
}

// NewEvaluator creates an evaluator over the given functions.
func NewEvaluator(functions map[FunctionName]Function, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		functions:   functions,
		logger:      log.New(io.Discard),
		parallelism: DefaultParallelism,
		done:        make(map[Key]*entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eval computes key, and everything it depends on, and returns its value
// or its recorded failure.
func (e *Evaluator) Eval(ctx context.Context, key Key) (any, error) {
	if err := e.evaluate(ctx, key, nil); err != nil {
		return nil, err
	}
	ent, _ := e.lookup(key)
	return ent.value, ent.err
}

// Events returns the events published so far, in publication order.
func (e *Evaluator) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.events)
}

func (e *Evaluator) lookup(key Key) (*entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.done[key]
	return ent, ok
}

// complete records the outcome of key and publishes its events, unless
// another computation of key already completed.
func (e *Evaluator) complete(key Key, ent *entry, events []Event) {
	e.mu.Lock()
	if _, ok := e.done[key]; ok {
		e.mu.Unlock()
		return
	}
	e.done[key] = ent
	e.events = append(e.events, events...)
	e.mu.Unlock()

	for _, ev := range events {
		switch ev.Level {
		case LevelWarn:
			e.logger.Warn(ev.Message, "key", ev.Key.String())
		default:
			e.logger.Info(ev.Message, "key", ev.Key.String())
		}
	}
}

// evaluate runs key to completion. The returned error is not a failure of
// key itself (those are memoized) but a reason evaluation could not proceed:
// cancellation, a cycle, or a missing function.
func (e *Evaluator) evaluate(ctx context.Context, key Key, path []Key) error {
	if _, ok := e.lookup(key); ok {
		return nil
	}
	if i := slices.Index(path, key); i >= 0 {
		cycle := append(slices.Clone(path[i:]), key)
		return &CycleError{Path: cycle}
	}
	fn, ok := e.functions[key.Function()]
	if !ok {
		return fmt.Errorf("no function registered for %s (%s)", key.Function(), key)
	}
	path = append(slices.Clone(path), key)

	var state any
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		env := &evalEnv{ev: e, key: key, state: &state}
		res, err := fn.Compute(ctx, key, env)
		if err != nil {
			e.complete(key, &entry{err: err}, env.events)
			return nil
		}
		if !res.IsPending() {
			e.complete(key, &entry{value: res.Value()}, env.events)
			return nil
		}

		missing := make([]Key, 0, len(res.Missing()))
		for _, k := range res.Missing() {
			if _, done := e.lookup(k); !done && !slices.Contains(missing, k) {
				missing = append(missing, k)
			}
		}
		if len(missing) == 0 {
			return fmt.Errorf("%s suspended on inputs that are already available", key)
		}
		e.logger.Debug("restart", "key", key.String(), "attempt", attempt, "pending", len(missing))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallelism)
		for _, dep := range missing {
			g.Go(func() error {
				return e.evaluate(gctx, dep, path)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
}

type evalEnv struct {
	ev     *Evaluator
	key    Key
	state  *any
	events []Event
}

func (v *evalEnv) Get(key Key) (any, bool, error) {
	ent, ok := v.ev.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return ent.value, true, ent.err
}

func (v *evalEnv) State(init func() any) any {
	if *v.state == nil {
		*v.state = init()
	}
	return *v.state
}

func (v *evalEnv) Warnf(format string, args ...any) {
	v.events = append(v.events, Event{Level: LevelWarn, Key: v.key, Message: fmt.Sprintf(format, args...)})
}

func (v *evalEnv) Infof(format string, args ...any) {
	v.events = append(v.events, Event{Level: LevelInfo, Key: v.key, Message: fmt.Sprintf(format, args...)})
}
