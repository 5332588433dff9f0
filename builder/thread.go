// Package builder offers a thin, chainable convenience wrapper over
// engine.Completer so callers don't thread thread/stage id strings through
// their own code. It is not a full SDK surface — just Stage/Thread handles
// over the façade's string-keyed API.
package builder

import (
	"context"
	"time"

	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/engine"
	"github.com/opencompleter/completer/graph"
)

// Thread wraps a single thread id and the Completer that owns it.
type Thread struct {
	completer *engine.Completer
	id        string
}

// NewThread creates a fresh thread on completer.
func NewThread(completer *engine.Completer) *Thread {
	return &Thread{completer: completer, id: completer.CreateThread()}
}

// ID returns the underlying thread id.
func (t *Thread) ID() string { return t.id }

// Commit marks the thread committed; stages can still be created on it
// afterwards. It returns whether this call performed the transition (false
// if the thread was already committed).
func (t *Thread) Commit() (bool, error) { return t.completer.Commit(t.id) }

// Stages returns the ids of every stage created on this thread, in
// creation order.
func (t *Thread) Stages() ([]string, error) { return t.completer.ListStages(t.id) }

// Stage wraps a single stage id within its owning Thread.
type Stage struct {
	thread *Thread
	id     string
}

// ID returns the underlying stage id.
func (s *Stage) ID() string { return s.id }

func (t *Thread) wrap(id string, err error) (*Stage, error) {
	if err != nil {
		return nil, err
	}
	return &Stage{thread: t, id: id}, nil
}

// Supply creates a new 0-arity stage running fn.
func (t *Thread) Supply(ctx context.Context, fn graph.Closure) (*Stage, error) {
	return t.wrap(t.completer.Supply(ctx, t.id, fn))
}

// CompletedValue creates a stage already resolved with value.
func (t *Thread) CompletedValue(value datum.Result) (*Stage, error) {
	return t.wrap(t.completer.CompletedValue(t.id, value))
}

// External creates a stage resolved from outside the process, returning
// the stage handle and the complete/fail URLs a third party should call.
func (t *Thread) External() (stage *Stage, completeURL, failURL string, err error) {
	id, completeURL, failURL, err := t.completer.External(t.id)
	if err != nil {
		return nil, "", "", err
	}
	return &Stage{thread: t, id: id}, completeURL, failURL, nil
}

// Delay creates a stage that resolves after d elapses.
func (t *Thread) Delay(ctx context.Context, d time.Duration) (*Stage, error) {
	return t.wrap(t.completer.Delay(ctx, t.id, d))
}

// ThenApply chains a value-producing closure onto s.
func (s *Stage) ThenApply(ctx context.Context, fn graph.ValueClosure) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.ThenApply(ctx, s.thread.id, s.id, fn))
}

// ThenAccept chains a side-effecting closure onto s.
func (s *Stage) ThenAccept(ctx context.Context, fn func(context.Context, datum.Datum) error) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.ThenAccept(ctx, s.thread.id, s.id, fn))
}

// ThenRun chains a no-argument closure onto s.
func (s *Stage) ThenRun(ctx context.Context, fn func(context.Context) error) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.ThenRun(ctx, s.thread.id, s.id, fn))
}

// ThenCompose chains a closure that resolves to a stage reference,
// redirecting resolution onto the stage it names.
func (s *Stage) ThenCompose(ctx context.Context, fn graph.ValueClosure) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.ThenCompose(ctx, s.thread.id, s.id, fn))
}

// ThenCombine joins s and other with a value-producing closure.
func (s *Stage) ThenCombine(ctx context.Context, other *Stage, fn graph.BiValueClosure) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.ThenCombine(ctx, s.thread.id, s.id, other.id, fn))
}

// ThenAcceptBoth joins s and other with a side-effecting closure.
func (s *Stage) ThenAcceptBoth(ctx context.Context, other *Stage, fn func(context.Context, datum.Datum, datum.Datum) error) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.ThenAcceptBoth(ctx, s.thread.id, s.id, other.id, fn))
}

// WhenComplete observes s's result without altering it. fn receives the
// two-slot input shape: [parentResult, Success(Empty)] on success or
// [Success(Empty), Failure(parentError)] on failure.
func (s *Stage) WhenComplete(ctx context.Context, fn func(context.Context, [2]datum.Result)) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.WhenComplete(ctx, s.thread.id, s.id, fn))
}

// Handle transforms s's result regardless of outcome. fn receives the
// two-slot input shape: [parentResult, Success(Empty)] on success or
// [Success(Empty), Failure(parentError)] on failure.
func (s *Stage) Handle(ctx context.Context, fn func(context.Context, [2]datum.Result) (datum.Datum, error)) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.Handle(ctx, s.thread.id, s.id, fn))
}

// Exceptionally recovers from s's failure.
func (s *Stage) Exceptionally(ctx context.Context, fn func(context.Context, datum.Datum) (datum.Datum, error)) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.Exceptionally(ctx, s.thread.id, s.id, fn))
}

// AcceptEither runs fn over whichever of s, other settles first.
func (s *Stage) AcceptEither(ctx context.Context, other *Stage, fn func(context.Context, datum.Datum) error) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.AcceptEither(ctx, s.thread.id, s.id, other.id, fn))
}

// ApplyToEither is AcceptEither for a value-producing closure.
func (s *Stage) ApplyToEither(ctx context.Context, other *Stage, fn graph.ValueClosure) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.ApplyToEither(ctx, s.thread.id, s.id, other.id, fn))
}

// InvokeFunction invokes a nested function with s's value once it succeeds.
func (s *Stage) InvokeFunction(ctx context.Context, buildRequest func(datum.Datum) datum.HTTPRequest) (*Stage, error) {
	return s.thread.wrap(s.thread.completer.InvokeFunction(ctx, s.thread.id, s.id, buildRequest))
}

// AllOf resolves once every named stage succeeds.
func (t *Thread) AllOf(ctx context.Context, stages ...*Stage) (*Stage, error) {
	return t.wrap(t.completer.AllOf(ctx, t.id, ids(stages)...))
}

// AnyOf resolves with whichever named stage settles first.
func (t *Thread) AnyOf(ctx context.Context, stages ...*Stage) (*Stage, error) {
	return t.wrap(t.completer.AnyOf(ctx, t.id, ids(stages)...))
}

func ids(stages []*Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = s.id
	}
	return out
}

// WaitForCompletion blocks until s resolves and returns its success value
// or a CloudCompletionException wrapping its failure.
func (s *Stage) WaitForCompletion(ctx context.Context) (datum.Datum, error) {
	return s.thread.completer.WaitForCompletion(ctx, s.thread.id, s.id)
}
