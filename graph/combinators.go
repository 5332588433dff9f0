package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/opencompleter/completer/apperrors"
	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/future"
)

// Closure is the shape of every user-supplied stage body: it receives the
// background context the engine is running under and returns either a
// success Datum or an error. A non-nil error models the closure throwing,
// translated to Result.Failed(stage_invoke_failed) by stageInvoke — never
// a bare Go panic escaping to the caller.
type Closure func(ctx context.Context) (datum.Datum, error)

// ValueClosure is a Closure that additionally receives an upstream value.
type ValueClosure func(ctx context.Context, in datum.Datum) (datum.Datum, error)

// BiValueClosure receives two upstream values, for thenCombine/thenAcceptBoth.
type BiValueClosure func(ctx context.Context, a, b datum.Datum) (datum.Datum, error)

// newNode registers a fresh node whose output future runs task, decrementing
// the graph's active count exactly once task settles.
func (g *Graph) newNode(task func() (datum.Result, error)) *Node {
	id := g.NewNodeID()
	wrapped := func() (datum.Result, error) {
		defer g.nodeResolved()
		return task()
	}
	n := &Node{id: id, output: future.New(wrapped)}
	return g.addNode(n)
}

// toFailed turns a closure error into a failing Result tagged with kind.
func toFailed(kind datum.ErrorKind, err error) datum.Result {
	return datum.FailedWith(kind, err.Error())
}

// stageInvoke is the invoke step behind every stage-running combinator in
// §4.3: it runs fn against inputs, routed through the configured
// StageInvoker collaborator when one is present. A transport error (or a
// malformed response) fails with stage_invoke_failed.
//
// Without a configured invoker, fn runs directly in-process — the mode
// every bare builder and unit test exercises, since a Go closure is a
// native function and cannot be marshaled across a real transport the way
// the spec's opaque closure-blob can. With one configured, the accumulated
// inputs are marshaled onto an HTTPRequest and handed to InvokeStage, and
// its decoded response — not fn's own return value — becomes the node's
// Result: the collaborator is standing in for wherever the closure
// actually runs, the same way a real stage-runner call would be the sole
// source of truth for the stage's outcome.
func (g *Graph) stageInvoke(ctx context.Context, fn Closure, inputs []datum.Result) datum.Result {
	if g.invoker == nil {
		value, err := fn(ctx)
		if err != nil {
			return toFailed(datum.ErrStageInvokeFailed, err)
		}
		return datum.Succeeded(value)
	}

	body, err := encodeStageInputs(inputs)
	if err != nil {
		return toFailed(datum.ErrStageInvokeFailed, err)
	}
	resp, err := g.invoker.InvokeStage(ctx, datum.HTTPRequest{
		Method:  datum.MethodPost,
		Headers: datum.Headers{"X-Completer-Thread": g.id},
		Body:    body,
	})
	if err != nil {
		return toFailed(datum.ErrStageInvokeFailed, err)
	}
	result, err := decodeStageResult(resp.Body)
	if err != nil {
		return toFailed(datum.ErrStageInvokeFailed, err)
	}
	return result
}

// Supply creates a 0-arity node whose value is produced by fn with no
// upstream dependency — the graph's entry point.
func (g *Graph) Supply(ctx context.Context, fn Closure) *Node {
	return g.newNode(func() (datum.Result, error) {
		return g.stageInvoke(ctx, fn, nil), nil
	})
}

// CompletedValue creates a node already resolved with value.
func (g *Graph) CompletedValue(value datum.Result) *Node {
	return g.newNode(func() (datum.Result, error) {
		return value, nil
	})
}

// ThenApply creates a node that runs fn over parent's value when parent
// succeeds, and short-circuits to parent's failure otherwise.
func (g *Graph) ThenApply(ctx context.Context, parent *Node, fn ValueClosure) *Node {
	return g.newNode(func() (datum.Result, error) {
		in := AwaitResult(ctx, parent.Output())
		if in.IsFailure() {
			return in, nil
		}
		closure := func(ctx context.Context) (datum.Datum, error) { return fn(ctx, in.Value()) }
		return g.stageInvoke(ctx, closure, []datum.Result{in}), nil
	})
}

// ThenAccept is ThenApply for a closure that returns no value of its own:
// success resolves to Empty.
func (g *Graph) ThenAccept(ctx context.Context, parent *Node, fn func(ctx context.Context, in datum.Datum) error) *Node {
	return g.ThenApply(ctx, parent, func(ctx context.Context, in datum.Datum) (datum.Datum, error) {
		if err := fn(ctx, in); err != nil {
			return datum.Datum{}, err
		}
		return datum.NewEmpty(), nil
	})
}

// ThenRun is ThenApply ignoring the upstream value entirely.
func (g *Graph) ThenRun(ctx context.Context, parent *Node, fn func(ctx context.Context) error) *Node {
	return g.ThenAccept(ctx, parent, func(ctx context.Context, _ datum.Datum) error {
		return fn(ctx)
	})
}

// ThenCompose creates a node that, once parent succeeds, runs fn to obtain
// a StageRef Datum and adopts the referenced node's eventual result,
// letting a stage body redirect resolution to a whole subgraph. A closure
// error fails with stage_invoke_failed; a closure return value that isn't
// a KindStageRef Datum, or that names a stage absent from this graph,
// fails with invalid_stage_response.
func (g *Graph) ThenCompose(ctx context.Context, parent *Node, fn ValueClosure) *Node {
	return g.newNode(func() (datum.Result, error) {
		in := AwaitResult(ctx, parent.Output())
		if in.IsFailure() {
			return in, nil
		}
		closure := func(ctx context.Context) (datum.Datum, error) { return fn(ctx, in.Value()) }
		r := g.stageInvoke(ctx, closure, []datum.Result{in})
		if r.IsFailure() {
			return r, nil
		}
		out := r.Value()
		if out.Kind != datum.KindStageRef {
			return datum.FailedWith(datum.ErrInvalidStageResponse, "thenCompose: closure must return a stage reference"), nil
		}
		next, err := g.FindNode(out.StageRef)
		if err != nil {
			return datum.FailedWith(datum.ErrInvalidStageResponse, fmt.Sprintf("thenCompose: unknown stage %q", out.StageRef)), nil
		}
		return AwaitResult(ctx, next.Output()), nil
	})
}

// ThenCombine creates a node that runs fn once both a and b have
// succeeded, short-circuiting to whichever fails first in evaluation
// order (a, then b).
func (g *Graph) ThenCombine(ctx context.Context, a, b *Node, fn BiValueClosure) *Node {
	return g.newNode(func() (datum.Result, error) {
		ra := AwaitResult(ctx, a.Output())
		if ra.IsFailure() {
			return ra, nil
		}
		rb := AwaitResult(ctx, b.Output())
		if rb.IsFailure() {
			return rb, nil
		}
		closure := func(ctx context.Context) (datum.Datum, error) { return fn(ctx, ra.Value(), rb.Value()) }
		return g.stageInvoke(ctx, closure, []datum.Result{ra, rb}), nil
	})
}

// ThenAcceptBoth is ThenCombine for a closure with no value of its own.
func (g *Graph) ThenAcceptBoth(ctx context.Context, a, b *Node, fn func(ctx context.Context, va, vb datum.Datum) error) *Node {
	return g.ThenCombine(ctx, a, b, func(ctx context.Context, va, vb datum.Datum) (datum.Datum, error) {
		if err := fn(ctx, va, vb); err != nil {
			return datum.Datum{}, err
		}
		return datum.NewEmpty(), nil
	})
}

// twoSlotInputs builds the two-slot input shape §4.3 defines for
// whenComplete/handle: on parent success [parentResult, Success(Empty)],
// on parent failure [Success(Empty), Failure(parentError)] — letting the
// closure inspect both the value and the error positions regardless of
// which one is live.
func twoSlotInputs(r datum.Result) [2]datum.Result {
	if r.IsSuccess() {
		return [2]datum.Result{r, datum.Succeeded(datum.NewEmpty())}
	}
	return [2]datum.Result{datum.Succeeded(datum.NewEmpty()), r}
}

// WhenComplete creates a node that observes parent's Result via fn — for
// logging or side-effecting cleanup — without altering it, and passes
// parent's Result through unchanged once fn returns. fn receives the
// two-slot input shape: [parentResult, Success(Empty)] on success or
// [Success(Empty), Failure(parentError)] on failure.
func (g *Graph) WhenComplete(ctx context.Context, parent *Node, fn func(ctx context.Context, inputs [2]datum.Result)) *Node {
	return g.newNode(func() (datum.Result, error) {
		r := AwaitResult(ctx, parent.Output())
		inputs := twoSlotInputs(r)
		closure := func(ctx context.Context) (datum.Datum, error) {
			fn(ctx, inputs)
			return datum.NewEmpty(), nil
		}
		g.stageInvoke(ctx, closure, inputs[:])
		return r, nil
	})
}

// Handle creates a node that runs fn over parent's two-slot input shape
// regardless of outcome, letting the closure recover from a failure or
// transform a success uniformly. fn receives [parentResult,
// Success(Empty)] on success or [Success(Empty), Failure(parentError)] on
// failure.
func (g *Graph) Handle(ctx context.Context, parent *Node, fn func(ctx context.Context, inputs [2]datum.Result) (datum.Datum, error)) *Node {
	return g.newNode(func() (datum.Result, error) {
		r := AwaitResult(ctx, parent.Output())
		inputs := twoSlotInputs(r)
		closure := func(ctx context.Context) (datum.Datum, error) { return fn(ctx, inputs) }
		return g.stageInvoke(ctx, closure, inputs[:]), nil
	})
}

// Exceptionally creates a node that recovers from parent's failure via fn,
// passing a success straight through untouched.
func (g *Graph) Exceptionally(ctx context.Context, parent *Node, fn func(ctx context.Context, errDatum datum.Datum) (datum.Datum, error)) *Node {
	return g.newNode(func() (datum.Result, error) {
		r := AwaitResult(ctx, parent.Output())
		if r.IsSuccess() {
			return r, nil
		}
		closure := func(ctx context.Context) (datum.Datum, error) { return fn(ctx, r.Error()) }
		return g.stageInvoke(ctx, closure, []datum.Result{r}), nil
	})
}

// raceFirst awaits whichever of a, b settles first and returns its Result;
// which branch won is not reported. Both branches are
// always awaited to completion by their own goroutines regardless of which
// wins; the loser's Result is simply discarded, per the either-branch
// design note.
func raceFirst(ctx context.Context, a, b *Node) datum.Result {
	ch := make(chan datum.Result, 2)
	go func() { ch <- AwaitResult(ctx, a.Output()) }()
	go func() { ch <- AwaitResult(ctx, b.Output()) }()
	return <-ch
}

// AcceptEither creates a node that runs fn over whichever of a, b
// completes first.
func (g *Graph) AcceptEither(ctx context.Context, a, b *Node, fn func(ctx context.Context, in datum.Datum) error) *Node {
	return g.newNode(func() (datum.Result, error) {
		r := raceFirst(ctx, a, b)
		if r.IsFailure() {
			return r, nil
		}
		closure := func(ctx context.Context) (datum.Datum, error) {
			if err := fn(ctx, r.Value()); err != nil {
				return datum.Datum{}, err
			}
			return datum.NewEmpty(), nil
		}
		return g.stageInvoke(ctx, closure, []datum.Result{r}), nil
	})
}

// ApplyToEither is AcceptEither for a closure that produces a value.
func (g *Graph) ApplyToEither(ctx context.Context, a, b *Node, fn ValueClosure) *Node {
	return g.newNode(func() (datum.Result, error) {
		r := raceFirst(ctx, a, b)
		if r.IsFailure() {
			return r, nil
		}
		closure := func(ctx context.Context) (datum.Datum, error) { return fn(ctx, r.Value()) }
		return g.stageInvoke(ctx, closure, []datum.Result{r}), nil
	})
}

// AllOf creates a node that succeeds with Empty once every node in nodes
// has succeeded, or fails with the first failure encountered in argument
// order. An empty nodes slice resolves immediately to Success(Empty).
func (g *Graph) AllOf(ctx context.Context, nodes ...*Node) *Node {
	return g.newNode(func() (datum.Result, error) {
		for _, n := range nodes {
			r := AwaitResult(ctx, n.Output())
			if r.IsFailure() {
				return r, nil
			}
		}
		return datum.Succeeded(datum.NewEmpty()), nil
	})
}

// AnyOf creates a node that resolves with the Result of whichever node in
// nodes settles first, success or failure. Calling AnyOf with no nodes is
// a caller error — there is nothing to race — and returns a
// stage_invoke_failed Result rather than blocking forever.
func (g *Graph) AnyOf(ctx context.Context, nodes ...*Node) *Node {
	return g.newNode(func() (datum.Result, error) {
		if len(nodes) == 0 {
			return datum.FailedWith(datum.ErrStageInvokeFailed, "anyOf requires at least one stage"), nil
		}
		ch := make(chan datum.Result, len(nodes))
		for _, n := range nodes {
			n := n
			go func() { ch <- AwaitResult(ctx, n.Output()) }()
		}
		return <-ch, nil
	})
}

// Delay creates a node that resolves with Success(Empty) once sched fires
// a one-shot timer of duration d.
func (g *Graph) Delay(ctx context.Context, d time.Duration, sched DelayScheduler) *Node {
	return g.newNode(func() (datum.Result, error) {
		done := make(chan struct{}, 1)
		cancel := sched.AfterFunc(d, func() { done <- struct{}{} })
		select {
		case <-done:
			return datum.Succeeded(datum.NewEmpty()), nil
		case <-ctx.Done():
			cancel()
			return datum.Result{}, ctx.Err()
		}
	})
}

// External creates a node whose result arrives from outside the process —
// the completion receiver's /complete and /fail handlers. The returned
// complete func resolves the node with a success value; fail completes it
// via the host-error channel wrapped in a ResultException, per the
// boundary-only use of that sentinel.
func (g *Graph) External() (node *Node, complete func(datum.Datum), fail func(datum.Datum)) {
	resultCh := make(chan datum.Result, 1)
	errCh := make(chan error, 1)
	n := g.newNode(func() (datum.Result, error) {
		select {
		case r := <-resultCh:
			return r, nil
		case err := <-errCh:
			return datum.Result{}, err
		}
	})
	return n, func(v datum.Datum) { resultCh <- datum.Succeeded(v) },
		func(errDatum datum.Datum) { errCh <- apperrors.NewResultException(datum.Failed(errDatum)) }
}

// InvokeFunction creates a node that runs parent to completion, then — if
// it succeeded — marshals its value into an HTTP request and calls inv,
// producing a KindHTTPResponse Datum on success or
// function_invoke_failed on a transport error.
func (g *Graph) InvokeFunction(ctx context.Context, parent *Node, inv FunctionInvoker, buildRequest func(datum.Datum) datum.HTTPRequest) *Node {
	return g.newNode(func() (datum.Result, error) {
		in := AwaitResult(ctx, parent.Output())
		if in.IsFailure() {
			return in, nil
		}
		resp, err := inv.Invoke(ctx, buildRequest(in.Value()))
		if err != nil {
			return toFailed(datum.ErrFunctionInvokeFailed, err), nil
		}
		return datum.Succeeded(datum.NewHTTPResponse(resp.StatusCode, resp.Headers, resp.Body)), nil
	})
}
