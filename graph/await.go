package graph

import (
	"context"
	"time"

	"github.com/opencompleter/completer/apperrors"
	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/future"
)

// AwaitResult blocks on f and normalizes both of a future's channels into a
// single Result. The common case is f's value channel already carrying a
// Result — a Future[Result] never "fails" in the host sense over a
// Result.Failure, per the propagation model this engine follows. The
// host-error channel is reserved for boundary code that completes a
// future with a *apperrors.ResultException instead of a plain value — the
// external-completion node's fail path. A Delay node cancelled through its
// ctx also settles on this channel, with a plain ctx error that becomes
// Failure(unknown_error).
func AwaitResult(ctx context.Context, f future.Future[datum.Result]) datum.Result {
	value, err := f.Await(ctx)
	if err != nil {
		return apperrors.ToResult(err)
	}
	return value
}

// AwaitAll blocks on every future in ins, in order, and collects their
// Results. No combinator in this package calls it; each awaits its inputs
// with AwaitResult directly.
func AwaitAll(ctx context.Context, ins []future.Future[datum.Result]) []datum.Result {
	out := make([]datum.Result, len(ins))
	for i, in := range ins {
		out[i] = AwaitResult(ctx, in)
	}
	return out
}

// DelayScheduler abstracts the one-shot timer a Delay node waits on, so the
// graph package depends only on this narrow interface rather than the
// concrete quartz-backed scheduler.
type DelayScheduler interface {
	// AfterFunc arranges for f to run once, after d has elapsed, and
	// returns a cancel function that prevents that run if it hasn't
	// already started.
	AfterFunc(d time.Duration, f func()) (cancel func())
}
