// Package apperrors carries the vehicle by which a graph-level failure
// Result travels over a Go error channel without being mistaken for a
// host-runtime bug, plus the two exceptions a completer façade surfaces to
// its caller.
package apperrors

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/opencompleter/completer/datum"
)

// ResultException wraps a failing Result so it can cross a boundary that
// only understands Go's error interface — the external-completion node's
// /fail path and nothing else in the core engine completes a future this
// way; every other combinator inspects Result.IsFailure() directly.
type ResultException struct {
	Result datum.Result
}

// NewResultException wraps r. r must be a failing Result; wrapping a
// success would defeat the purpose of the sentinel.
func NewResultException(r datum.Result) *ResultException {
	if r.IsSuccess() {
		panic("apperrors: NewResultException called with a successful Result")
	}
	return &ResultException{Result: r}
}

func (e *ResultException) Error() string {
	errDatum := e.Result.Error()
	if errDatum.Error == nil {
		return "result exception"
	}
	return fmt.Sprintf("result exception: %s: %s", errDatum.Error.Kind, errDatum.Error.Message)
}

// ToResult applies the §4.2 translation rule for turning a host error on an
// incoming future into a Result: a ResultException unwraps to its payload,
// anything else becomes Failure(unknown_error).
func ToResult(err error) datum.Result {
	if err == nil {
		return datum.Succeeded(datum.NewEmpty())
	}
	var re *ResultException
	if errors.As(err, &re) {
		return re.Result
	}
	return datum.FailedWith(datum.ErrUnknown, err.Error())
}

// PlatformException signals an engine-detected caller error: an unknown
// thread or stage id at a façade entry point. It is never modeled as a
// Result on the graph, and WaitForCompletion does not return it for a
// failing Result, whatever that Result's payload.
type PlatformException struct {
	Message string
	Cause   error
}

func NewPlatformException(message string) *PlatformException {
	return &PlatformException{Message: message}
}

func WrapPlatformException(cause error, message string) *PlatformException {
	return &PlatformException{Message: message, Cause: cause}
}

func (e *PlatformException) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Cause.Error())
	}
	return e.Message
}

func (e *PlatformException) Unwrap() error { return e.Cause }

// Well-known platform failures, constructed with errors.Wrapf at the call
// site the way the rest of this codebase wraps lower-level errors.
var (
	ErrUnknownThread = errors.New("unknown_thread")
	ErrUnknownStage  = errors.New("unknown_stage")
)

// CloudCompletionException is the user-visible failure returned by
// waitForCompletion for every failing Result, whatever its error kind: a
// stage closure's thrown value, an external-completion /fail payload, or an
// engine-produced failure such as stage_invoke_failed or stage_lost.
type CloudCompletionException struct {
	Cause datum.Datum
}

func (e *CloudCompletionException) Error() string {
	if e.Cause.Error != nil {
		return fmt.Sprintf("cloud completion failed: %s", e.Cause.Error.Message)
	}
	return "cloud completion failed"
}
