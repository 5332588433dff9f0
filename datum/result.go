package datum

// Result is the sum type that travels on every edge of a completer graph:
// either a successful Datum or a failing Datum.Error. Success(Error) is
// never constructed — use Failed for errors.
type Result struct {
	ok    bool
	value Datum
}

// Succeeded builds a successful Result wrapping value. Passing a KindError
// Datum here would violate the Result invariant and panics, since it can
// only happen because of a bug in the calling combinator.
func Succeeded(value Datum) Result {
	if value.Kind == KindError {
		panic("datum: Succeeded called with an error Datum; use Failed")
	}
	return Result{ok: true, value: value}
}

// Failed builds a failing Result wrapping a KindError Datum.
func Failed(errDatum Datum) Result {
	if errDatum.Kind != KindError {
		panic("datum: Failed called with a non-error Datum")
	}
	return Result{ok: false, value: errDatum}
}

// FailedWith is a convenience for Failed(NewError(kind, message)).
func FailedWith(kind ErrorKind, message string) Result {
	return Failed(NewError(kind, message))
}

// IsSuccess reports whether r carries a success value.
func (r Result) IsSuccess() bool { return r.ok }

// IsFailure reports whether r carries a failure value.
func (r Result) IsFailure() bool { return !r.ok }

// Value returns the success Datum. Calling it on a failed Result returns
// the zero Datum; callers should check IsSuccess first.
func (r Result) Value() Datum {
	if !r.ok {
		return Datum{}
	}
	return r.value
}

// Error returns the failure Datum (Kind == KindError). Calling it on a
// successful Result returns the zero Datum; callers should check
// IsFailure first.
func (r Result) Error() Datum {
	if r.ok {
		return Datum{}
	}
	return r.value
}

// ErrorKind is a convenience accessor for Error().Error.Kind, returning ""
// for a successful Result.
func (r Result) ErrorKind() ErrorKind {
	if r.ok || r.value.Error == nil {
		return ""
	}
	return r.value.Error.Kind
}
