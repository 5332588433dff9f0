// Package invoker declares the collaborator contract the engine uses to
// reach outside the process — running a stage body or a nested function
// somewhere else and getting an HTTP-shaped answer back. Concrete
// transports live in the httpinvoker and pubsubinvoker subpackages.
package invoker

import (
	"context"

	"github.com/opencompleter/completer/datum"
)

// StageInvoker runs a stage closure out of process, the collaborator
// behind §6.1: the engine sends the stage's input Results as JSON in req's
// body and gets back the closure's HTTP-shaped result. No closure state is
// serialized into req.
type StageInvoker interface {
	InvokeStage(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error)
}

// FunctionInvoker runs a user function, the collaborator behind §6.2 and
// the same shape the graph package depends on for InvokeFunction nodes.
type FunctionInvoker interface {
	Invoke(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error)
}
