package graph

import (
	"context"

	"github.com/opencompleter/completer/datum"
)

// FunctionInvoker abstracts calling a user function across the HTTP
// boundary with an HTTP-shaped request, the collaborator behind the
// InvokeFunction combinator (§6.2). Concrete implementations live outside
// this package (invoker/httpinvoker, invoker/pubsubinvoker) so the graph
// package stays collaborator-agnostic.
type FunctionInvoker interface {
	Invoke(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error)
}

// StageInvoker abstracts running a stage's closure out of process, the
// collaborator behind §6.1: every stage-running combinator routes its
// invoke step through stageInvoke, which calls InvokeStage when one of
// these is configured on the Graph. Concrete implementations live outside
// this package (invoker/httpinvoker, invoker/pubsubinvoker).
type StageInvoker interface {
	InvokeStage(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error)
}
