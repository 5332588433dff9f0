// Package httpinvoker implements invoker.StageInvoker and
// invoker.FunctionInvoker over plain net/http, retrying only the
// transport failures a stage closure never gets a chance to see —
// connection resets, timeouts, 5xx — and giving up immediately on
// anything the remote end answered deliberately.
package httpinvoker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"

	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/requestid"
)

// Option configures an Invoker.
type Option func(*Invoker)

// WithHTTPClient overrides the default *http.Client, useful for injecting
// timeouts, transport-level tracing, or a test double.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Invoker) { i.client = client }
}

// WithMaxRetries caps the number of attempts made for a transport failure
// before giving up and returning it to the caller.
func WithMaxRetries(n uint) Option {
	return func(i *Invoker) { i.maxRetries = n }
}

// Invoker is a net/http-backed StageInvoker and FunctionInvoker.
type Invoker struct {
	client     *http.Client
	maxRetries uint
}

// New builds an Invoker targeting the collaborator endpoints the caller
// passes to InvokeStage/Invoke directly — this package has no notion of a
// base URL, each call names its own target.
func New(opts ...Option) *Invoker {
	inv := &Invoker{
		client:     http.DefaultClient,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// InvokeStage implements invoker.StageInvoker.
func (i *Invoker) InvokeStage(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error) {
	return i.call(ctx, req)
}

// Invoke implements invoker.FunctionInvoker.
func (i *Invoker) Invoke(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error) {
	return i.call(ctx, req)
}

// call issues req against req's own endpoint, which must be embedded by
// the caller as a header (see endpointHeader), retrying transport errors
// and 5xx responses with an exponential backoff and giving up immediately
// on anything else.
func (i *Invoker) call(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error) {
	endpoint := req.Headers[endpointHeader]
	if endpoint == "" {
		return datum.HTTPResponse{}, fmt.Errorf("httpinvoker: request missing %s header", endpointHeader)
	}

	ctx = requestid.Context(ctx)

	operation := func() (datum.HTTPResponse, error) {
		httpReq, err := http.NewRequestWithContext(ctx, string(req.Method), endpoint, bytes.NewReader(req.Body))
		if err != nil {
			return datum.HTTPResponse{}, backoff.Permanent(err)
		}
		for k, v := range req.Headers {
			if k == endpointHeader {
				continue
			}
			httpReq.Header.Set(k, v)
		}
		httpReq.Header.Set(requestid.XRequestIDMetadataKey, requestid.FromContext(ctx))

		resp, err := i.client.Do(httpReq)
		if err != nil {
			return datum.HTTPResponse{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return datum.HTTPResponse{}, err
		}

		if resp.StatusCode >= 500 {
			return datum.HTTPResponse{}, fmt.Errorf("httpinvoker: remote returned %d", resp.StatusCode)
		}

		headers := make(datum.Headers, len(resp.Header))
		for k := range resp.Header {
			headers[k] = resp.Header.Get(k)
		}
		return datum.HTTPResponse{StatusCode: resp.StatusCode, Headers: headers, Body: body}, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(i.maxRetries))
}

// endpointHeader carries the target URL for a stage/function invocation;
// it is stripped before the request is forwarded.
const endpointHeader = "X-Completer-Endpoint"
