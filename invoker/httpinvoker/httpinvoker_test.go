package httpinvoker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/invoker/httpinvoker"
	"github.com/opencompleter/completer/requestid"
)

func TestInvokeReturnsRemoteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	inv := httpinvoker.New()
	req := datum.HTTPRequest{
		Method:  datum.MethodPost,
		Headers: datum.Headers{"X-Completer-Endpoint": srv.URL},
		Body:    []byte("payload"),
	}

	resp, err := inv.Invoke(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("ok"), resp.Body)
	assert.Equal(t, "yes", resp.Headers["X-Custom"])
}

func TestInvokeRetriesServerErrorsThenGivesUp(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	inv := httpinvoker.New(httpinvoker.WithMaxRetries(2))
	req := datum.HTTPRequest{
		Method:  datum.MethodGet,
		Headers: datum.Headers{"X-Completer-Endpoint": srv.URL},
	}

	_, err := inv.Invoke(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestInvokeMissingEndpointHeaderFailsFast(t *testing.T) {
	inv := httpinvoker.New()
	_, err := inv.Invoke(context.Background(), datum.HTTPRequest{Method: datum.MethodGet})
	require.Error(t, err)
}

func TestInvokeStampsRequestIDHeader(t *testing.T) {
	var gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get(requestid.XRequestIDMetadataKey)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := httpinvoker.New()
	req := datum.HTTPRequest{
		Method:  datum.MethodGet,
		Headers: datum.Headers{"X-Completer-Endpoint": srv.URL},
	}

	_, err := inv.Invoke(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, gotReqID)
}

func TestInvokePreservesCallerSuppliedRequestID(t *testing.T) {
	var gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get(requestid.XRequestIDMetadataKey)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := httpinvoker.New()
	req := datum.HTTPRequest{
		Method:  datum.MethodGet,
		Headers: datum.Headers{"X-Completer-Endpoint": srv.URL},
	}

	ctx := requestid.Context(context.Background())
	want := requestid.FromContext(ctx)

	_, err := inv.Invoke(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, want, gotReqID)
}
