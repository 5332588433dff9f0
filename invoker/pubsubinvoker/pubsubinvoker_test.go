package pubsubinvoker_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"

	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/invoker/pubsubinvoker"
	"github.com/opencompleter/completer/logger"
)

const testProjectID = "completer-test"

type wireRequest struct {
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

type wireResponse struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"body"`
}

// newTestClient starts a local Pub/Sub fake and returns a client dialed
// against it, the same PUBSUB_EMULATOR_HOST mechanism the original
// Publisher/Subscriber tests relied on.
func newTestClient(t *testing.T) *pubsub.Client {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })
	require.NoError(t, os.Setenv("PUBSUB_EMULATOR_HOST", srv.Addr))

	client, err := pubsub.NewClient(context.Background(), testProjectID)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestInvokeRoundTripsThroughPubSub(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	reqTopic, err := client.CreateTopic(ctx, "requests")
	require.NoError(t, err)
	respTopic, err := client.CreateTopic(ctx, "responses")
	require.NoError(t, err)
	_, err = client.CreateSubscription(ctx, "responses-sub", pubsub.SubscriptionConfig{Topic: respTopic})
	require.NoError(t, err)
	reqSub, err := client.CreateSubscription(ctx, "requests-sub", pubsub.SubscriptionConfig{Topic: reqTopic})
	require.NoError(t, err)

	// Stand in for the remote worker: echo every request back on the
	// responses topic, preserving the correlation-id attribute.
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go func() {
		_ = reqSub.Receive(workerCtx, func(_ context.Context, msg *pubsub.Message) {
			var req wireRequest
			_ = json.Unmarshal(msg.Data, &req)
			msg.Ack()

			payload, _ := json.Marshal(wireResponse{StatusCode: 200, Body: append([]byte("echo:"), req.Body...)})
			respTopic.Publish(workerCtx, &pubsub.Message{Data: payload, Attributes: msg.Attributes})
		})
	}()

	inv, err := pubsubinvoker.New(ctx, client, pubsubinvoker.Config{
		RequestTopicID:         "requests",
		ResponseSubscriptionID: "responses-sub",
		CallTimeout:            5 * time.Second,
	}, logger.NewLogger(logger.WithNop()))
	require.NoError(t, err)
	defer inv.Stop()

	resp, err := inv.Invoke(ctx, datum.HTTPRequest{Method: datum.MethodPost, Body: []byte("ping")})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, []byte("echo:ping"), resp.Body)
}
