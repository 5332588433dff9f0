// Package pubsubinvoker implements invoker.StageInvoker and
// invoker.FunctionInvoker as a request/response exchange over Google
// Cloud Pub/Sub: a call publishes an invocation request to a request
// topic and blocks on a correlation id until the matching response
// arrives on a response subscription. It is the alternate transport for
// deployments that route stage and function invocation through a message
// broker instead of calling back over HTTP directly.
package pubsubinvoker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/logger"
)

const correlationIDAttr = "completer-correlation-id"

// wireRequest is the JSON envelope carried in a Pub/Sub message's payload;
// attributes carry only the correlation id so the broker can route without
// decoding the body.
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

// Config names the topic requests are published to and the subscription
// responses are read from.
type Config struct {
	RequestTopicID        string
	ResponseSubscriptionID string
	CallTimeout            time.Duration
}

// Invoker is a Pub/Sub-backed StageInvoker and FunctionInvoker.
type Invoker struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	logger logger.Logger
	cfg    Config

	mu      sync.Mutex
	pending map[string]chan wireResponse

	cancelReceive context.CancelFunc
	receiveDone   chan struct{}
}

// New connects to the named topic and subscription and starts the
// background goroutine that demultiplexes responses onto pending callers.
// The topic and subscription must already exist; this package does not
// provision infrastructure.
func New(ctx context.Context, client *pubsub.Client, cfg Config, log logger.Logger) (*Invoker, error) {
	if cfg.RequestTopicID == "" || cfg.ResponseSubscriptionID == "" {
		return nil, errors.New("pubsubinvoker: RequestTopicID and ResponseSubscriptionID are required")
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 30 * time.Second
	}

	topic := client.Topic(cfg.RequestTopicID)
	sub := client.Subscription(cfg.ResponseSubscriptionID)

	receiveCtx, cancel := context.WithCancel(context.Background())
	inv := &Invoker{
		client:        client,
		topic:         topic,
		sub:           sub,
		logger:        log,
		cfg:           cfg,
		pending:       make(map[string]chan wireResponse),
		cancelReceive: cancel,
		receiveDone:   make(chan struct{}),
	}

	go inv.receiveLoop(receiveCtx)
	return inv, nil
}

// receiveLoop runs sub.Receive for the lifetime of the Invoker, routing
// each response to the pending caller named by its correlation id and
// nacking anything it cannot route — grounded on the Consume loop's
// ack/nack discipline, adapted to dispatch-by-correlation-id rather than a
// single handler.
func (inv *Invoker) receiveLoop(ctx context.Context) {
	defer close(inv.receiveDone)
	err := inv.sub.Receive(ctx, func(_ context.Context, msg *pubsub.Message) {
		correlationID := msg.Attributes[correlationIDAttr]
		inv.mu.Lock()
		ch, ok := inv.pending[correlationID]
		if ok {
			delete(inv.pending, correlationID)
		}
		inv.mu.Unlock()

		if !ok {
			msg.Nack()
			return
		}

		var resp wireResponse
		if jsonErr := json.Unmarshal(msg.Data, &resp); jsonErr != nil {
			inv.logger.Error(fmt.Sprintf("pubsubinvoker: malformed response %s: %v", msg.ID, jsonErr))
			msg.Nack()
			return
		}
		msg.Ack()
		ch <- resp
	})
	if err != nil && ctx.Err() == nil {
		inv.logger.Error(fmt.Sprintf("pubsubinvoker: receive loop stopped: %v", err))
	}
}

// Stop cancels the receive loop and waits for it to drain.
func (inv *Invoker) Stop() {
	inv.cancelReceive()
	<-inv.receiveDone
}

// InvokeStage implements invoker.StageInvoker.
func (inv *Invoker) InvokeStage(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error) {
	return inv.call(ctx, req)
}

// Invoke implements invoker.FunctionInvoker.
func (inv *Invoker) Invoke(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error) {
	return inv.call(ctx, req)
}

func (inv *Invoker) call(ctx context.Context, req datum.HTTPRequest) (datum.HTTPResponse, error) {
	correlationID := uuid.NewString()
	replyCh := make(chan wireResponse, 1)

	inv.mu.Lock()
	inv.pending[correlationID] = replyCh
	inv.mu.Unlock()

	cleanup := func() {
		inv.mu.Lock()
		delete(inv.pending, correlationID)
		inv.mu.Unlock()
	}

	payload, err := json.Marshal(wireRequest{
		Method:  string(req.Method),
		Headers: req.Headers,
		Body:    req.Body,
	})
	if err != nil {
		cleanup()
		return datum.HTTPResponse{}, errors.Wrap(err, "pubsubinvoker: marshal request")
	}

	callCtx, cancel := context.WithTimeout(ctx, inv.cfg.CallTimeout)
	defer cancel()

	result := inv.topic.Publish(callCtx, &pubsub.Message{
		Data:       payload,
		Attributes: map[string]string{correlationIDAttr: correlationID},
	})
	if _, err := result.Get(callCtx); err != nil {
		cleanup()
		return datum.HTTPResponse{}, errors.Wrap(err, "pubsubinvoker: publish request")
	}

	select {
	case resp := <-replyCh:
		headers := make(datum.Headers, len(resp.Headers))
		for k, v := range resp.Headers {
			headers[k] = v
		}
		return datum.HTTPResponse{StatusCode: resp.StatusCode, Headers: headers, Body: resp.Body}, nil
	case <-callCtx.Done():
		cleanup()
		return datum.HTTPResponse{}, errors.Wrap(callCtx.Err(), "pubsubinvoker: waiting for response")
	}
}
