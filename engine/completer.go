// Package engine implements the completer façade: the entry point an SDK
// client talks to, translating thread/stage ids into graph.Graph and
// graph.Node lookups and wrapping the combinator algebra with the
// unknown_thread/unknown_stage PlatformException checks every method
// needs at its boundary.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/opencompleter/completer/apperrors"
	"github.com/opencompleter/completer/config"
	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/graph"
	"github.com/opencompleter/completer/httpapi"
	"github.com/opencompleter/completer/logger"
	"github.com/opencompleter/completer/scheduler"
	"github.com/opencompleter/completer/telemetry"
)

// Completer is the in-process test double for the remote orchestration
// service: it owns one graph.Graph per thread, the shared scheduler and
// external-completion receiver every thread's Delay and External nodes
// run against, and the collaborators used to reach outside the process.
type Completer struct {
	cfg       *config.Config
	logger    logger.Logger
	telemetry *telemetry.Telemetry
	scheduler scheduler.Scheduler
	receiver  *httpapi.Receiver

	mu      sync.RWMutex
	threads map[string]*graph.Graph
}

// New builds a Completer from cfg. Start must be called before any thread
// is created.
func New(cfg *config.Config, log logger.Logger, tel *telemetry.Telemetry) *Completer {
	if cfg == nil {
		cfg = config.New()
	}
	return &Completer{
		cfg:       cfg,
		logger:    log,
		telemetry: tel,
		scheduler: scheduler.NewJobsScheduler(scheduler.WithLogger(log)),
		receiver: httpapi.New(
			httpapi.WithPort(orDefault(cfg.ReceiverPort, 11979)),
			httpapi.WithPrefix(cfg.ReceiverPrefix),
			httpapi.WithLogger(log),
		),
		threads: make(map[string]*graph.Graph),
	}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Start starts the shared scheduler backing every thread's Delay nodes.
func (c *Completer) Start(ctx context.Context) {
	c.scheduler.Start(ctx)
}

// Stop stops the scheduler and the external-completion receiver, failing
// any pending external completion with stage_lost.
func (c *Completer) Stop(ctx context.Context) error {
	var errs error
	if err := c.receiver.Stop(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := c.scheduler.Stop(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// CreateThread allocates a new graph and returns its thread id.
func (c *Completer) CreateThread() string {
	id := uuid.NewString()
	var opts []graph.Option
	if c.cfg.StageInvoker != nil {
		opts = append(opts, graph.WithStageInvoker(c.cfg.StageInvoker))
	}
	g := graph.New(id, opts...)
	c.mu.Lock()
	c.threads[id] = g
	c.mu.Unlock()
	return id
}

// ListStages returns every stage id created on threadID, in creation
// order.
func (c *Completer) ListStages(threadID string) ([]string, error) {
	g, err := c.thread(threadID)
	if err != nil {
		return nil, err
	}
	return g.NodeIDs(), nil
}

// Commit marks threadID's graph committed. Stage creation on the thread is
// not rejected afterwards. It returns whether this call performed the
// transition: true the first time, false on every subsequent call on the
// same thread.
func (c *Completer) Commit(threadID string) (bool, error) {
	g, err := c.thread(threadID)
	if err != nil {
		return false, err
	}
	return g.Commit(), nil
}

// thread looks up a thread's graph, translating a miss into a
// PlatformException.
func (c *Completer) thread(threadID string) (*graph.Graph, error) {
	c.mu.RLock()
	g, ok := c.threads[threadID]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.WrapPlatformException(errors.Wrapf(apperrors.ErrUnknownThread, "thread %s", threadID), "engine")
	}
	return g, nil
}

// node looks up a stage within threadID's graph, translating either miss
// into a PlatformException.
func (c *Completer) node(threadID, stageID string) (*graph.Graph, *graph.Node, error) {
	g, err := c.thread(threadID)
	if err != nil {
		return nil, nil, err
	}
	n, err := g.FindNode(stageID)
	if err != nil {
		return nil, nil, apperrors.WrapPlatformException(errors.Wrapf(apperrors.ErrUnknownStage, "stage %s in thread %s", stageID, threadID), "engine")
	}
	return g, n, nil
}

// WaitForCompletion blocks until stageID resolves (or ctx is canceled,
// or the Config's WaitForCompletionTimeout elapses) and returns its
// success value or an apperrors.CloudCompletionException wrapping its
// failure.
func (c *Completer) WaitForCompletion(ctx context.Context, threadID, stageID string) (datum.Datum, error) {
	_, n, err := c.node(threadID, stageID)
	if err != nil {
		return datum.Datum{}, err
	}

	waitCtx := ctx
	if c.cfg.WaitForCompletionTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.cfg.WaitForCompletionTimeout)
		defer cancel()
	}

	r := graph.AwaitResult(waitCtx, n.Output())
	c.recordResolution(r)
	if r.IsSuccess() {
		return r.Value(), nil
	}
	return datum.Datum{}, &apperrors.CloudCompletionException{Cause: r.Error()}
}

func (c *Completer) recordResolution(r datum.Result) {
	if c.telemetry == nil {
		return
	}
	c.telemetry.RecordStageResolved(r.IsSuccess())
}

// Supply creates a new 0-arity stage running fn, returning its stage id.
func (c *Completer) Supply(ctx context.Context, threadID string, fn graph.Closure) (string, error) {
	g, err := c.thread(threadID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.Supply(ctx, fn).ID(), nil
}

// CompletedValue creates a new stage already resolved with value.
func (c *Completer) CompletedValue(threadID string, value datum.Result) (string, error) {
	g, err := c.thread(threadID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.CompletedValue(value).ID(), nil
}

// ThenApply chains a value-producing closure onto parentStageID.
func (c *Completer) ThenApply(ctx context.Context, threadID, parentStageID string, fn graph.ValueClosure) (string, error) {
	g, parent, err := c.node(threadID, parentStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.ThenApply(ctx, parent, fn).ID(), nil
}

// ThenAccept chains a side-effecting closure onto parentStageID.
func (c *Completer) ThenAccept(ctx context.Context, threadID, parentStageID string, fn func(context.Context, datum.Datum) error) (string, error) {
	g, parent, err := c.node(threadID, parentStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.ThenAccept(ctx, parent, fn).ID(), nil
}

// ThenRun chains a no-argument closure onto parentStageID.
func (c *Completer) ThenRun(ctx context.Context, threadID, parentStageID string, fn func(context.Context) error) (string, error) {
	g, parent, err := c.node(threadID, parentStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.ThenRun(ctx, parent, fn).ID(), nil
}

// ThenCompose chains a closure that resolves to a stage reference,
// redirecting resolution onto the referenced stage within threadID.
func (c *Completer) ThenCompose(ctx context.Context, threadID, parentStageID string, fn graph.ValueClosure) (string, error) {
	g, parent, err := c.node(threadID, parentStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.ThenCompose(ctx, parent, fn).ID(), nil
}

// ThenCombine joins two stages with a value-producing closure.
func (c *Completer) ThenCombine(ctx context.Context, threadID, aStageID, bStageID string, fn graph.BiValueClosure) (string, error) {
	g, a, err := c.node(threadID, aStageID)
	if err != nil {
		return "", err
	}
	_, b, err := c.node(threadID, bStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.ThenCombine(ctx, a, b, fn).ID(), nil
}

// ThenAcceptBoth joins two stages with a side-effecting closure.
func (c *Completer) ThenAcceptBoth(ctx context.Context, threadID, aStageID, bStageID string, fn func(context.Context, datum.Datum, datum.Datum) error) (string, error) {
	g, a, err := c.node(threadID, aStageID)
	if err != nil {
		return "", err
	}
	_, b, err := c.node(threadID, bStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.ThenAcceptBoth(ctx, a, b, fn).ID(), nil
}

// WhenComplete observes parentStageID's result without altering it. fn
// receives the two-slot input shape: [parentResult, Success(Empty)] on
// success or [Success(Empty), Failure(parentError)] on failure.
func (c *Completer) WhenComplete(ctx context.Context, threadID, parentStageID string, fn func(context.Context, [2]datum.Result)) (string, error) {
	g, parent, err := c.node(threadID, parentStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.WhenComplete(ctx, parent, fn).ID(), nil
}

// Handle transforms parentStageID's result regardless of outcome. fn
// receives the two-slot input shape: [parentResult, Success(Empty)] on
// success or [Success(Empty), Failure(parentError)] on failure.
func (c *Completer) Handle(ctx context.Context, threadID, parentStageID string, fn func(context.Context, [2]datum.Result) (datum.Datum, error)) (string, error) {
	g, parent, err := c.node(threadID, parentStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.Handle(ctx, parent, fn).ID(), nil
}

// Exceptionally recovers from parentStageID's failure.
func (c *Completer) Exceptionally(ctx context.Context, threadID, parentStageID string, fn func(context.Context, datum.Datum) (datum.Datum, error)) (string, error) {
	g, parent, err := c.node(threadID, parentStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.Exceptionally(ctx, parent, fn).ID(), nil
}

// AcceptEither runs fn over whichever of aStageID, bStageID settles first.
func (c *Completer) AcceptEither(ctx context.Context, threadID, aStageID, bStageID string, fn func(context.Context, datum.Datum) error) (string, error) {
	g, a, err := c.node(threadID, aStageID)
	if err != nil {
		return "", err
	}
	_, b, err := c.node(threadID, bStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.AcceptEither(ctx, a, b, fn).ID(), nil
}

// ApplyToEither is AcceptEither for a value-producing closure.
func (c *Completer) ApplyToEither(ctx context.Context, threadID, aStageID, bStageID string, fn graph.ValueClosure) (string, error) {
	g, a, err := c.node(threadID, aStageID)
	if err != nil {
		return "", err
	}
	_, b, err := c.node(threadID, bStageID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.ApplyToEither(ctx, a, b, fn).ID(), nil
}

// AllOf resolves once every named stage succeeds, or fails with the first
// failure.
func (c *Completer) AllOf(ctx context.Context, threadID string, stageIDs ...string) (string, error) {
	g, nodes, err := c.resolveNodes(threadID, stageIDs)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.AllOf(ctx, nodes...).ID(), nil
}

// AnyOf resolves with whichever named stage settles first.
func (c *Completer) AnyOf(ctx context.Context, threadID string, stageIDs ...string) (string, error) {
	g, nodes, err := c.resolveNodes(threadID, stageIDs)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.AnyOf(ctx, nodes...).ID(), nil
}

func (c *Completer) resolveNodes(threadID string, stageIDs []string) (*graph.Graph, []*graph.Node, error) {
	g, err := c.thread(threadID)
	if err != nil {
		return nil, nil, err
	}
	nodes := make([]*graph.Node, len(stageIDs))
	for i, id := range stageIDs {
		n, err := g.FindNode(id)
		if err != nil {
			return nil, nil, apperrors.WrapPlatformException(errors.Wrapf(apperrors.ErrUnknownStage, "stage %s in thread %s", id, threadID), "engine")
		}
		nodes[i] = n
	}
	return g, nodes, nil
}

// Delay creates a stage that resolves with Success(Empty) after d elapses.
func (c *Completer) Delay(ctx context.Context, threadID string, d time.Duration) (string, error) {
	g, err := c.thread(threadID)
	if err != nil {
		return "", err
	}
	c.recordCreated()
	return g.Delay(ctx, d, c.scheduler).ID(), nil
}

// External creates a stage resolved from outside the process and returns
// its stage id along with the complete/fail URLs a third party should be
// handed.
func (c *Completer) External(threadID string) (stageID, completeURL, failURL string, err error) {
	g, err := c.thread(threadID)
	if err != nil {
		return "", "", "", err
	}

	node, complete, fail := g.External()
	completeURL, failURL, err = c.receiver.Register(node.ID(), httpapi.PendingCompletion{
		Complete: complete,
		Fail:     fail,
	})
	if err != nil {
		return "", "", "", err
	}
	c.recordCreated()
	return node.ID(), completeURL, failURL, nil
}

// InvokeFunction creates a stage that invokes a nested function with
// parentStageID's value once it succeeds.
func (c *Completer) InvokeFunction(ctx context.Context, threadID, parentStageID string, buildRequest func(datum.Datum) datum.HTTPRequest) (string, error) {
	g, parent, err := c.node(threadID, parentStageID)
	if err != nil {
		return "", err
	}
	if c.cfg.FunctionInvoker == nil {
		return "", errors.New("engine: no FunctionInvoker configured")
	}
	c.recordCreated()
	return g.InvokeFunction(ctx, parent, c.cfg.FunctionInvoker, buildRequest).ID(), nil
}

func (c *Completer) recordCreated() {
	if c.telemetry != nil {
		c.telemetry.RecordStageCreated()
	}
}
