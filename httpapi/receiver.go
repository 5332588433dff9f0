// Package httpapi implements the external-completion HTTP receiver: the
// collaborator an External graph node's complete/fail callbacks are wired
// to, reachable by a third party that was handed a completion URL.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/logger"
	oteltrace "github.com/opencompleter/completer/otel/trace"
	"github.com/opencompleter/completer/requestid"
)

// defaultPort is the fixed port the receiver listens on, per the external
// interface contract every collaborator is handed a URL against.
const defaultPort = 11979

// defaultPrefix is the path every completion URL is nested under.
const defaultPrefix = "/completions"

// PendingCompletion is the pair of callbacks an External graph node
// registers under its stage id: Complete resolves it with a success
// value, Fail resolves it via the host-error channel.
type PendingCompletion struct {
	Complete func(datum.Datum)
	Fail     func(datum.Datum)
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithPort overrides the fixed listen port, useful for tests.
func WithPort(port int) Option {
	return func(r *Receiver) { r.port = port }
}

// WithLogger overrides the receiver's logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Receiver) { r.logger = log }
}

// WithPrefix overrides the path prefix every completion URL is nested
// under.
func WithPrefix(prefix string) Option {
	return func(r *Receiver) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// Receiver is the external-completion HTTP surface. It does not bind a
// listener until the first stage is registered, so a completer that never
// creates an External node never opens a port.
type Receiver struct {
	port   int
	prefix string
	logger logger.Logger

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	pending  map[string]PendingCompletion
}

// New creates a Receiver. Call Register for each External node and Stop
// when the owning completer shuts down.
func New(opts ...Option) *Receiver {
	r := &Receiver{
		port:    defaultPort,
		prefix:  defaultPrefix,
		logger:  logger.NewLogger(logger.WithNop()),
		pending: make(map[string]PendingCompletion),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds the listener on first use, associates pc with id, and
// returns the absolute complete/fail URLs a caller should be handed.
func (r *Receiver) Register(id string, pc PendingCompletion) (completeURL, failURL string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listener == nil {
		if err := r.start(); err != nil {
			return "", "", err
		}
	}
	r.pending[id] = pc

	base := fmt.Sprintf("http://%s%s/%s", r.listener.Addr().String(), r.prefix, id)
	return base + "/complete", base + "/fail", nil
}

// start binds the fixed-port listener and begins serving in the
// background. Callers must hold r.mu.
func (r *Receiver) start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", r.port))
	if err != nil {
		return fmt.Errorf("httpapi: bind completion receiver: %w", err)
	}

	router := chi.NewRouter()
	router.Use(oteltrace.Middleware("completer-external-completion"))
	router.Post(r.prefix+"/{id}/complete", r.handleComplete)
	router.Post(r.prefix+"/{id}/fail", r.handleFail)

	r.server = &http.Server{Handler: router}
	r.listener = listener

	go func() {
		if err := r.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			r.logger.Error(fmt.Sprintf("httpapi: completion receiver stopped: %v", err))
		}
	}()
	return nil
}

func (r *Receiver) take(id string) (PendingCompletion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pc, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	return pc, ok
}

func (r *Receiver) handleComplete(w http.ResponseWriter, req *http.Request) {
	ctx := requestid.Context(req.Context())
	id := chi.URLParam(req, "id")
	pc, ok := r.take(id)
	if !ok {
		writeErrorDatum(w, http.StatusNotFound, "unknown or already-completed stage")
		return
	}

	d, err := requestToDatum(req)
	if err != nil {
		writeErrorDatum(w, http.StatusBadRequest, err.Error())
		return
	}
	r.logger.Debugf("httpapi: completing stage %s (request %s)", id, requestid.FromContext(ctx))
	pc.Complete(d)
	w.WriteHeader(http.StatusOK)
}

func (r *Receiver) handleFail(w http.ResponseWriter, req *http.Request) {
	ctx := requestid.Context(req.Context())
	id := chi.URLParam(req, "id")
	pc, ok := r.take(id)
	if !ok {
		writeErrorDatum(w, http.StatusNotFound, "unknown or already-completed stage")
		return
	}

	body, err := requestToDatum(req)
	if err != nil {
		writeErrorDatum(w, http.StatusBadRequest, err.Error())
		return
	}
	errDatum := datum.NewError(datum.ErrUnknown, fmt.Sprintf("external failure: %s", string(bodyBytes(body))))
	r.logger.Debugf("httpapi: failing stage %s (request %s)", id, requestid.FromContext(ctx))
	pc.Fail(errDatum)
	w.WriteHeader(http.StatusOK)
}

// bodyBytes extracts the raw body out of a KindHTTPRequest Datum for
// inclusion in the failure message.
func bodyBytes(d datum.Datum) []byte {
	if d.HTTPRequest == nil {
		return nil
	}
	return d.HTTPRequest.Body
}

// Stop closes the listener and fails every completion still pending with
// stage_lost, so no caller of waitForCompletion blocks forever because the
// process that was supposed to complete it never will.
func (r *Receiver) Stop(ctx context.Context) error {
	r.mu.Lock()
	server := r.server
	pending := r.pending
	r.pending = make(map[string]PendingCompletion)
	r.mu.Unlock()

	for id, pc := range pending {
		r.logger.Debugf("httpapi: failing pending completion %s with stage_lost on shutdown", id)
		pc.Fail(datum.NewError(datum.ErrStageLost, "completion receiver stopped before this stage completed"))
	}

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
