// Package graph implements the completer's dataflow core: a store of
// Nodes wired together by the combinator algebra, each Node's output a
// future.Future resolved exactly once by the goroutine that runs its
// closure.
package graph

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/opencompleter/completer/apperrors"
	"github.com/opencompleter/completer/collection/slice"
)

// Graph is the store backing one thread. It owns node identity allocation
// and the committed/active bookkeeping the façade needs to answer
// "is this thread still doing anything."
type Graph struct {
	id string

	mu    sync.RWMutex
	nodes map[string]*Node

	// order records node ids in creation order; the map above gives O(1)
	// lookup but no stable iteration order, and callers listing a
	// thread's stages (diagnostics, ListStages) want creation order.
	order *slice.Slice[string]

	// nodeCounter is the source of StageIds: a monotonic decimal integer
	// starting at 1 per graph, whose textual form is the id itself.
	nodeCounter atomic.Int64

	activeCount int64
	committed   atomic.Bool

	// invoker runs stage closures out of process per §6.1. Nil means no
	// collaborator is configured, in which case a closure's body runs
	// in-process directly — the mode every bare builder and unit test
	// exercises, since a Go closure cannot be shipped across a real
	// transport the way the spec's closure-blob can.
	invoker StageInvoker
}

// Option configures a Graph at construction.
type Option func(*Graph)

// WithStageInvoker wires the collaborator every stage-running combinator
// routes its closure through. Without one, closures run in-process.
func WithStageInvoker(inv StageInvoker) Option {
	return func(g *Graph) { g.invoker = inv }
}

// New creates an empty Graph identified by id (the owning thread's id).
func New(id string, opts ...Option) *Graph {
	g := &Graph{
		id:    id,
		nodes: make(map[string]*Node),
		order: slice.New[string](),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the thread id this graph belongs to.
func (g *Graph) ID() string { return g.id }

// NewNodeID allocates a fresh, graph-unique stage id: the decimal form of
// an atomically-incremented counter starting at 1 per graph.
func (g *Graph) NewNodeID() string {
	return strconv.FormatInt(g.nodeCounter.Add(1), 10)
}

// addNode registers n under its id, incrementing activeCount. Every
// combinator constructor calls this exactly once for the node it creates.
func (g *Graph) addNode(n *Node) *Node {
	g.mu.Lock()
	g.nodes[n.id] = n
	g.mu.Unlock()
	g.order.Append(n.id)
	atomic.AddInt64(&g.activeCount, 1)
	return n
}

// NodeIDs returns every node id registered on this graph, in creation
// order.
func (g *Graph) NodeIDs() []string {
	return g.order.Items()
}

// FindNode looks up a node by id. Returns apperrors.ErrUnknownStage if
// absent — callers at the façade boundary wrap this into a
// PlatformException with the stage id for context.
func (g *Graph) FindNode(id string) (*Node, error) {
	g.mu.RLock()
	n, ok := g.nodes[id]
	g.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrUnknownStage
	}
	return n, nil
}

// NodeCount returns the total number of nodes ever registered on this
// graph, resolved or not.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// ActiveCount returns the number of nodes whose output future has not yet
// resolved. It is a snapshot, not a guarantee — nodes can resolve between
// the read and the caller observing it.
func (g *Graph) ActiveCount() int64 {
	return atomic.LoadInt64(&g.activeCount)
}

// nodeResolved is called by every combinator's wrapped task once its
// output future has settled, keeping ActiveCount accurate without the
// cost of re-scanning the node map.
func (g *Graph) nodeResolved() {
	atomic.AddInt64(&g.activeCount, -1)
}

// Commit marks the graph committed and reports whether this call was the
// one that performed the transition (compare-and-swap false->true): the
// first call returns true, every subsequent call false. Commit only sets
// the flag: combinators keep creating nodes after it, and existing nodes
// keep resolving.
func (g *Graph) Commit() bool {
	return g.committed.CompareAndSwap(false, true)
}

// Committed reports whether Commit has been called.
func (g *Graph) Committed() bool {
	return g.committed.Load()
}
