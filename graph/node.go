package graph

import (
	"github.com/opencompleter/completer/datum"
	"github.com/opencompleter/completer/future"
)

// Node is one vertex of a completer graph. Per the graph-as-the-source-of-
// truth design, a Node never holds a pointer back to its owning Graph —
// every combinator that needs to reach another node is a Graph method and
// is handed the Graph explicitly.
type Node struct {
	id string

	// output is resolved exactly once, by the goroutine future.New spawns
	// around the combinator's task closure.
	output future.Future[datum.Result]
}

// ID returns the stage id this node was registered under.
func (n *Node) ID() string { return n.id }

// Output returns the node's result future. Every combinator and the
// façade's waitForCompletion read through this.
func (n *Node) Output() future.Future[datum.Result] { return n.output }
