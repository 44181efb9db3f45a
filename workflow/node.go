//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import "context"

// NodeID identifies an agent node. The set of valid ids is closed; routing
// decisions outside this set are normalized to NodeEnd.
type NodeID string

// The closed node vocabulary.
const (
	// NodeUnspecified defers the routing decision to the supervisor.
	NodeUnspecified  NodeID = ""
	NodeClarify      NodeID = "clarify"
	NodeDecompose    NodeID = "decompose"
	NodeSearch       NodeID = "search"
	NodeFileSearch   NodeID = "file_search"
	NodeFileGenerate NodeID = "file_generate"
	NodeReport       NodeID = "report"
	NodeEnd          NodeID = "end"
)

// routableNodes are the ids the supervisor may dispatch to.
var routableNodes = map[NodeID]bool{
	NodeClarify:      true,
	NodeDecompose:    true,
	NodeSearch:       true,
	NodeFileSearch:   true,
	NodeFileGenerate: true,
	NodeReport:       true,
	NodeEnd:          true,
}

// ParseNodeID normalizes a raw routing string to a NodeID. Unknown values
// report ok=false; callers must treat them as NodeEnd.
func ParseNodeID(raw string) (NodeID, bool) {
	id := NodeID(raw)
	if routableNodes[id] {
		return id, true
	}
	return NodeEnd, false
}

// Node is one pluggable unit of workflow logic. A node consumes and mutates
// the workflow state it is handed (it is the sole writer for the duration of
// the call) and returns a routing decision.
//
// Returning NodeUnspecified hands the decision back to the supervisor, which
// is what most nodes do. Returning NodeEnd terminates the run immediately
// without consulting the supervisor; the clarify node uses this when it
// requests a pause. A node may run an internal model↔tool sub-loop before
// returning; the sub-loop's scratch lives in State.SubMessages and is cleared
// by the node once it has a final answer.
type Node interface {
	// ID returns the node's routing id.
	ID() NodeID

	// Invoke runs the node against the state.
	Invoke(ctx context.Context, sessionID string, state *State) (NodeID, error)
}
