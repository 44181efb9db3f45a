//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-deepresearch-go/event"
	"trpc.group/trpc-go/trpc-deepresearch-go/log"
	"trpc.group/trpc-go/trpc-deepresearch-go/session"
)

// DefaultMaxHops bounds supervisor↔node transitions per run.
const DefaultMaxHops = 24

// Engine errors.
var (
	// ErrRunInProgress is returned when a run is already executing for the
	// session. The caller should queue the input instead.
	ErrRunInProgress = errors.New("run already in progress for session")

	// ErrHopLimitExceeded is returned when a run performs more transitions
	// than the configured ceiling.
	ErrHopLimitExceeded = errors.New("hop limit exceeded")
)

// Engine drives the execution loop: supervisor → node → supervisor, with a
// checkpoint appended after every transition and progress events pushed to
// the session's subscriber. Each session has at most one live run; within a
// run execution is strictly serial and the engine owns the only live state
// reference.
type Engine struct {
	router    *Router
	saver     Saver
	registry  *session.Registry
	queue     *session.PromptQueue
	publisher EventPublisher
	nodes     map[NodeID]Node
	maxHops   int
	tracer    trace.Tracer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxHops overrides the per-run transition ceiling.
func WithMaxHops(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// WithEventPublisher sets the progress event publisher.
func WithEventPublisher(publisher EventPublisher) EngineOption {
	return func(e *Engine) { e.publisher = publisher }
}

// NewEngine creates an execution engine. The node set is closed at
// construction time; the supervisor can only dispatch to registered nodes.
func NewEngine(
	router *Router,
	saver Saver,
	registry *session.Registry,
	queue *session.PromptQueue,
	nodes []Node,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		router:   router,
		saver:    saver,
		registry: registry,
		queue:    queue,
		nodes:    make(map[NodeID]Node, len(nodes)),
		maxHops:  DefaultMaxHops,
		tracer:   otel.Tracer("deepresearch/workflow"),
	}
	for _, node := range nodes {
		e.nodes[node.ID()] = node
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes a workflow run for the session seeded with the given input.
// It blocks until the run (and any follow-up runs triggered by prompts that
// queued up meanwhile) reaches a terminal or paused status.
//
// If a run is already executing for the session, Run returns ErrRunInProgress
// without touching any state; the caller should push the input onto the
// prompt queue instead.
func (e *Engine) Run(ctx context.Context, sessionID, input string) error {
	for {
		if !e.begin(sessionID) {
			return ErrRunInProgress
		}
		if err := e.runOnce(ctx, sessionID, input); err != nil {
			return err
		}
		// Input that queued up during the run must not strand: seed an
		// immediate follow-up run with it.
		prompts := e.queue.DrainAndClear(sessionID)
		if len(prompts) == 0 {
			return nil
		}
		input = strings.Join(prompts, "\n")
	}
}

// begin atomically claims the session for a run.
func (e *Engine) begin(sessionID string) bool {
	if e.registry.CompareAndSetStatus(sessionID, session.StatusIdle, session.StatusInProgress) {
		return true
	}
	return e.registry.CompareAndSetStatus(sessionID, session.StatusAwaitingInput, session.StatusInProgress)
}

// runOnce drives one run to completion. The session status on return is
// awaiting_input when the run paused for clarification, idle otherwise.
func (e *Engine) runOnce(ctx context.Context, sessionID, input string) (err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.run")
	defer span.End()

	state, cursor, err := e.restore(ctx, sessionID)
	if err != nil {
		e.fail(sessionID, supervisorName, fmt.Errorf("restore checkpoint: %w", err))
		return err
	}
	if input != "" {
		state.AppendHuman(input)
		state.LastActor = "user"
		// New input resolves a pending clarification pause.
		state.PauseRequired = false
		e.publish(sessionID, event.New(event.TypeHumanInput, "user", input))
	}
	if err := e.checkpoint(ctx, sessionID, cursor, state); err != nil {
		e.fail(sessionID, supervisorName, err)
		return err
	}

	for hop := 0; hop < e.maxHops; hop++ {
		// A pending pause forces the decision to end without merging, so
		// leave queued prompts in place: the post-run drain seeds the
		// follow-up run with them instead of dropping them.
		var prompts []string
		if !state.PauseRequired {
			prompts = e.queue.DrainAndClear(sessionID)
		}
		next := e.router.Decide(ctx, sessionID, state, prompts)
		if len(prompts) > 0 {
			// The merge mutated state; persist before the next invocation.
			if err := e.checkpoint(ctx, sessionID, cursor, state); err != nil {
				e.fail(sessionID, supervisorName, err)
				return err
			}
		}
		if next == NodeEnd {
			e.finish(sessionID, state)
			return nil
		}

		node, ok := e.nodes[next]
		if !ok {
			e.publish(sessionID, event.New(event.TypeRoutingError, supervisorName,
				fmt.Sprintf("no node registered for %q, ending run", next)))
			e.finish(sessionID, state)
			return nil
		}

		e.updateStep(sessionID, string(next))
		decision, err := e.invoke(ctx, sessionID, node, state)
		if err != nil {
			e.fail(sessionID, string(next), err)
			return err
		}
		cursor = next
		if err := e.checkpoint(ctx, sessionID, cursor, state); err != nil {
			e.fail(sessionID, string(next), err)
			return err
		}
		if decision == NodeEnd {
			e.finish(sessionID, state)
			return nil
		}
	}

	e.publish(sessionID, event.New(event.TypeWorkflowError, supervisorName,
		fmt.Sprintf("run aborted after %d hops without reaching a terminal node", e.maxHops)))
	e.finish(sessionID, state)
	return fmt.Errorf("%w: session %s stopped after %d hops", ErrHopLimitExceeded, sessionID, e.maxHops)
}

// restore loads the latest checkpoint, or starts a fresh state.
func (e *Engine) restore(ctx context.Context, sessionID string) (*State, NodeID, error) {
	checkpoint, err := e.saver.LoadLatest(ctx, sessionID)
	if err != nil {
		return nil, NodeUnspecified, err
	}
	if checkpoint == nil || checkpoint.State == nil {
		return NewState(), NodeUnspecified, nil
	}
	return checkpoint.State, checkpoint.Cursor, nil
}

// invoke runs a node, converting a panic into a node-level failure so one
// misbehaving node cannot take down the process.
func (e *Engine) invoke(ctx context.Context, sessionID string, node Node, state *State) (decision NodeID, err error) {
	ctx, span := e.tracer.Start(ctx, "workflow.node."+string(node.ID()))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node %s panicked: %v", node.ID(), r)
		}
	}()
	return node.Invoke(ctx, sessionID, state)
}

// checkpoint appends a durable snapshot of the state. A checkpoint failure
// is fatal to the run: the loop must not continue on unpersisted state.
func (e *Engine) checkpoint(ctx context.Context, sessionID string, cursor NodeID, state *State) error {
	snapshot, err := state.Clone()
	if err != nil {
		return fmt.Errorf("snapshot state: %w", err)
	}
	checkpoint := &Checkpoint{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Cursor:    cursor,
		State:     snapshot,
		CreatedAt: time.Now(),
	}
	if err := e.saver.Append(ctx, checkpoint); err != nil {
		return fmt.Errorf("append checkpoint: %w", err)
	}
	return nil
}

// finish records the run's terminal status: awaiting_input when paused for
// clarification, idle otherwise.
func (e *Engine) finish(sessionID string, state *State) {
	status := session.StatusIdle
	if state.PauseRequired {
		status = session.StatusAwaitingInput
	}
	count := len(state.Messages)
	if err := e.registry.Update(sessionID, session.Update{
		Status:       session.StatusPtr(status),
		CurrentStep:  session.StringPtr(""),
		MessageCount: session.IntPtr(count),
	}); err != nil {
		log.Warnf("updating session %s after run: %v", sessionID, err)
	}
}

// fail reports a fatal run error and resets the session to idle so the user
// can retry. The process keeps serving other sessions.
func (e *Engine) fail(sessionID, sender string, err error) {
	log.Errorf("workflow run failed for session %s at %s: %v", sessionID, sender, err)
	e.publish(sessionID, event.New(event.TypeWorkflowError, sender, err.Error()))
	if updateErr := e.registry.Update(sessionID, session.Update{
		Status:      session.StatusPtr(session.StatusIdle),
		CurrentStep: session.StringPtr(""),
	}); updateErr != nil {
		log.Warnf("updating session %s after failure: %v", sessionID, updateErr)
	}
}

func (e *Engine) updateStep(sessionID, step string) {
	if err := e.registry.Update(sessionID, session.Update{CurrentStep: session.StringPtr(step)}); err != nil {
		log.Warnf("updating current step for session %s: %v", sessionID, err)
	}
}

func (e *Engine) publish(sessionID string, ev *event.Event) {
	if e.publisher == nil {
		return
	}
	e.publisher.Publish(sessionID, ev)
}
