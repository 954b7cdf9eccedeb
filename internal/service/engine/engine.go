package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/pkg/log"
	"github.com/sandevgo/opsbot/pkg/retry"
)

// State is the engine's position in the turn lifecycle, exposed for
// observability only; transitions are internal.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingProvider State = "awaiting_provider_reply"
	StateInspectingReply  State = "inspecting_reply"
	StateExecutingTools   State = "executing_tools"
	StateCompleted        State = "completed"
	StateAborted          State = "aborted"
)

// Engine drives one user turn at a time: provider call, tool dispatch,
// repeat until the model answers in plain text or the depth limit trips.
type Engine struct {
	ai      core.AIProvider
	invoker core.ToolInvoker
	tools   core.ToolSource
	audit   core.AuditRecorder
	repo    core.MessagesRepository
	retrier *retry.Retrier

	maxToolTurns int

	mu    sync.RWMutex
	state State
}

func NewEngine(
	ai core.AIProvider,
	invoker core.ToolInvoker,
	tools core.ToolSource,
	audit core.AuditRecorder,
	repo core.MessagesRepository,
	maxToolTurns int,
	providerRetries int,
) *Engine {
	retryCfg := retry.NewDefaultConfig()
	retryCfg.MaxRetries = providerRetries
	retryCfg.RetryIf = func(err error) bool {
		return errors.Is(err, core.ErrProviderUnreachable) ||
			errors.Is(err, core.ErrProviderProtocol)
	}

	return &Engine{
		ai:           ai,
		invoker:      invoker,
		tools:        tools,
		audit:        audit,
		repo:         repo,
		retrier:      retry.NewRetrier(retryCfg),
		maxToolTurns: maxToolTurns,
		state:        StateIdle,
	}
}

func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run processes one user input to completion. onUpdate fires for every
// assistant message so the surface can render intermediate tool-calling
// steps; it may be nil. The returned string is the final assistant text.
func (e *Engine) Run(ctx context.Context, conv *Conversation, sessionID, input string, onUpdate func(core.Message)) (string, error) {
	logger := log.FromCtx(ctx)
	turnID := uuid.NewString()
	conv.NextTurn()

	userMsg := core.Message{Role: core.RoleUser, Content: input}
	e.commit(ctx, conv, sessionID, userMsg)
	e.record(ctx, turnID, core.AuditUserInput, map[string]string{"input": input})

	var finalContent string

	for depth := 0; ; depth++ {
		if depth >= e.maxToolTurns {
			abort := core.Message{
				Role:    core.RoleAssistant,
				Content: fmt.Sprintf("Stopped after %d tool rounds without reaching a final answer. Rephrase the request or raise the tool turn limit.", e.maxToolTurns),
			}
			e.commit(ctx, conv, sessionID, abort)
			if onUpdate != nil {
				onUpdate(abort)
			}
			e.record(ctx, turnID, core.AuditTurnAborted, map[string]string{"reason": "depth_exceeded"})
			e.setState(StateAborted)
			return abort.Content, fmt.Errorf("turn %s: %w", turnID, core.ErrDepthExceeded)
		}

		e.setState(StateAwaitingProvider)

		var reply core.Message
		err := e.retrier.Do(ctx, func() error {
			var chatErr error
			reply, chatErr = e.ai.Chat(ctx, conv.ForProvider(), e.tools.List())
			return chatErr
		})
		if err != nil {
			e.record(ctx, turnID, core.AuditTurnAborted, map[string]string{"reason": "provider_error", "error": err.Error()})
			e.setState(StateAborted)
			return "", fmt.Errorf("provider chat failed: %w", err)
		}

		e.setState(StateInspectingReply)
		e.commit(ctx, conv, sessionID, reply)
		// The full message goes into the log so external tooling can
		// reconstruct the conversation from audit entries alone.
		e.record(ctx, turnID, core.AuditProviderReply, reply)

		if onUpdate != nil {
			onUpdate(reply)
		}
		if reply.Content != "" {
			finalContent = reply.Content
		}

		if len(reply.ToolCalls) == 0 {
			e.record(ctx, turnID, core.AuditTurnCompleted, nil)
			e.setState(StateCompleted)
			return finalContent, nil
		}

		e.setState(StateExecutingTools)
		results := e.dispatch(ctx, turnID, reply.ToolCalls)

		for _, res := range results {
			logger.Debug().Str("tool_call_id", res.ToolCallID).Str("status", string(res.Status)).Msg("tool result")
			e.commit(ctx, conv, sessionID, res.ToMessage())
			e.record(ctx, turnID, core.AuditToolResult, res)
		}

		if ctx.Err() != nil {
			e.record(ctx, turnID, core.AuditTurnAborted, map[string]string{"reason": "cancelled"})
			e.setState(StateAborted)
			return finalContent, ctx.Err()
		}
	}
}

// dispatch runs every call of the round concurrently and returns results
// in the original request order.
func (e *Engine) dispatch(ctx context.Context, turnID string, calls []core.ToolCall) []core.ToolResult {
	logger := log.FromCtx(ctx)
	results := make([]core.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		logger.Info().Str("tool", call.Function.Name).Msg("executing tool")
		e.record(ctx, turnID, core.AuditToolInvocation, map[string]string{
			"tool_call_id": call.ID,
			"name":         call.Function.Name,
			"arguments":    call.Function.Arguments,
		})

		wg.Add(1)
		go func(idx int, tc core.ToolCall) {
			defer wg.Done()
			results[idx] = e.invoker.Invoke(ctx, tc)
		}(i, call)
	}
	wg.Wait()

	return results
}

// commit appends to the conversation and persists; a storage failure is
// logged, not fatal, so a broken disk does not kill the session.
func (e *Engine) commit(ctx context.Context, conv *Conversation, sessionID string, msg core.Message) {
	conv.Append(msg)
	if e.repo == nil {
		return
	}
	if err := e.repo.AddMessage(ctx, sessionID, msg); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("role", msg.Role).Msg("failed to persist message")
	}
}

func (e *Engine) record(ctx context.Context, turnID, kind string, payload any) {
	if e.audit == nil {
		return
	}

	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("kind", kind).Msg("failed to marshal audit payload")
		}
	}

	entry := core.AuditEntry{TurnID: turnID, Kind: kind, Payload: raw}
	if err := e.audit.Record(ctx, entry); err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("kind", kind).Msg("failed to record audit entry")
	}
}
