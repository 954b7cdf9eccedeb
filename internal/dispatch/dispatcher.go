package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/internal/policy"
	"github.com/sandevgo/opsbot/internal/registry"
	"github.com/sandevgo/opsbot/pkg/log"
)

const defaultTimeout = 2 * time.Minute

// Dispatcher turns a ToolCall into exactly one ToolResult. It never
// returns an error: every failure is encoded in the result so the engine
// can hand it back to the model as a tool-role message.
type Dispatcher struct {
	reg     *registry.Registry
	pol     policy.Policy
	timeout time.Duration
}

func NewDispatcher(reg *registry.Registry, pol policy.Policy, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Dispatcher{
		reg:     reg,
		pol:     pol,
		timeout: timeout,
	}
}

func (d *Dispatcher) Invoke(ctx context.Context, call core.ToolCall) core.ToolResult {
	name := call.Function.Name
	args := call.Function.Arguments

	logger := log.FromCtx(ctx)
	logger.Info().Str("tool", name).Str("args", args).Msg("dispatching tool call")

	handler, tool, err := d.reg.Resolve(name)
	if err != nil {
		return failure(call.ID, err)
	}

	if err := validateArgs(tool.Function.Parameters, args); err != nil {
		return failure(call.ID, err)
	}

	if d.pol != nil {
		if err := d.pol.Check(name, args); err != nil {
			logger.Warn().Str("tool", name).Err(err).Msg("tool call denied by policy")
			return failure(call.ID, err)
		}
	}

	output, err := d.run(ctx, handler, json.RawMessage(args))
	if err != nil {
		if errors.Is(err, core.ErrTimeout) {
			logger.Warn().Str("tool", name).Dur("timeout", d.timeout).Msg("tool call timed out")
			return core.ToolResult{
				ToolCallID: call.ID,
				Status:     core.StatusTimeout,
				Output:     fmt.Sprintf("tool %s exceeded its %s budget and was terminated", name, d.timeout),
				ErrKind:    core.ErrKind(err),
			}
		}
		logger.Error().Str("tool", name).Err(err).Msg("tool call failed")
		return failure(call.ID, err)
	}

	return core.ToolResult{
		ToolCallID: call.ID,
		Status:     core.StatusOK,
		Output:     output,
	}
}

type handlerOutcome struct {
	output string
	err    error
}

// run executes the handler under the wall-clock budget. The timeout
// context propagates into exec.CommandContext-based handlers, which kills
// the underlying process; the watching goroutine is abandoned only after
// the handler observes cancellation.
func (d *Dispatcher) run(ctx context.Context, h registry.Handler, args json.RawMessage) (string, error) {
	tCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handlerOutcome{err: fmt.Errorf("%w: handler panic: %v", core.ErrExecutionFailed, r)}
			}
		}()
		out, err := h(tCtx, args)
		done <- handlerOutcome{output: out, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return "", core.ErrTimeout
			}
			return "", res.err
		}
		return res.output, nil
	case <-tCtx.Done():
		if errors.Is(tCtx.Err(), context.DeadlineExceeded) {
			return "", core.ErrTimeout
		}
		return "", tCtx.Err()
	}
}

func failure(callID string, err error) core.ToolResult {
	return core.ToolResult{
		ToolCallID: callID,
		Status:     core.StatusError,
		Output:     err.Error(),
		ErrKind:    core.ErrKind(err),
	}
}
