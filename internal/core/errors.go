package core

import "errors"

// Provider adapter failures. Adapters never retry; the engine owns retry
// policy and only ErrProviderUnreachable and ErrProviderProtocol qualify.
var (
	ErrProviderUnreachable = errors.New("provider unreachable")
	ErrProviderProtocol    = errors.New("provider protocol error")
	ErrProviderAuth        = errors.New("provider auth rejected")
)

// Registry failures.
var (
	ErrDuplicateTool = errors.New("duplicate tool name")
	ErrToolNotFound  = errors.New("tool not found")
)

// Dispatcher failures. These surface as tool-role messages, never as
// engine errors.
var (
	ErrInvalidArguments = errors.New("invalid tool arguments")
	ErrPolicyDenied     = errors.New("denied by policy")
	ErrExecutionFailed  = errors.New("tool execution failed")
	ErrTimeout          = errors.New("tool execution timed out")
)

// Bridge failure: the remote MCP server went away mid-call.
var ErrBridgeUnavailable = errors.New("mcp bridge unavailable")

// Engine-fatal: the consecutive tool-turn limit was hit.
var ErrDepthExceeded = errors.New("tool-call depth limit exceeded")

// ErrKind maps a dispatcher/bridge error to its taxonomy label used in
// ToolResult.ErrKind and audit payloads.
func ErrKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArguments):
		return "invalid_arguments"
	case errors.Is(err, ErrPolicyDenied):
		return "policy_denied"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBridgeUnavailable):
		return "bridge_unavailable"
	case errors.Is(err, ErrToolNotFound):
		return "not_found"
	default:
		return "execution_error"
	}
}
