package core

import "encoding/json"

const (
	AppName          = "OpsBot"
	AppUserAgent     = "OpsBot-Agent/0.1"
	AppRepositoryURL = "https://github.com/sandevgo/opsbot"
	AppVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Function describes a callable operation the model may request.
// Parameters holds the raw JSON Schema for the arguments.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Tool is the descriptor advertised to the provider. The set of
// registered Tools is the capability surface of the agent.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a structured request produced by a provider adapter while
// parsing a model response. It is consumed exactly once by the dispatcher.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message is one entry of a conversation. Immutable once appended.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Reasoning  string     `json:"reasoning,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolStatus is the terminal state of a single tool invocation.
type ToolStatus string

const (
	StatusOK      ToolStatus = "ok"
	StatusError   ToolStatus = "error"
	StatusTimeout ToolStatus = "timeout"
)

// ToolResult is produced by the dispatcher, exactly one per ToolCall.
// ErrKind carries the taxonomy label ("invalid_arguments", "policy_denied",
// "execution_error", "timeout", "bridge_unavailable", "not_found") when
// Status is not ok.
type ToolResult struct {
	ToolCallID string     `json:"tool_call_id"`
	Status     ToolStatus `json:"status"`
	Output     string     `json:"output"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	ErrKind    string     `json:"err_kind,omitempty"`
}

// ToMessage converts the result into the tool-role message appended to the
// conversation. Failures are data: the model decides how to recover.
func (r ToolResult) ToMessage() Message {
	content := r.Output
	if r.Status != StatusOK && r.ErrKind != "" {
		content = "[" + r.ErrKind + "] " + content
	}
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: r.ToolCallID,
	}
}

type Model struct {
	ID            string
	Name          string
	ContextLength int
}
