package core

import (
	"context"
	"time"
)

// AIProvider normalizes chat backends behind one contract. The returned
// assistant message carries optional text and an ordered list of tool calls.
type AIProvider interface {
	Chat(ctx context.Context, history []Message, tools []Tool) (Message, error)
}

// ToolInvoker executes one tool call and always yields a result; failures
// are encoded in the result, never raised.
type ToolInvoker interface {
	Invoke(ctx context.Context, call ToolCall) ToolResult
}

// ToolSource advertises descriptors to the provider.
type ToolSource interface {
	List() []Tool
}

// AuditEntry is one append-only record of agent activity. The core writes
// entries and never reads them back; external tooling consumes them.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	TurnID    string    `json:"turn_id"`
	Kind      string    `json:"kind"`
	Payload   []byte    `json:"payload"`
}

// Audit event kinds.
const (
	AuditUserInput      = "user_input"
	AuditProviderReply  = "provider_reply"
	AuditToolInvocation = "tool_invocation"
	AuditToolResult     = "tool_result"
	AuditTurnCompleted  = "turn_completed"
	AuditTurnAborted    = "turn_aborted"
)

// AuditRecorder appends entries to durable storage.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// MessagesRepository persists conversation history across sessions.
type MessagesRepository interface {
	AddMessage(ctx context.Context, sessionID string, msg Message) error
	GetMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)
}
