package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/internal/storage/sqlite"
)

type scriptedProvider struct {
	mu      sync.Mutex
	replies []core.Message
	calls   int
	errs    []error
	// seen records a copy of the history of every Chat call.
	seen [][]core.Message
}

func (p *scriptedProvider) Chat(ctx context.Context, history []core.Message, tools []core.Tool) (core.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make([]core.Message, len(history))
	copy(snapshot, history)
	p.seen = append(p.seen, snapshot)

	idx := p.calls
	p.calls++

	if idx < len(p.errs) && p.errs[idx] != nil {
		return core.Message{}, p.errs[idx]
	}
	if idx < len(p.replies) {
		return p.replies[idx], nil
	}
	// Past the script: keep asking for tools so depth tests can run.
	return core.Message{
		Role:      core.RoleAssistant,
		ToolCalls: []core.ToolCall{{ID: fmt.Sprintf("call_%d", idx), Type: "function", Function: core.FunctionCall{Name: "echo", Arguments: `{}`}}},
	}, nil
}

func (p *scriptedProvider) chatCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type funcInvoker struct {
	fn func(ctx context.Context, call core.ToolCall) core.ToolResult
}

func (f *funcInvoker) Invoke(ctx context.Context, call core.ToolCall) core.ToolResult {
	if f.fn == nil {
		return core.ToolResult{ToolCallID: call.ID, Status: core.StatusOK, Output: "ok"}
	}
	return f.fn(ctx, call)
}

type staticTools struct{}

func (staticTools) List() []core.Tool {
	return []core.Tool{{Type: "function", Function: core.Function{Name: "echo"}}}
}

type memRecorder struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (r *memRecorder) Record(ctx context.Context, entry core.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Kind)
	}
	return out
}

func newTestEngine(p core.AIProvider, inv core.ToolInvoker, audit core.AuditRecorder) *Engine {
	return NewEngine(p, inv, staticTools{}, audit, nil, 3, 2)
}

func assistantText(text string) core.Message {
	return core.Message{Role: core.RoleAssistant, Content: text}
}

func assistantCalls(calls ...core.ToolCall) core.Message {
	return core.Message{Role: core.RoleAssistant, ToolCalls: calls}
}

func call(id, name, args string) core.ToolCall {
	return core.ToolCall{ID: id, Type: "function", Function: core.FunctionCall{Name: name, Arguments: args}}
}

func TestRun_PlainTextCompletes(t *testing.T) {
	p := &scriptedProvider{replies: []core.Message{assistantText("all good")}}
	e := newTestEngine(p, &funcInvoker{}, nil)
	conv := NewConversation(nil, 8000)

	out, err := e.Run(context.Background(), conv, "s", "status?", nil)
	require.NoError(t, err)
	assert.Equal(t, "all good", out)
	assert.Equal(t, StateCompleted, e.State())
	assert.Equal(t, 1, p.chatCalls())
}

func TestRun_ToolRoundThenAnswer(t *testing.T) {
	p := &scriptedProvider{replies: []core.Message{
		assistantCalls(call("call_1", "echo", `{"text":"hi"}`)),
		assistantText("done"),
	}}
	inv := &funcInvoker{fn: func(ctx context.Context, tc core.ToolCall) core.ToolResult {
		return core.ToolResult{ToolCallID: tc.ID, Status: core.StatusOK, Output: "hi"}
	}}
	e := newTestEngine(p, inv, nil)
	conv := NewConversation(nil, 8000)

	out, err := e.Run(context.Background(), conv, "s", "say hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	// Second provider call must see the tool result after the tool call.
	require.Len(t, p.seen, 2)
	second := p.seen[1]
	require.Len(t, second, 3)
	assert.Equal(t, core.RoleUser, second[0].Role)
	assert.Equal(t, core.RoleAssistant, second[1].Role)
	assert.Equal(t, core.RoleTool, second[2].Role)
	assert.Equal(t, "call_1", second[2].ToolCallID)
}

func TestRun_ConcurrentResultsKeepRequestOrder(t *testing.T) {
	calls := []core.ToolCall{
		call("call_a", "echo", `{}`),
		call("call_b", "echo", `{}`),
		call("call_c", "echo", `{}`),
	}
	p := &scriptedProvider{replies: []core.Message{
		assistantCalls(calls...),
		assistantText("done"),
	}}
	// First call is slowest, last fastest: completion order is reversed.
	delays := map[string]time.Duration{"call_a": 60 * time.Millisecond, "call_b": 30 * time.Millisecond, "call_c": 0}
	inv := &funcInvoker{fn: func(ctx context.Context, tc core.ToolCall) core.ToolResult {
		time.Sleep(delays[tc.ID])
		return core.ToolResult{ToolCallID: tc.ID, Status: core.StatusOK, Output: tc.ID}
	}}
	e := newTestEngine(p, inv, nil)
	conv := NewConversation(nil, 8000)

	_, err := e.Run(context.Background(), conv, "s", "run three", nil)
	require.NoError(t, err)

	second := p.seen[1]
	require.Len(t, second, 5)
	assert.Equal(t, "call_a", second[2].ToolCallID)
	assert.Equal(t, "call_b", second[3].ToolCallID)
	assert.Equal(t, "call_c", second[4].ToolCallID)
}

func TestRun_DepthLimitAborts(t *testing.T) {
	// Empty script: the provider asks for another tool round forever.
	p := &scriptedProvider{}
	audit := &memRecorder{}
	e := newTestEngine(p, &funcInvoker{}, audit)
	conv := NewConversation(nil, 8000)

	out, err := e.Run(context.Background(), conv, "s", "loop", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDepthExceeded)
	assert.Equal(t, StateAborted, e.State())
	assert.Contains(t, out, "tool rounds")

	// maxToolTurns=3: exactly 3 provider calls, never a 4th.
	assert.Equal(t, 3, p.chatCalls())

	kinds := audit.kinds()
	assert.Equal(t, core.AuditTurnAborted, kinds[len(kinds)-1])
}

func TestRun_RetriesUnreachableProvider(t *testing.T) {
	p := &scriptedProvider{
		errs:    []error{core.ErrProviderUnreachable, core.ErrProviderUnreachable},
		replies: []core.Message{{}, {}, assistantText("recovered")},
	}
	e := newTestEngine(p, &funcInvoker{}, nil)
	conv := NewConversation(nil, 8000)

	out, err := e.Run(context.Background(), conv, "s", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, 3, p.chatCalls())
}

func TestRun_AuthErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{errs: []error{core.ErrProviderAuth}}
	e := newTestEngine(p, &funcInvoker{}, nil)
	conv := NewConversation(nil, 8000)

	_, err := e.Run(context.Background(), conv, "s", "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrProviderAuth)
	assert.Equal(t, StateAborted, e.State())
	assert.Equal(t, 1, p.chatCalls())
}

func TestRun_AuditTrailOrder(t *testing.T) {
	p := &scriptedProvider{replies: []core.Message{
		assistantCalls(call("call_1", "echo", `{}`)),
		assistantText("done"),
	}}
	audit := &memRecorder{}
	e := newTestEngine(p, &funcInvoker{}, audit)
	conv := NewConversation(nil, 8000)

	_, err := e.Run(context.Background(), conv, "s", "audit me", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		core.AuditUserInput,
		core.AuditProviderReply,
		core.AuditToolInvocation,
		core.AuditToolResult,
		core.AuditProviderReply,
		core.AuditTurnCompleted,
	}, audit.kinds())

	// Every entry of the turn shares one turn id.
	turnID := audit.entries[0].TurnID
	require.NotEmpty(t, turnID)
	for _, entry := range audit.entries {
		assert.Equal(t, turnID, entry.TurnID)
	}
}

// turnCapturingRepo records to the real sqlite repo while remembering the
// turn id, which the engine generates internally.
type turnCapturingRepo struct {
	repo   *sqlite.AuditRepo
	turnID string
}

func (r *turnCapturingRepo) Record(ctx context.Context, entry core.AuditEntry) error {
	r.turnID = entry.TurnID
	return r.repo.Record(ctx, entry)
}

func TestRun_AuditLogReconstructsConversation(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "opsbot.db"))
	require.NoError(t, err)
	defer db.Close()

	audit := &turnCapturingRepo{repo: sqlite.NewAuditRepo(db)}

	p := &scriptedProvider{replies: []core.Message{
		assistantCalls(call("call_1", "echo", `{"text":"hi"}`)),
		assistantText("done"),
	}}
	inv := &funcInvoker{fn: func(ctx context.Context, tc core.ToolCall) core.ToolResult {
		return core.ToolResult{ToolCallID: tc.ID, Status: core.StatusOK, Output: "hi"}
	}}
	e := newTestEngine(p, inv, audit)
	conv := NewConversation(nil, 8000)

	_, err = e.Run(ctx, conv, "s", "say hi", nil)
	require.NoError(t, err)

	entries, err := audit.repo.ListByTurn(ctx, audit.turnID)
	require.NoError(t, err)

	// Rebuild the message sequence from the durable entries alone.
	var rebuilt []core.Message
	for _, entry := range entries {
		switch entry.Kind {
		case core.AuditUserInput:
			var p struct {
				Input string `json:"input"`
			}
			require.NoError(t, json.Unmarshal(entry.Payload, &p))
			rebuilt = append(rebuilt, core.Message{Role: core.RoleUser, Content: p.Input})
		case core.AuditProviderReply:
			var m core.Message
			require.NoError(t, json.Unmarshal(entry.Payload, &m))
			rebuilt = append(rebuilt, m)
		case core.AuditToolResult:
			var r core.ToolResult
			require.NoError(t, json.Unmarshal(entry.Payload, &r))
			rebuilt = append(rebuilt, r.ToMessage())
		}
	}

	assert.Equal(t, conv.Messages(), rebuilt)
}

func TestRun_ToolFailureIsDataNotError(t *testing.T) {
	p := &scriptedProvider{replies: []core.Message{
		assistantCalls(call("call_1", "echo", `{}`)),
		assistantText("handled the failure"),
	}}
	inv := &funcInvoker{fn: func(ctx context.Context, tc core.ToolCall) core.ToolResult {
		return core.ToolResult{ToolCallID: tc.ID, Status: core.StatusError, Output: "boom", ErrKind: "execution_error"}
	}}
	e := newTestEngine(p, inv, nil)
	conv := NewConversation(nil, 8000)

	out, err := e.Run(context.Background(), conv, "s", "try it", nil)
	require.NoError(t, err)
	assert.Equal(t, "handled the failure", out)

	second := p.seen[1]
	assert.Contains(t, second[2].Content, "[execution_error]")
}

func TestRun_CancellationStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := &scriptedProvider{}
	inv := &funcInvoker{fn: func(ctx context.Context, tc core.ToolCall) core.ToolResult {
		cancel()
		return core.ToolResult{ToolCallID: tc.ID, Status: core.StatusTimeout, ErrKind: "timeout"}
	}}
	e := newTestEngine(p, inv, nil)
	conv := NewConversation(nil, 8000)

	_, err := e.Run(ctx, conv, "s", "cancel me", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateAborted, e.State())
	assert.Equal(t, 1, p.chatCalls())
}

func TestRun_OnUpdateSeesIntermediateMessages(t *testing.T) {
	p := &scriptedProvider{replies: []core.Message{
		assistantCalls(call("call_1", "echo", `{}`)),
		assistantText("final"),
	}}
	e := newTestEngine(p, &funcInvoker{}, nil)
	conv := NewConversation(nil, 8000)

	var updates []core.Message
	_, err := e.Run(context.Background(), conv, "s", "go", func(m core.Message) {
		updates = append(updates, m)
	})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Len(t, updates[0].ToolCalls, 1)
	assert.Equal(t, "final", updates[1].Content)
}
