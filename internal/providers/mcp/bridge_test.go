package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/internal/registry"
)

type fakeClient struct {
	tools     []mcpproto.Tool
	listErr   error
	callErr   error
	callReply *mcpproto.CallToolResult
	closed    bool

	lastCallName string
	lastCallArgs any
	callCount    int
}

func (f *fakeClient) ListTools(ctx context.Context, req mcpproto.ListToolsRequest) (*mcpproto.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcpproto.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeClient) CallTool(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
	f.callCount++
	f.lastCallName = req.Params.Name
	f.lastCallArgs = req.Params.Arguments
	if f.callErr != nil {
		return nil, f.callErr
	}
	if f.callReply != nil {
		return f.callReply, nil
	}
	return textResult("ok"), nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func (f *fakeClient) IsClosed() bool {
	return f.closed
}

func textResult(text string) *mcpproto.CallToolResult {
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{mcpproto.TextContent{Type: "text", Text: text}},
	}
}

type fakePool struct {
	clients  map[string]ToolClient
	addErr   error
	addCalls int
	// nextClient replaces the existing entry on Add, emulating a
	// successful reconnect.
	nextClient ToolClient
}

func newFakePool() *fakePool {
	return &fakePool{clients: make(map[string]ToolClient)}
}

func (p *fakePool) Add(ctx context.Context, name string, cfg ServerConfig) (ToolClient, error) {
	p.addCalls++
	if p.addErr != nil {
		return nil, p.addErr
	}
	cli := p.nextClient
	if cli == nil {
		cli = &fakeClient{}
	}
	p.clients[name] = cli
	return cli, nil
}

func (p *fakePool) Del(name string) error {
	delete(p.clients, name)
	return nil
}

func (p *fakePool) Get(name string) (ToolClient, bool) {
	cli, ok := p.clients[name]
	return cli, ok
}

func (p *fakePool) All() map[string]ToolClient {
	out := make(map[string]ToolClient, len(p.clients))
	for k, v := range p.clients {
		out[k] = v
	}
	return out
}

func (p *fakePool) Close() error {
	for _, cli := range p.clients {
		_ = cli.Close()
	}
	p.clients = make(map[string]ToolClient)
	return nil
}

func schemaOf(t *testing.T, raw string) mcpproto.ToolInputSchema {
	t.Helper()
	var s mcpproto.ToolInputSchema
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s
}

func TestDiscover_NamespacesTools(t *testing.T) {
	pool := newFakePool()
	pool.clients["files"] = &fakeClient{
		tools: []mcpproto.Tool{
			{Name: "read", Description: "read a file", InputSchema: schemaOf(t, `{"type":"object","properties":{"path":{"type":"string"}}}`)},
			{Name: "stat", Description: "stat a file"},
		},
	}
	pool.clients["web"] = &fakeClient{
		tools: []mcpproto.Tool{
			{Name: "fetch", Description: "fetch a url"},
		},
	}

	b := NewBridgeWithPool(pool, nil)

	tools, err := b.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 3)

	var names []string
	for _, tool := range tools {
		names = append(names, tool.Function.Name)
	}
	assert.Equal(t, []string{"files__read", "files__stat", "web__fetch"}, names)
	assert.Equal(t, "read a file", tools[0].Function.Description)
	assert.Contains(t, string(tools[0].Function.Parameters), `"path"`)
}

func TestDiscover_SkipsFailingServer(t *testing.T) {
	pool := newFakePool()
	pool.clients["good"] = &fakeClient{
		tools: []mcpproto.Tool{{Name: "ping"}},
	}
	pool.clients["bad"] = &fakeClient{listErr: errors.New("connection reset")}

	b := NewBridgeWithPool(pool, nil)

	tools, err := b.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "good__ping", tools[0].Function.Name)
}

func TestRegisterInto_UsesRegistryDuplicateCheck(t *testing.T) {
	pool := newFakePool()
	pool.clients["files"] = &fakeClient{
		tools: []mcpproto.Tool{{Name: "read", Description: "read a file"}},
	}

	b := NewBridgeWithPool(pool, nil)
	reg := registry.New()

	require.NoError(t, b.RegisterInto(context.Background(), reg))
	assert.Equal(t, 1, reg.Len())

	// Registering the same discovery again must trip the duplicate check.
	err := b.RegisterInto(context.Background(), reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicateTool)
}

func TestRegisterInto_HandlerRoutesToServer(t *testing.T) {
	cli := &fakeClient{
		tools:     []mcpproto.Tool{{Name: "read"}},
		callReply: textResult("file contents"),
	}
	pool := newFakePool()
	pool.clients["files"] = cli

	b := NewBridgeWithPool(pool, nil)
	reg := registry.New()
	require.NoError(t, b.RegisterInto(context.Background(), reg))

	handler, _, err := reg.Resolve("files__read")
	require.NoError(t, err)

	out, err := handler(context.Background(), json.RawMessage(`{"path":"/etc/hosts"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "file contents")
	assert.Equal(t, "read", cli.lastCallName)
}

func TestInvoke_NotNamespaced(t *testing.T) {
	b := NewBridgeWithPool(newFakePool(), nil)

	_, err := b.Invoke(context.Background(), "read_file", `{}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrToolNotFound)
}

func TestInvoke_UnknownServer(t *testing.T) {
	b := NewBridgeWithPool(newFakePool(), nil)

	_, err := b.Invoke(context.Background(), "ghost__read", `{}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBridgeUnavailable)
}

func TestInvoke_CallFailureIsBridgeUnavailable(t *testing.T) {
	pool := newFakePool()
	pool.clients["files"] = &fakeClient{callErr: errors.New("broken pipe")}

	b := NewBridgeWithPool(pool, nil)

	_, err := b.Invoke(context.Background(), "files__read", `{"path":"/x"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBridgeUnavailable)
}

func TestInvoke_RemoteErrorResult(t *testing.T) {
	pool := newFakePool()
	pool.clients["files"] = &fakeClient{
		callReply: &mcpproto.CallToolResult{
			IsError: true,
			Content: []mcpproto.Content{mcpproto.TextContent{Type: "text", Text: "no such file"}},
		},
	}

	b := NewBridgeWithPool(pool, nil)

	_, err := b.Invoke(context.Background(), "files__read", `{"path":"/x"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExecutionFailed)
	assert.Contains(t, err.Error(), "no such file")
}

func TestInvoke_ReconnectsClosedClient(t *testing.T) {
	dead := &fakeClient{closed: true}
	fresh := &fakeClient{callReply: textResult("after reconnect")}

	pool := newFakePool()
	pool.clients["files"] = dead
	pool.nextClient = fresh

	b := NewBridgeWithPool(pool, nil)
	b.configs["files"] = ServerConfig{Command: "mcp-files"}

	out, err := b.Invoke(context.Background(), "files__read", `{"path":"/x"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "after reconnect")
	assert.Equal(t, 1, pool.addCalls)
	assert.Equal(t, 0, dead.callCount)
	assert.Equal(t, 1, fresh.callCount)
}

func TestInvoke_ReconnectFailureIsBridgeUnavailable(t *testing.T) {
	pool := newFakePool()
	pool.clients["files"] = &fakeClient{closed: true}
	pool.addErr = errors.New("dial refused")

	b := NewBridgeWithPool(pool, nil)
	b.configs["files"] = ServerConfig{Command: "mcp-files"}

	_, err := b.Invoke(context.Background(), "files__read", `{}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrBridgeUnavailable)
	assert.Equal(t, 1, pool.addCalls)
}

func TestInvoke_BadArguments(t *testing.T) {
	pool := newFakePool()
	pool.clients["files"] = &fakeClient{}

	b := NewBridgeWithPool(pool, nil)

	_, err := b.Invoke(context.Background(), "files__read", `not json`)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidArguments)
}

func TestSplitNamespace(t *testing.T) {
	tests := []struct {
		name       string
		wantServer string
		wantTool   string
		wantOK     bool
	}{
		{"files__read", "files", "read", true},
		{"files__read__v2", "files", "read__v2", true},
		{"plain_tool", "", "", false},
		{"__read", "", "", false},
		{"files__", "", "", false},
	}
	for _, tt := range tests {
		server, tool, ok := splitNamespace(tt.name)
		assert.Equal(t, tt.wantOK, ok, tt.name)
		assert.Equal(t, tt.wantServer, server, tt.name)
		assert.Equal(t, tt.wantTool, tool, tt.name)
	}
}
