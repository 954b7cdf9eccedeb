package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/internal/registry"
	"github.com/sandevgo/opsbot/pkg/log"
)

// Namespace separator between server name and remote tool name. Keeps
// remote tools from colliding with built-ins and with each other.
const nsSeparator = "__"

type Timeouts struct {
	Connect  time.Duration
	ToolList time.Duration
	ToolCall time.Duration
}

func NewDefaultTimeouts() *Timeouts {
	return &Timeouts{
		Connect:  30 * time.Second,
		ToolList: 5 * time.Second,
		ToolCall: 2 * time.Minute,
	}
}

// Bridge surfaces remote MCP servers as ordinary registry tools. It is
// one more handler source: discovery produces descriptors, invocation
// delegates over the wire.
type Bridge struct {
	storage  *FileStorage
	pool     ConnectionPool
	timeouts *Timeouts

	mu      sync.RWMutex
	configs map[string]ServerConfig
}

func NewBridge(configPath string) *Bridge {
	return &Bridge{
		storage:  NewFileStorage(configPath),
		pool:     NewPool(),
		timeouts: NewDefaultTimeouts(),
		configs:  make(map[string]ServerConfig),
	}
}

// NewBridgeWithPool lets tests substitute the connection layer.
func NewBridgeWithPool(pool ConnectionPool, timeouts *Timeouts) *Bridge {
	if timeouts == nil {
		timeouts = NewDefaultTimeouts()
	}
	return &Bridge{
		pool:     pool,
		timeouts: timeouts,
		configs:  make(map[string]ServerConfig),
	}
}

// Start loads the server config and connects every entry. A server that
// fails to connect is logged and skipped; it gets another chance on the
// next Invoke that routes to it.
func (b *Bridge) Start(ctx context.Context) error {
	if b.storage == nil {
		return nil
	}

	cfg, err := b.storage.Load(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	for name, srv := range cfg.MCPServers {
		b.configs[name] = srv
	}
	b.mu.Unlock()

	var wg sync.WaitGroup
	for name, srv := range cfg.MCPServers {
		wg.Add(1)
		go func(n string, c ServerConfig) {
			defer wg.Done()
			b.connect(ctx, n, c)
		}(name, srv)
	}
	wg.Wait()

	return nil
}

func (b *Bridge) connect(ctx context.Context, name string, cfg ServerConfig) bool {
	connectCtx, cancel := context.WithTimeout(ctx, b.timeouts.Connect)
	defer cancel()

	logger := log.FromCtx(ctx).With().Str("server", name).Logger()
	logger.Info().Str("url", cfg.URL).Str("command", cfg.Command).Msg("connecting mcp server")

	if _, err := b.pool.Add(connectCtx, name, cfg); err != nil {
		logger.Error().Err(err).Msg("failed to connect mcp server")
		return false
	}

	logger.Info().Msg("mcp server connected")
	return true
}

func (b *Bridge) Shutdown(ctx context.Context) error {
	return b.pool.Close()
}

// Discover lists tools from every connected server in parallel and
// returns them under namespaced names, sorted by server for a stable
// advertising order.
func (b *Bridge) Discover(ctx context.Context) ([]core.Tool, error) {
	type listResult struct {
		serverName string
		tools      []core.Tool
		err        error
	}

	clients := b.pool.All()
	results := make(chan listResult, len(clients))
	var wg sync.WaitGroup

	for name, cli := range clients {
		wg.Add(1)
		go func(n string, c ToolClient) {
			defer wg.Done()
			tools, err := b.listTools(ctx, n, c)
			results <- listResult{serverName: n, tools: tools, err: err}
		}(name, cli)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	byServer := make(map[string][]core.Tool)
	var servers []string
	for res := range results {
		if res.err != nil {
			log.FromCtx(ctx).Error().Err(res.err).Str("server", res.serverName).Msg("failed to list tools")
			continue
		}
		byServer[res.serverName] = res.tools
		servers = append(servers, res.serverName)
	}

	sort.Strings(servers)
	var all []core.Tool
	for _, s := range servers {
		all = append(all, byServer[s]...)
	}
	return all, nil
}

func (b *Bridge) listTools(ctx context.Context, serverName string, cli ToolClient) ([]core.Tool, error) {
	tCtx, cancel := context.WithTimeout(ctx, b.timeouts.ToolList)
	defer cancel()

	resp, err := cli.ListTools(tCtx, mcpproto.ListToolsRequest{})
	if err != nil {
		return nil, err
	}

	tools := make([]core.Tool, 0, len(resp.Tools))
	for _, t := range resp.Tools {
		schemaBytes, _ := json.Marshal(t.InputSchema)
		tools = append(tools, core.Tool{
			Type: "function",
			Function: core.Function{
				Name:        serverName + nsSeparator + t.Name,
				Description: t.Description,
				Parameters:  schemaBytes,
			},
		})
	}
	return tools, nil
}

// RegisterInto discovers remote tools and registers each one as a
// registry handler delegating to Invoke. The registry's duplicate check
// applies to namespaced names exactly as it does to built-ins.
func (b *Bridge) RegisterInto(ctx context.Context, reg *registry.Registry) error {
	tools, err := b.Discover(ctx)
	if err != nil {
		return err
	}

	for _, tool := range tools {
		name := tool.Function.Name
		handler := func(ctx context.Context, args json.RawMessage) (string, error) {
			return b.Invoke(ctx, name, string(args))
		}
		if err := reg.Register(tool, handler); err != nil {
			return fmt.Errorf("register mcp tool: %w", err)
		}
	}

	log.FromCtx(ctx).Info().Int("count", len(tools)).Msg("mcp tools registered")
	return nil
}

// Invoke routes a namespaced tool call to its server. A closed or
// missing connection is re-established once before the call; failure to
// do so, or loss mid-call, surfaces as ErrBridgeUnavailable.
func (b *Bridge) Invoke(ctx context.Context, name string, args string) (string, error) {
	serverName, toolName, ok := splitNamespace(name)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a bridged tool", core.ErrToolNotFound, name)
	}

	cli, connected := b.pool.Get(serverName)
	if !connected || cli.IsClosed() {
		cli = b.reconnect(ctx, serverName)
		if cli == nil {
			return "", fmt.Errorf("%w: server %s is not connected", core.ErrBridgeUnavailable, serverName)
		}
	}

	var argsMap map[string]any
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return "", fmt.Errorf("%w: arguments are not a JSON object: %v", core.ErrInvalidArguments, err)
		}
	}

	req := mcpproto.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = argsMap

	tCtx, cancel := context.WithTimeout(ctx, b.timeouts.ToolCall)
	defer cancel()

	res, err := cli.CallTool(tCtx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrBridgeUnavailable, err)
	}

	output := flattenContent(res.Content)
	if res.IsError {
		return "", fmt.Errorf("%w: %s", core.ErrExecutionFailed, strings.TrimSpace(output))
	}
	return output, nil
}

func (b *Bridge) reconnect(ctx context.Context, serverName string) ToolClient {
	b.mu.RLock()
	cfg, known := b.configs[serverName]
	b.mu.RUnlock()
	if !known {
		return nil
	}

	if !b.connect(ctx, serverName, cfg) {
		return nil
	}
	cli, ok := b.pool.Get(serverName)
	if !ok {
		return nil
	}
	return cli
}

func splitNamespace(name string) (server, tool string, ok bool) {
	idx := strings.Index(name, nsSeparator)
	if idx <= 0 || idx+len(nsSeparator) >= len(name) {
		return "", "", false
	}
	return name[:idx], name[idx+len(nsSeparator):], true
}

func flattenContent(content []mcpproto.Content) string {
	var out strings.Builder
	for _, c := range content {
		if text, ok := c.(mcpproto.TextContent); ok {
			out.WriteString(text.Text)
			out.WriteString("\n")
		} else if textPtr, ok := c.(*mcpproto.TextContent); ok {
			out.WriteString(textPtr.Text)
			out.WriteString("\n")
		}
	}
	return out.String()
}
