package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sandevgo/opsbot/internal/core"
)

// Handler executes one tool invocation. Process-like handlers are expected
// to honour ctx cancellation so a dispatcher timeout kills the work.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Registry maps tool names to descriptors and handlers. It is built once
// at startup from built-ins plus MCP-discovered tools and is read-only
// for the rest of the session.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	tools    map[string]core.Tool
	order    []string
}

func New() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		tools:    make(map[string]core.Tool),
	}
}

// Register adds a tool under its function name. Registering a duplicate
// name fails with core.ErrDuplicateTool and leaves the registry unchanged.
func (r *Registry) Register(tool core.Tool, h Handler) error {
	name := tool.Function.Name
	if name == "" {
		return fmt.Errorf("register: tool name is empty")
	}
	if h == nil {
		return fmt.Errorf("register %s: handler is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("register %s: %w", name, core.ErrDuplicateTool)
	}

	r.handlers[name] = h
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the handler and descriptor for a name.
func (r *Registry) Resolve(name string) (Handler, core.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	if !ok {
		return nil, core.Tool{}, fmt.Errorf("resolve %s: %w", name, core.ErrToolNotFound)
	}
	return h, r.tools[name], nil
}

// List returns descriptors in registration order. The slice is a copy;
// callers may not mutate registry state through it.
func (r *Registry) List() []core.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
