package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/internal/registry"
)

// Definition pairs a descriptor with its handler for registration.
type Definition struct {
	Tool    core.Tool
	Handler registry.Handler
}

func define(name, description, schema string, h registry.Handler) Definition {
	return Definition{
		Tool: core.Tool{
			Type: "function",
			Function: core.Function{
				Name:        name,
				Description: description,
				Parameters:  json.RawMessage(schema),
			},
		},
		Handler: h,
	}
}

// RegisterBuiltins wires every built-in tool into the registry. Called
// once at startup, before any MCP discovery.
func RegisterBuiltins(reg *registry.Registry, workDir string) error {
	fs := NewFilesystem(workDir)
	sh := NewShell(workDir)
	in := NewInterpreter(workDir)
	ps := NewProcesses()
	sv := NewServices()
	si := NewSystemInfo()

	var defs []Definition
	defs = append(defs, fs.Definitions()...)
	defs = append(defs, sh.Definitions()...)
	defs = append(defs, in.Definitions()...)
	defs = append(defs, ps.Definitions()...)
	defs = append(defs, sv.Definitions()...)
	defs = append(defs, si.Definitions()...)

	for _, d := range defs {
		if err := reg.Register(d.Tool, d.Handler); err != nil {
			return fmt.Errorf("register builtin: %w", err)
		}
	}
	return nil
}

const maxOutputLines = 200

func truncateOutput(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return "(empty)"
	}

	lines := strings.Split(output, "\n")
	if len(lines) <= maxOutputLines {
		return output
	}

	truncated := lines[len(lines)-maxOutputLines:]
	return fmt.Sprintf("... (output truncated, showing last %d lines)\n%s", maxOutputLines, strings.Join(truncated, "\n"))
}
