package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

const listProcessesSchema = `
{
  "type": "object",
  "properties": {
    "filter": { "type": "string", "description": "Optional substring to filter process names by" }
  }
}
`

type Processes struct{}

func NewProcesses() *Processes {
	return &Processes{}
}

// ListProcesses enumerates running processes via the platform ps/tasklist.
func (p *Processes) ListProcesses(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Filter string `json:"filter"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "tasklist")
	} else {
		cmd = exec.CommandContext(ctx, "ps", "-eo", "pid,ppid,pcpu,pmem,comm")
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to enumerate processes: %w", err)
	}

	out := stdout.String()
	if input.Filter == "" {
		return truncateOutput(out), nil
	}

	lines := strings.Split(out, "\n")
	var filtered []string
	for i, line := range lines {
		if i == 0 || strings.Contains(line, input.Filter) {
			filtered = append(filtered, line)
		}
	}
	return truncateOutput(strings.Join(filtered, "\n")), nil
}

func (p *Processes) Definitions() []Definition {
	return []Definition{
		define("list_processes", "List running processes, optionally filtered by name", listProcessesSchema, p.ListProcesses),
	}
}
