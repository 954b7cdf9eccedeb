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

const listServicesSchema = `
{
  "type": "object",
  "properties": {
    "filter": { "type": "string", "description": "Optional substring to filter service names by" }
  }
}
`

type Services struct{}

func NewServices() *Services {
	return &Services{}
}

// ListServices enumerates system services: systemctl on Linux (SysV
// `service` as fallback), launchctl on macOS, sc on Windows.
func (s *Services) ListServices(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Filter string `json:"filter"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
	}

	cmd := serviceListCommand(ctx)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to enumerate services: %w", err)
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

func serviceListCommand(ctx context.Context) *exec.Cmd {
	switch runtime.GOOS {
	case "windows":
		return exec.CommandContext(ctx, "sc", "query", "state=", "all")
	case "darwin":
		return exec.CommandContext(ctx, "launchctl", "list")
	default:
		if _, err := exec.LookPath("systemctl"); err == nil {
			return exec.CommandContext(ctx, "systemctl", "list-units", "--type=service", "--all", "--no-pager")
		}
		return exec.CommandContext(ctx, "service", "--status-all")
	}
}

func (s *Services) Definitions() []Definition {
	return []Definition{
		define("list_services", "List system services and their states, optionally filtered by name", listServicesSchema, s.ListServices),
	}
}
