package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

const executeCommandSchema = `
{
  "type": "object",
  "properties": {
    "command": { "type": "string", "description": "The shell command to execute" },
    "elevated": { "type": "boolean", "description": "Run with elevated privileges (sudo). Use only when strictly required." }
  },
  "required": ["command"]
}
`

type Shell struct {
	WorkDir string
}

func NewShell(workDir string) *Shell {
	return &Shell{WorkDir: workDir}
}

// ExecuteCommand runs a shell command under the caller's context. The
// dispatcher owns the wall-clock budget: when its deadline fires,
// exec.CommandContext kills the process group.
func (s *Shell) ExecuteCommand(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Command  string `json:"command"`
		Elevated bool   `json:"elevated"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	command := input.Command
	if input.Elevated && runtime.GOOS != "windows" {
		command = "sudo -n " + command
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := truncateOutput(stdout.String())
	errOutput := truncateOutput(stderr.String())

	if err != nil {
		if ctx.Err() != nil {
			// Surface the cancellation so the dispatcher records a
			// timeout status instead of a plain failure.
			return "", ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Sprintf("Exit code: %d\nSTDOUT:\n%s\nSTDERR:\n%s", exitErr.ExitCode(), output, errOutput), nil
		}
		return "", fmt.Errorf("command failed to start: %w", err)
	}

	return fmt.Sprintf("STDOUT:\n%s\nSTDERR:\n%s", output, errOutput), nil
}

func (s *Shell) Definitions() []Definition {
	return []Definition{
		define("execute_command", "Execute a shell command and capture its output", executeCommandSchema, s.ExecuteCommand),
	}
}
