package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

const runScriptSchema = `
{
  "type": "object",
  "properties": {
    "language": { "type": "string", "enum": ["python", "node", "bash"], "description": "Interpreter to run the script with" },
    "code": { "type": "string", "description": "The script body to execute" }
  },
  "required": ["language", "code"]
}
`

// interpreters maps a language to the interpreter binary and the script
// file extension for the temp file.
var interpreters = map[string]struct {
	binary string
	ext    string
}{
	"python": {"python3", ".py"},
	"node":   {"node", ".js"},
	"bash":   {"bash", ".sh"},
}

type Interpreter struct {
	WorkDir string
}

func NewInterpreter(workDir string) *Interpreter {
	return &Interpreter{WorkDir: workDir}
}

// RunScript writes the script body to a temp file and executes it with
// the selected interpreter. The file is removed when the run finishes.
func (i *Interpreter) RunScript(ctx context.Context, args json.RawMessage) (string, error) {
	var input struct {
		Language string `json:"language"`
		Code     string `json:"code"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	interp, ok := interpreters[input.Language]
	if !ok {
		return "", fmt.Errorf("unsupported language: %s", input.Language)
	}

	tmp, err := os.CreateTemp("", "opsbot-script-*"+interp.ext)
	if err != nil {
		return "", fmt.Errorf("failed to create script file: %w", err)
	}
	scriptPath := tmp.Name()
	defer os.Remove(scriptPath)

	if _, err := tmp.WriteString(input.Code); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write script: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close script file: %w", err)
	}

	cmd := exec.CommandContext(ctx, interp.binary, scriptPath)
	if i.WorkDir != "" {
		cmd.Dir = i.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	output := truncateOutput(stdout.String())
	errOutput := truncateOutput(stderr.String())

	if runErr != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return fmt.Sprintf("Exit code: %d\nSTDOUT:\n%s\nSTDERR:\n%s", exitErr.ExitCode(), output, errOutput), nil
		}
		return "", fmt.Errorf("%s not available: %w", interp.binary, runErr)
	}

	return fmt.Sprintf("STDOUT:\n%s\nSTDERR:\n%s", output, errOutput), nil
}

func (i *Interpreter) Definitions() []Definition {
	return []Definition{
		define("run_script", "Execute a short script with python, node or bash", runScriptSchema, i.RunScript),
	}
}
