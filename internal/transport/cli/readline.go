package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/sandevgo/opsbot/internal/config"
	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/internal/service/engine"
	"github.com/sandevgo/opsbot/internal/service/ui"
	"github.com/sandevgo/opsbot/pkg/log"
)

// DefaultSessionID keys the local terminal session in the message history.
const DefaultSessionID = "cli-local"

type ReadLine struct {
	cfg    *config.AppConfig
	engine *engine.Engine
	conv   *engine.Conversation
	rl     *readline.Instance

	// quit ends the service lifetime when the user leaves the REPL, so
	// the surrounding srv.ShutdownServices wait is released.
	quit func()
}

func NewReadLine(eng *engine.Engine, conv *engine.Conversation, cfg *config.AppConfig, quit func()) (*ReadLine, error) {
	// Ensure runtime directory exists
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ui.PromptStyle.Render(">>> "),
		HistoryFile:     cfg.GetInputHistoryPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:    cfg,
		engine: eng,
		conv:   conv,
		rl:     rl,
		quit:   quit,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Msg("chat started, type 'exit' to quit")

	defer func() {
		if r.quit != nil {
			r.quit()
		}
	}()

	for {
		// Check context before blocking read
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil // Exit on Ctrl+C
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if r.handleLocal(line) {
			continue
		}
		if line == "exit" {
			return nil
		}

		_, err = r.engine.Run(ctx, r.conv, DefaultSessionID, line, r.render)

		if err != nil {
			logger.Error().Err(err).Msg("turn failed")
			fmt.Fprintf(r.rl.Stdout(), "%s\n", ui.ErrorStyle.Render(fmt.Sprintf("Error: %v", err)))
		}
	}
}

// handleLocal intercepts commands that never reach the model.
func (r *ReadLine) handleLocal(line string) bool {
	switch line {
	case "help":
		out := r.rl.Stdout()
		fmt.Fprintln(out, ui.TitleStyle.Render("Commands"))
		fmt.Fprintln(out, ui.UsageStyle.Render("  help ")+ui.DescStyle.Render("show this message"))
		fmt.Fprintln(out, ui.UsageStyle.Render("  clear")+ui.DescStyle.Render(" clear the screen"))
		fmt.Fprintln(out, ui.UsageStyle.Render("  exit ")+ui.DescStyle.Render(" quit"))
		return true
	case "clear":
		fmt.Fprint(r.rl.Stdout(), "\033[2J\033[H")
		return true
	}
	return false
}

func (r *ReadLine) render(msg core.Message) {
	out := r.rl.Stdout()

	if msg.Reasoning != "" {
		fmt.Fprintf(out, "%s\n", ui.ReasoningStyle.Render("[Thinking]\n"+msg.Reasoning))
	}

	if msg.Content != "" {
		fmt.Fprintf(out, "%s\n", msg.Content)
	}

	if len(msg.ToolCalls) > 0 {
		fmt.Fprintf(out, "%s\n", ui.ToolCallStyle.Render(fmt.Sprintf("[System] Processing %d tool call(s)...", len(msg.ToolCalls))))
		for _, tc := range msg.ToolCalls {
			fmt.Fprintf(out, "%s\n", ui.ToolCallStyle.Render(fmt.Sprintf("  > Calling %s %s...", tc.Function.Name, tc.Function.Arguments)))
		}
	}
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
