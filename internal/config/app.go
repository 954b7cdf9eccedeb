package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/opsbot/pkg/log"
)

// AppConfig is the read-only configuration context handed to the engine,
// the provider factory and the dispatcher. Loaded once from the
// environment at startup.
type AppConfig struct {
	RuntimePath string `env:"OPSBOT_RUNTIME_PATH" envDefault:".opsbot"`

	// Provider selection
	Provider string `env:"LLM_PROVIDER" envDefault:"openai"`
	Model    string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	LMStudioBaseURL string `env:"LMSTUDIO_BASE_URL" envDefault:"http://localhost:1234"`
	OllamaBaseURL   string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaAPIKey    string `env:"OLLAMA_API_KEY"`
	CustomBaseURL   string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomAPIKey    string `env:"CUSTOM_OPENAI_API_KEY"`

	// Engine limits
	MaxToolTurns       int           `env:"MAX_TOOL_TURNS" envDefault:"8"`
	ToolTimeout        time.Duration `env:"TOOL_TIMEOUT" envDefault:"2m"`
	ContextTokenBudget int           `env:"CONTEXT_TOKEN_BUDGET" envDefault:"8000"`
	HistoryWindowSize  int           `env:"HISTORY_WINDOW_SIZE" envDefault:"50"`
	ProviderMaxRetries int           `env:"PROVIDER_MAX_RETRIES" envDefault:"3"`

	// Dispatcher policy: comma-separated substrings that deny a
	// command-execution call when present in its arguments.
	DeniedCommandPatterns []string `env:"DENIED_COMMAND_PATTERNS" envSeparator:"," envDefault:"rm -rf /,mkfs,:(){ :|:& };:"`

	// Working directory tools operate in. Empty means the process cwd.
	WorkDir string `env:"OPSBOT_WORKDIR"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	// Anchor a relative runtime dir under the user's home, same rule as
	// GetRuntimePath.
	c.RuntimePath = GetRuntimePath()
	return c
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "opsbot.db")
}

func (c AppConfig) GetMCPConfigPath() string {
	return filepath.Join(c.RuntimePath, "mcp_config.json")
}

func (c AppConfig) GetSystemPromptPath() string {
	return filepath.Join(c.RuntimePath, "SYSTEM.md")
}

func (c AppConfig) GetInputHistoryPath() string {
	return filepath.Join(c.RuntimePath, "input_history")
}
