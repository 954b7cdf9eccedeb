package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/opsbot/internal/config"
	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/internal/dispatch"
	"github.com/sandevgo/opsbot/internal/policy"
	"github.com/sandevgo/opsbot/internal/providers/llm"
	"github.com/sandevgo/opsbot/internal/providers/mcp"
	"github.com/sandevgo/opsbot/internal/providers/tools"
	"github.com/sandevgo/opsbot/internal/registry"
	"github.com/sandevgo/opsbot/internal/service/engine"
	"github.com/sandevgo/opsbot/internal/storage/sqlite"
	"github.com/sandevgo/opsbot/internal/transport/cli"
	"github.com/sandevgo/opsbot/pkg/log"
	"github.com/sandevgo/opsbot/pkg/srv"
)

// app holds the fully wired agent plus the services whose shutdown is
// driven through srv.ShutdownServices.
type app struct {
	cfg      *config.AppConfig
	engine   *engine.Engine
	conv     *engine.Conversation
	services []srv.Service
}

func buildApp(ctx context.Context) *app {
	logger := log.FromCtx(ctx)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	cfg := config.NewAppConfig(ctx)

	a := &app{cfg: cfg}

	// 2. Storage
	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	a.services = append(a.services, srv.NewCleanup(db.Close))

	messagesRepo := sqlite.NewMessagesRepo(db)
	auditRepo := sqlite.NewAuditRepo(db)

	// 3. AI Provider
	provider, err := llm.NewProvider(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	// 4. Tool Registry: built-ins first, then MCP-discovered tools.
	reg := registry.New()
	if err := tools.RegisterBuiltins(reg, cfg.WorkDir); err != nil {
		logger.Fatal().Err(err).Msg("failed to register builtin tools")
	}

	// The bridge connects synchronously here so discovery finishes before
	// the first turn; only its teardown joins the service list.
	bridge := mcp.NewBridge(cfg.GetMCPConfigPath())
	if err := bridge.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start mcp bridge")
	}
	a.services = append(a.services, srv.NewCleanup(func() error {
		return bridge.Shutdown(context.Background())
	}))
	if err := bridge.RegisterInto(ctx, reg); err != nil {
		logger.Fatal().Err(err).Msg("failed to register mcp tools")
	}

	// 5. Dispatcher
	denyList := policy.NewCommandDenyList(cfg.DeniedCommandPatterns)
	dispatcher := dispatch.NewDispatcher(reg, denyList, cfg.ToolTimeout)

	// 6. Engine + conversation restored from history
	a.engine = engine.NewEngine(
		provider,
		dispatcher,
		reg,
		auditRepo,
		messagesRepo,
		cfg.MaxToolTurns,
		cfg.ProviderMaxRetries,
	)
	a.conv = engine.NewConversation(systemMessages(cfg), cfg.ContextTokenBudget)

	history, err := messagesRepo.GetMessages(ctx, cli.DefaultSessionID, cfg.HistoryWindowSize)
	if err != nil {
		logger.Error().Err(err).Msg("failed to restore history, starting fresh")
	}
	for _, msg := range history {
		a.conv.Append(msg)
	}

	return a
}

func systemMessages(cfg *config.AppConfig) []core.Message {
	content, err := os.ReadFile(cfg.GetSystemPromptPath())
	if err != nil || len(content) == 0 {
		return nil
	}
	return []core.Message{{Role: core.RoleSystem, Content: string(content)}}
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
