package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/opsbot/internal/config"
	"github.com/sandevgo/opsbot/internal/providers/mcp"
	"github.com/sandevgo/opsbot/internal/providers/tools"
	"github.com/sandevgo/opsbot/internal/registry"
	"github.com/sandevgo/opsbot/internal/service/ui"
	"github.com/sandevgo/opsbot/pkg/log"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the agent",
	Long:  `Shows built-in tools plus everything discovered from configured MCP servers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}
		cfg := config.NewAppConfig(ctx)

		reg := registry.New()
		if err := tools.RegisterBuiltins(reg, cfg.WorkDir); err != nil {
			return err
		}

		bridge := mcp.NewBridge(cfg.GetMCPConfigPath())
		if err := bridge.Start(ctx); err != nil {
			return err
		}
		defer bridge.Shutdown(ctx)
		if err := bridge.RegisterInto(ctx, reg); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("mcp tool registration incomplete")
		}

		fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("TOOLS (%d)", reg.Len())))
		for _, t := range reg.List() {
			fmt.Printf("  %s  %s\n",
				ui.UsageStyle.Render(t.Function.Name),
				ui.DescStyle.Render(t.Function.Description))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
