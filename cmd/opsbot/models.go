package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/opsbot/internal/config"
	"github.com/sandevgo/opsbot/internal/core"
	"github.com/sandevgo/opsbot/internal/providers/llm"
	"github.com/sandevgo/opsbot/internal/service/ui"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models offered by the configured provider",
	Long:  `Queries the configured provider for its available models. Only providers with a listing API (currently ollama) support this.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}
		cfg := config.NewAppConfig(ctx)

		provider, err := llm.NewProvider(ctx, cfg)
		if err != nil {
			return err
		}

		lister, ok := provider.(interface {
			Models(ctx context.Context) ([]core.Model, error)
		})
		if !ok {
			return fmt.Errorf("provider %s does not support model listing", cfg.Provider)
		}

		models, err := lister.Models(ctx)
		if err != nil {
			return err
		}

		fmt.Println(ui.TitleStyle.Render(fmt.Sprintf("MODELS (%d)", len(models))))
		for _, m := range models {
			marker := "  "
			if m.ID == cfg.Model {
				marker = ui.UsageStyle.Render("* ")
			}
			fmt.Printf("%s%s %s\n",
				marker,
				ui.UsageStyle.Render(m.ID),
				ui.DescStyle.Render(fmt.Sprintf("(context: %d)", m.ContextLength)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
