package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sandevgo/opsbot/internal/transport/cli"
	"github.com/sandevgo/opsbot/pkg/log"
	"github.com/sandevgo/opsbot/pkg/srv"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  `Wires the provider, tools and MCP servers, restores the local session history and opens a REPL.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// logger setup
		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting opsbot")

		a := buildApp(ctx)

		// Leaving the REPL (exit, EOF, Ctrl-C) cancels the context, which
		// releases the shutdown wait below.
		repl, err := cli.NewReadLine(a.engine, a.conv, a.cfg, stop)
		if err != nil {
			return err
		}
		services := append(a.services, repl)

		// Start services
		srv.StartServices(ctx, services)

		// Wait for shutdown signal or REPL exit
		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("opsbot has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
