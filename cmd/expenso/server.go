package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/max-programming/expenso/internal/container"
	httpserver "github.com/max-programming/expenso/internal/interfaces/http"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Expenso API server.
Pending migrations are applied first unless database.auto_migrate is off.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if cmd.Flags().Changed("host") {
			cfg.Server.Host, _ = cmd.Flags().GetString("host")
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetInt("port")
		}

		logger.Info("Starting Expenso",
			zap.String("version", httpserver.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("lark_enabled", cfg.Lark.Enabled))

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ctr, err := container.NewContainer(cfg.ToContainerConfig(), logger)
		if err != nil {
			return fmt.Errorf("failed to create container: %w", err)
		}
		if err := ctr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start container: %w", err)
		}
		defer func() {
			if err := ctr.Close(); err != nil {
				logger.Error("Container shutdown failed", zap.Error(err))
			}
		}()

		if err := ctr.Server().Start(ctx); err != nil {
			return fmt.Errorf("http server: %w", err)
		}

		logger.Info("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "0.0.0.0", "Server host (overrides config)")
	serverCmd.Flags().Int("port", 8080, "Server port (overrides config)")
}
