package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/max-programming/expenso/migrations"
	"github.com/max-programming/expenso/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply the embedded schema migrations to the configured SQLite database.
Migrations already recorded in schema_migrations are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := database.New(database.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			BusyTimeout:     cfg.Database.BusyTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect database: %w", err)
		}
		defer db.Close()

		migrator := database.NewMigrator(db, logger)

		if status, _ := cmd.Flags().GetBool("status"); status {
			return printMigrationStatus(cmd, migrator)
		}

		applied, err := migrator.RunMigrations(migrations.FS)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		logger.Info("Database migrations completed", zap.Int("applied", applied), zap.String("path", cfg.Database.Path))
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
		return nil
	},
}

func printMigrationStatus(cmd *cobra.Command, migrator *database.Migrator) error {
	all, err := database.LoadMigrations(migrations.FS)
	if err != nil {
		return err
	}
	applied, err := migrator.AppliedVersions()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, m := range all {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Fprintf(out, "%03d %-30s %s\n", m.Version, m.Name, state)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "List migrations and whether each has been applied")
}
