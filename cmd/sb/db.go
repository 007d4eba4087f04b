package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the Signalbox tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Storage)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer db.Close(gormDB)

	target := cfg.Storage.Path
	if cfg.Storage.Driver == "mysql" {
		target = fmt.Sprintf("%s@%s:%d/%s", cfg.Storage.User, cfg.Storage.Host, cfg.Storage.Port, cfg.Storage.Database)
	}
	fmt.Fprintf(out, "Migrated %d tables (%s: %s)\n", len(db.AllModels()), cfg.Storage.Driver, target)
	return nil
}
