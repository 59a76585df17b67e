package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/timeclock/internal/config"
	"github.com/example/timeclock/internal/logging"
	"github.com/example/timeclock/internal/persistence/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "timeclock",
	Short: "Time tracking service with automatic break insertion",
	Long: `timeclock serves the company time tracking API and houses the
maintenance commands that operate on the same database.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "timeclock.toml", "path to the TOML configuration file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(autoBreaksCmd)
}

func newLogger() *slog.Logger {
	return logging.New(os.Stdout, slog.LevelInfo)
}

// openStorage loads configuration and opens the migrated database. The
// caller owns the returned pool.
func openStorage(cmd *cobra.Command) (config.Config, *sqlite.ConnectionPool, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load configuration: %w", err)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("open storage: %w", err)
	}
	if err := pool.Migrate(cmd.Context()); err != nil {
		pool.Close()
		return config.Config{}, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return cfg, pool, nil
}

func newIDGenerator() func() string {
	return uuid.NewString
}

func newTokenGenerator() func() string {
	// Two UUIDs concatenated give 256 bits of token material.
	return func() string {
		return uuid.NewString() + uuid.NewString()
	}
}
