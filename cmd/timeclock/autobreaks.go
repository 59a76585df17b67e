package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/timeclock/internal/application"
	"github.com/example/timeclock/internal/persistence/sqlite"
)

var autoBreaksDate string

var autoBreaksCmd = &cobra.Command{
	Use:   "auto-breaks",
	Short: "Run one automatic break insertion batch against the database",
	Long: `auto-breaks runs the break insertion engine directly, without going
through the HTTP API. It is intended for cron jobs colocated with the
database and for manual reruns of a past day.`,
	RunE: runAutoBreaks,
}

func init() {
	autoBreaksCmd.Flags().StringVar(&autoBreaksDate, "date", "", "target day as YYYY-MM-DD, defaults to today")
}

func runAutoBreaks(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, pool, err := openStorage(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	var targetDate time.Time
	if autoBreaksDate != "" {
		targetDate, err = time.Parse("2006-01-02", autoBreaksDate)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
	}

	defaultLocation, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		return fmt.Errorf("load default timezone: %w", err)
	}

	users := newUserDirectoryAdapter(sqlite.NewUserRepository(pool))
	entries := newEntryStoreAdapter(sqlite.NewTimeEntryRepository(pool))
	audit := newAuditSinkAdapter(sqlite.NewAuditLogRepository(pool))
	resolver := application.NewDayWindowResolver(defaultLocation)

	breakService := application.NewBreakService(users, entries, audit, resolver, time.Now, logger)
	report, err := breakService.InsertAutomaticBreaks(cmd.Context(), application.InsertBreaksParams{
		TargetDate: targetDate,
		IPAddress:  "local",
	})
	if err != nil {
		return fmt.Errorf("break insertion batch: %w", err)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
