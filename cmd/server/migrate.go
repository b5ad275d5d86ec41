package main

import (
	"database/sql"
	stdlog "log"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/tutorlink/chat-server/internal/config"
	"github.com/tutorlink/chat-server/internal/log"
	"github.com/tutorlink/chat-server/internal/store/sqlite/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|version]",
	Short: "Run database migrations",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.New("info")

		cfg, _, err := config.Load(logger, configPath)
		if err != nil {
			stdlog.Fatalf("could not load config: %v", err)
		}

		goose.SetBaseFS(migrations.FS)

		if err := goose.SetDialect("sqlite3"); err != nil {
			stdlog.Fatalf("goose: failed to set dialect: %v", err)
		}

		db, err := sql.Open("sqlite3", cfg.DatabasePath)
		if err != nil {
			stdlog.Fatalf("goose: failed to open DB: %v", err)
		}

		defer func() {
			if err := db.Close(); err != nil {
				stdlog.Fatalf("goose: failed to close DB: %v", err)
			}
		}()

		if err := goose.RunContext(cmd.Context(), args[0], db, ".", args[1:]...); err != nil {
			stdlog.Fatalf("goose: %s failed: %v", args[0], err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
