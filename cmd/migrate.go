package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/Unmesh-12634/HackMate-sub001/internal/application/config"
	"github.com/Unmesh-12634/HackMate-sub001/internal/application/constant"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/adapters/postgres/migrations"
)

var errArchiveDisabled = errors.New("POSTGRES_URL or POSTGRES_HOST must be set")

var migrateCmd = &cobra.Command{
	Use:   "migrate <command> [args]",
	Short: "Run message archive migrations (goose commands: up, down, status, ...)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		return runMigrate(cmd.Context(), cfg, args[0], args[1:]...)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(ctx context.Context, cfg *config.Config, command string, args ...string) error {
	if !cfg.Postgres.Enabled() {
		return errArchiveDisabled
	}

	goose.SetBaseFS(migrations.MigrationsFS)

	db, err := goose.OpenDBWithDriver("pgx", cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("goose: open db: %w", err)
	}

	defer func() {
		if cerr := db.Close(); cerr != nil {
			slog.Error("goose: close db", slog.Any(constant.Error, cerr))
		}
	}()

	if err = goose.RunContext(ctx, command, db, ".", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}

	return nil
}
