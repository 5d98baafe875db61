package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/database/migrations"
	"ms-ticket-lifecycle/internal/logger"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		dir     string
		version uint
		down    bool
	)
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&dir, "dir", "", "read migrations from this directory instead of the embedded set")
	flagSet.UintVar(&version, "to", 0, "migrate up or down to this schema version")
	flagSet.BoolVar(&down, "down", false, "roll back every migration")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg := config.Load()
	log := logger.NewLogger(logger.Options{Level: logger.ParseLevel(cfg.Log.Level)})
	defer log.Close()

	if dir == "" {
		dir = cfg.Database.MigrationsDir
	}

	bunDB, err := database.Connect(context.Background(), cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.Options{Dir: dir}, log)
	// closes bunDB's pool as well
	defer runner.Close()

	switch {
	case down:
		log.Warn("DATABASE", "Rolling back all migrations")
		err = runner.MigrateDown()
	case version > 0:
		log.Info("DATABASE", fmt.Sprintf("Migrating to version %d", version))
		err = runner.MigrateTo(version)
	default:
		err = runner.RunMigrations()
	}
	if err != nil {
		return err
	}

	log.Info("DATABASE", "✅ Migrations complete")
	return nil
}
