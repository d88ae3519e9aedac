package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/medflow/stockledger/migrations"
	"github.com/medflow/stockledger/pkg/config"
	"github.com/medflow/stockledger/pkg/database"
	"github.com/medflow/stockledger/pkg/logger"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-migrate", cfg.Server.Environment)

	m, err := database.NewMigrator(migrations.FS, cfg.Database.MigrationURL(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	defer m.Close()

	switch command {
	case "up":
		err = m.Up()

	case "down":
		err = m.Down()

	case "steps":
		if len(args) < 2 {
			log.Fatal().Msg("step count required. Usage: migrate steps <n>")
		}
		n, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatal().Str("value", args[1]).Msg("invalid step count")
		}
		err = m.Steps(n)

	case "version":
		version, dirty, ok, vErr := m.Version()
		if vErr != nil {
			log.Fatal().Err(vErr).Msg("failed to get version")
		}
		if !ok {
			log.Info().Msg("no migrations applied")
			return
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current migration version")
		return

	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("migration failed")
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate <command> [args]

Commands:
  up          apply all pending migrations
  down        roll back all migrations
  steps <n>   apply n migrations (negative n rolls back)
  version     print the current schema version

The database is configured like the service (MEDFLOW_DATABASE_URL or
MEDFLOW_DATABASE_HOST and friends).`)
}
