// Package main is the entry point for the Meridian database migration tool.
// This tool manages SQLite and PostgreSQL schema migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/prn-tf/meridian/internal/config"
	"github.com/prn-tf/meridian/internal/logging"
	"github.com/prn-tf/meridian/internal/repository/migration"
	"github.com/prn-tf/meridian/internal/repository/postgres"
	"github.com/prn-tf/meridian/internal/repository/sqlite"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// migrator is the schema surface shared by the sqlite and postgres stores.
type migrator interface {
	Migrate(ctx context.Context) (int, error)
	MigrationStatus(ctx context.Context) ([]migration.Status, error)
	Version(ctx context.Context) (int, error)
	Close() error
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "version":
		fmt.Printf("Meridian Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "up", "status":
		if err := run(command, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	fs := pflag.NewFlagSet(command, pflag.ContinueOnError)
	configPath := fs.StringP("config", "c", os.Getenv("MERIDIAN_CONFIG"), "path to the configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.Logging.Output = "stderr"
	cfg.Logging.Format = "console"
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	switch command {
	case "up":
		applied, err := db.Migrate(ctx)
		if err != nil {
			return err
		}
		version, err := db.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Applied %d migration(s); schema is at version %d\n", applied, version)

	case "status":
		statuses, err := db.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
		for _, s := range statuses {
			applied := "pending"
			if s.Applied {
				applied = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, s.Name, applied)
		}
		_ = tw.Flush()
	}
	return nil
}

func open(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (migrator, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := sqlite.NewDB(ctx, sqlite.ConfigFrom(cfg), logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverPostgres:
		db, err := postgres.NewDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("database.driver %q has no schema to migrate", cfg.Driver)
	}
}

func printUsage() {
	fmt.Println(`Meridian Migration Tool

Usage:
  meridian-migrate <command> [flags]

Commands:
  up          Run all pending migrations
  status      Show current migration status
  version     Print version information
  help        Show this help message

Flags:
  -c, --config    Path to the configuration file (default $MERIDIAN_CONFIG)

Environment Variables:
  MERIDIAN_DATABASE_DRIVER    sqlite or postgres
  MERIDIAN_DATABASE_PATH      SQLite database file
  MERIDIAN_DATABASE_HOST      PostgreSQL host (with _PORT, _USER, _PASSWORD, _DATABASE)

Examples:
  meridian-migrate up
  MERIDIAN_DATABASE_DRIVER=postgres meridian-migrate status`)
}
