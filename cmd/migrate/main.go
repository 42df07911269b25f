// Command migrate manages the schema of the triage tree store.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/cfortin/triage/internal/logger"
)

func main() {
	var databaseURL string
	var migrationsPath string
	var command string

	flag.StringVar(&databaseURL, "database", "", "postgres URL for the tree store (falls back to DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", "migrations", "directory holding the tree store migrations")
	flag.StringVar(&command, "command", "up", "up, down, version, or force <n>")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		logger.Fatal("no database URL: pass -database or set DATABASE_URL")
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), databaseURL)
	if err != nil {
		logger.Fatal("failed to open migration source", "path", migrationsPath, "error", err)
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				logger.Info("tree store schema already up to date")
				return
			}
			logger.Fatal("migration up failed", "error", err)
		}
		logger.Info("tree store schema migrated")

	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("migration down failed", "error", err)
		}
		logger.Info("tree store schema rolled back")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			logger.Fatal("failed to read schema version", "error", err)
		}
		logger.Info("schema version", "version", version, "dirty", dirty)

	case "force":
		if flag.NArg() < 1 {
			logger.Fatal("force needs a version: -command force <n>")
		}
		version, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			logger.Fatal("invalid version number", "arg", flag.Arg(0), "error", err)
		}
		if err := m.Force(version); err != nil {
			logger.Fatal("failed to force schema version", "error", err)
		}
		logger.Info("schema version forced", "version", version)

	default:
		logger.Fatal("unknown command", "command", command)
	}
}
