package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"
	"strings"

	"cleanbuddy-dispatch/res/logging"
	"cleanbuddy-dispatch/res/store/postgresql/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// Usage: migrate [up | down | force <version>]
func main() {
	_ = godotenv.Load()

	logger, flush := logging.New(os.Getenv("ENVIRONMENT") == "production", "migrate")
	defer flush()

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_POSTGRES_URL"))
	if databaseURL == "" {
		logger.Fatal("DATABASE_POSTGRES_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Fatalf("ping db: %v", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Fatalf("db driver: %v", err)
	}

	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Fatalf("source driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logger.Fatalf("create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	command := "up"
	if len(os.Args) >= 2 {
		command = os.Args[1]
	}

	switch command {
	case "force":
		if len(os.Args) < 3 {
			logger.Fatal("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			logger.Fatalf("invalid version: %v", err)
		}
		if err := m.Force(version); err != nil {
			logger.Fatalf("force version: %v", err)
		}
		logger.Printf("forced version to %d", version)
	case "down":
		if err := m.Steps(-1); err != nil {
			logger.Fatalf("migrate down: %v", err)
		}
		logger.Printf("rolled back one migration")
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatalf("migrate up: %v", err)
		}
		logger.Printf("migrations complete")
	default:
		logger.Fatalf("unknown command %q", command)
	}
}
