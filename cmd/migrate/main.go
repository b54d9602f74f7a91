// Package main applies or rolls back schema migrations with version
// tracking, driving the same embedded files the server applies at boot.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"github.com/walla-walla-travel/tourops/internal/config"
	"github.com/walla-walla-travel/tourops/internal/platform/migrations"
)

func main() {
	envFile := flag.String("env-file", ".env", "env file loaded before configuration, ignored when missing")
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}
	if cfg.Database.DSN == "" {
		log.Fatal("DATABASE_URL is required")
	}

	src, err := iofs.New(migrations.Files(), ".")
	if err != nil {
		log.Fatalf("read embedded migrations: %v", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer m.Close()

	if *down > 0 {
		err = m.Steps(-*down)
	} else {
		err = m.Up()
	}
	switch {
	case err == nil:
		fmt.Println("migrations applied")
	case errors.Is(err, migrate.ErrNoChange):
		fmt.Println("schema already up to date")
	default:
		log.Fatalf("migrate: %v", err)
	}

	if version, dirty, err := m.Version(); err == nil {
		fmt.Printf("schema version %d dirty=%v\n", version, dirty)
	}
}
