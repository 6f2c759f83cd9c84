// Command migrate creates or updates the schema for the backend.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"feedline/internal/config"
	"feedline/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dsn := flag.String("dsn", "", `override the configured database, e.g. "sqlite:./dry-run.db"`)
	flag.Parse()

	db, err := open(*dsn)
	if err != nil {
		return err
	}

	if err := database.Migrate(db); err != nil {
		return err
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	log.Printf("schema up to date: %s", strings.Join(tables, ", "))
	return nil
}

func open(dsn string) (*gorm.DB, error) {
	if path, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		if path == "" {
			return nil, errors.New("sqlite dsn needs a path")
		}
		return gorm.Open(sqlite.Open(path), &gorm.Config{})
	}
	if dsn != "" {
		return nil, fmt.Errorf("unsupported dsn %q: only sqlite: overrides are accepted", dsn)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Migration is explicit here, not part of connecting.
	cfg.DBAutoMigrate = false
	return database.Connect(cfg)
}
