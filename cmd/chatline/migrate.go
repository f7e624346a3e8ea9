package main

import (
	"fmt"
	"os"

	"github.com/chatlinehq/chatline/internal/config"
	"github.com/chatlinehq/chatline/internal/db"
)

func runMigrate() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := db.Migrate(cfg.Postgres.URL()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Println("migrations applied")
	return nil
}
