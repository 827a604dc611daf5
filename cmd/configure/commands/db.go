package commands

import (
	"fmt"

	"github.com/benvon/report-templates/internal/config"
	"github.com/benvon/report-templates/internal/database"
)

// openDB loads the environment configuration and connects to the database.
func openDB() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
