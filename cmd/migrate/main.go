package main

import (
	"log/slog"
	"os"

	"waypost/internal/db"
	"waypost/internal/platform/config"
	"waypost/internal/platform/logger"
)

// main applies the embedded schema migrations and exits.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required for migrations")
		os.Exit(1)
	}
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Error("migrate", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("migrations applied")
}
