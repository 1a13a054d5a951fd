package main

// Run database migrations:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/storage/db"
	"esign-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	defer telemetry.Sync()
	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		telemetry.Error("migrate.config", map[string]any{"error": "DATABASE_URL is required"})
		os.Exit(1)
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.ProfileMigrate)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	names, _ := db.MigrationNames()
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err})
		sqlDB.Close()
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"migrations": len(names)})
}
