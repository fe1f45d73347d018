// migrate applies the embedded schema: go run ./cmd/migrate -direction up
package main

import (
	"flag"
	"os"

	"crm-backend/internal/config"
	"crm-backend/internal/db/migrate"
	"crm-backend/internal/observability"

	"go.uber.org/zap"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	logger := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	defer func() { _ = logger.Sync() }()

	if err := migrate.Run(config.DatabaseURL(), *direction); err != nil {
		logger.Fatal("migration failed", zap.String("direction", *direction), zap.Error(err))
	}
	logger.Info("migration complete", zap.String("direction", *direction))
}
