package main

import (
	"github.com/oggyb/muzz-matchmaking/internal/config"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	"github.com/oggyb/muzz-matchmaking/internal/logger"
)

func main() {
	// Load configuration
	cfg := config.New()
	logger.InitFromConfig(cfg)

	database, err := db.NewDB(cfg)
	if err != nil {
		logger.Error("failed to init db", "err", err)
		return
	}

	if err := db.SeedTestData(database); err != nil {
		logger.Error("failed to seed", "err", err)
		return
	}

	logger.Info("seeding completed")
}
