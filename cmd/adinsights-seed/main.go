package main

import (
	"context"
	"flag"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/database"
	"github.com/radiusdt/adinsights/internal/middleware"
	"github.com/radiusdt/adinsights/internal/seed"
)

func main() {
	reset := flag.Bool("reset", false, "truncate the fact table before loading")
	seedValue := flag.Int64("seed", 0, "random seed for fact rows (0 uses the current time)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	cfg.Database.AppName += "-seed"

	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
	}
	defer db.Close()

	if err := seed.Provision(ctx, db.Pool); err != nil {
		logger.Fatal("failed to provision schema", zap.Error(err))
	}
	logger.Info("schema provisioned")

	start, err := time.Parse("2006-01-02", cfg.Seed.StartDate)
	if err != nil {
		logger.Fatal("invalid seed start date", zap.Error(err))
	}
	if err := seed.LoadDimensions(ctx, db.Pool, start, cfg.Seed.Days); err != nil {
		logger.Fatal("failed to load dimensions", zap.Error(err))
	}
	logger.Info("dimension tables populated",
		zap.String("start_date", cfg.Seed.StartDate),
		zap.Int("days", cfg.Seed.Days),
	)

	if *reset {
		if err := seed.Truncate(ctx, db.Pool); err != nil {
			logger.Fatal("failed to reset facts", zap.Error(err))
		}
		logger.Info("fact table truncated")
	}

	s := *seedValue
	if s == 0 {
		s = time.Now().UnixNano()
	}
	copied, err := seed.LoadFacts(ctx, db.Pool, cfg.Seed.FactRows, cfg.Seed.Days, rand.New(rand.NewSource(s)))
	if err != nil {
		logger.Fatal("failed to load facts", zap.Error(err))
	}
	logger.Info("fact table populated", zap.Int64("rows", copied), zap.Int64("seed", s))
}
