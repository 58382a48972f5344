package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"chatrelay/internal/config"
	"chatrelay/internal/repository/postgres"

	"github.com/joho/godotenv"
)

func main() {
	drop := flag.Bool("drop", false, "Drop the history tables before creating them (fresh start)")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	// Destructive operations are blocked in production
	if cfg.Environment == "prod" && *drop {
		log.Fatalf("Refusing to drop tables in the prod environment")
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}

	logger.Info("migrating", "environment", cfg.Environment, "prefix", cfg.TablePrefix, "drop", *drop)

	txManager := postgres.NewTransactionManager(pool, logger)
	err = txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return postgres.ApplySchema(txCtx, repoConfig, *drop)
	})
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	logger.Info("migration complete")
}
