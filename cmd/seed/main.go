package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"letterarchive/internal/config"
	"letterarchive/internal/repository/postgres"
	"letterarchive/internal/seed"
	"letterarchive/internal/service/archive"
)

func main() {
	// Parse command-line flags
	dropTables := flag.Bool("drop-tables", false, "Migrate all tables down before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only run migrations, don't seed letters")
	fixtureFile := flag.String("file", "", "YAML fixture file of letters to seed")
	sample := flag.Bool("sample", false, "Seed the built-in sample letters")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	cfg := config.Load()

	// SAFETY: Prevent destructive operations in production
	if cfg.Environment == "prod" && *dropTables {
		log.Fatalf("BLOCKED: Cannot run destructive operations (--drop-tables) in production environment")
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL is required")
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	logger.Info("seeding database", "environment", cfg.Environment, "prefix", cfg.TablePrefix)

	if *dropTables {
		logger.Warn("dropping all tables")
		if err := postgres.MigrateDown(cfg.DatabaseURL, cfg.TablePrefix, logger); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := postgres.Migrate(cfg.DatabaseURL, cfg.TablePrefix, logger); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("schema ready")

	if *schemaOnly {
		return
	}

	var fx *seed.Fixtures
	switch {
	case *fixtureFile != "":
		f, err := os.Open(*fixtureFile)
		if err != nil {
			log.Fatalf("Failed to open fixture file: %v", err)
		}
		fx, err = seed.LoadFixtures(f)
		f.Close()
		if err != nil {
			log.Fatalf("Failed to load fixtures: %v", err)
		}
	case *sample:
		fx, err = seed.SampleFixtures()
		if err != nil {
			log.Fatalf("Failed to load sample fixtures: %v", err)
		}
	default:
		logger.Info("no fixtures requested; pass -file or -sample to seed letters")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

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
	letterRepo := postgres.NewLetterRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)
	analyzer := archive.NewContentAnalyzer()

	// No object store or cache: seeding never touches PDFs
	letterService := archive.NewLetterService(letterRepo, txManager, nil, analyzer, nil, cfg.DownloadURLTTL, logger)

	seeder := seed.NewLetterSeeder(letterRepo, letterService, analyzer, logger)
	res, err := seeder.Seed(ctx, fx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	logger.Info("seeding complete",
		"created", res.Created,
		"skipped", res.Skipped,
		"revisions", res.Revisions,
	)
}
