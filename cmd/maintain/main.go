package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/cache"
	"github.com/anime-guess/internal/config"
	"github.com/anime-guess/internal/kafka"
	"github.com/anime-guess/internal/logging"
	"github.com/anime-guess/internal/maintenance"
	"github.com/anime-guess/internal/storage"
)

func main() {
	job := flag.String("job", maintenance.JobAll, "job to run: migrate, orphans, sync, dedup or all")
	envFile := flag.String("env", ".env", "optional environment file")
	flag.Parse()

	cfg := config.Load(*envFile)
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database not available")
	}
	defer store.Close()

	report, err := maintenance.Run(ctx, store, *job)
	if err != nil {
		log.Error().Err(err).Str("job", *job).Msg("Maintenance failed")
		store.Close()
		os.Exit(1)
	}

	logger := log.Info().Str("job", *job).Int("changed", report.Changed()).Dur("took", report.Duration)
	if report.Dates != nil {
		logger = logger.Int("migrated", report.Dates.Migrated).Int("fieldsFixed", report.Dates.FieldsFixed)
	}
	if report.Orphans != nil {
		logger = logger.Int("orphansRemoved", report.Orphans.Removed)
	}
	if report.Sync != nil {
		logger = logger.Int("synced", report.Sync.Synced)
	}
	if report.Dedup != nil {
		logger = logger.Int("duplicatesRemoved", report.Dedup.Removed).Int("players", report.Dedup.Players)
	}
	logger.Msg("Maintenance finished")

	// keep the rank cache in line with the cleaned table
	rankCache, err := cache.NewRankCache(&cfg.Redis)
	if err == nil {
		defer rankCache.Close()
		entries, err := store.ListEntries(ctx)
		if err == nil {
			err = rankCache.Rebuild(ctx, entries)
		}
		if err != nil {
			log.Warn().Err(err).Msg("Rank cache not rebuilt")
		}
	}

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()
	producer.EmitMaintenance(*job, report.Changed())
}
