package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/anime-guess/internal/api"
	"github.com/anime-guess/internal/auth"
	"github.com/anime-guess/internal/cache"
	"github.com/anime-guess/internal/character"
	"github.com/anime-guess/internal/config"
	"github.com/anime-guess/internal/kafka"
	"github.com/anime-guess/internal/leaderboard"
	"github.com/anime-guess/internal/logging"
	"github.com/anime-guess/internal/sessions"
	"github.com/anime-guess/internal/storage"
	"github.com/anime-guess/internal/websocket"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage, falling back to memory when Postgres is unavailable
	var store storage.Store
	persistent := false
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("Database not available")
		} else {
			store = pg
			persistent = true
		}
	}
	if store == nil {
		log.Warn().Msg("Running in memory-only mode (profiles and scores won't be persisted)")
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	// Initialize Redis rank cache (optional)
	rankCache, err := cache.NewRankCache(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Rank cache not available, ranks are served from storage")
	}
	defer rankCache.Close()
	if rankCache.Enabled() {
		if entries, err := store.ListEntries(ctx); err != nil {
			log.Warn().Err(err).Msg("Could not load entries for the rank cache")
		} else if err := rankCache.Rebuild(ctx, entries); err != nil {
			log.Warn().Err(err).Msg("Rank cache rebuild failed")
		}
	}

	// Initialize Kafka producer
	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	// Initialize Kafka consumer (optional)
	var consumer *kafka.Consumer
	if producer.IsEnabled() {
		consumer, err = kafka.NewConsumer(cfg.KafkaBrokers)
		if err != nil {
			log.Warn().Err(err).Msg("Kafka consumer not available")
		} else {
			consumer.Start()
			defer consumer.Stop()
		}
	}

	anilist := character.NewAniListClient(cfg.AniListURL, cfg.AniListMaxPage)
	tokens := auth.NewTokens(cfg.JWTSecret)
	accounts := auth.NewService(store, tokens)
	board := leaderboard.NewService(store, rankCache, producer)

	// Initialize live sessions
	manager := sessions.NewManager(anilist, store, board, producer, sessions.Options{
		MaxSwitches: cfg.MaxTabSwitches,
	})
	defer manager.Shutdown()

	// Start WebSocket hub
	hub := websocket.NewHub(manager)
	go hub.Run(ctx)

	// Create message handler
	handler := websocket.NewHandler(hub, manager, anilist.SearchTitles)

	// Set up HTTP router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		apiHandlers := api.NewHandlers(api.Deps{
			Store:        store,
			Auth:         accounts,
			Leaderboard:  board,
			Cache:        rankCache,
			Characters:   anilist,
			SearchTitles: anilist.SearchTitles,
			Sessions:     manager,
			Producer:     producer,
			Consumer:     consumer,
			AdminToken:   cfg.AdminToken,
			Persistent:   persistent,
		})
		apiHandlers.RegisterRoutes(r)
	})

	// WebSocket endpoint
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, handler, tokens, w, r)
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Bool("persistent", persistent).
			Bool("kafka", producer.IsEnabled()).
			Bool("rankCache", rankCache.Enabled()).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	cancel()

	log.Info().Msg("Server exited properly")
}
