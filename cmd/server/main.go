package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rdsimon13/isayitforward/internal/database/boltstore"
	"github.com/rdsimon13/isayitforward/internal/database/sqlitestore"
	"github.com/rdsimon13/isayitforward/internal/handlers"
	"github.com/rdsimon13/isayitforward/internal/metrics"
	"github.com/rdsimon13/isayitforward/internal/moderation"
	"github.com/rdsimon13/isayitforward/internal/routing"
	"github.com/rdsimon13/isayitforward/internal/sif"
	"github.com/rdsimon13/isayitforward/internal/tracing"
)

func main() {
	// Configure zerolog
	// Set log level from environment (default: info)
	logLevel := os.Getenv("LOG_LEVEL")
	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Use pretty console logging in development, JSON in production
	if os.Getenv("LOG_FORMAT") == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	log.Info().Msg("Starting iSayItForward moderation service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Get port from env or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "18920"
	}

	publicURL := os.Getenv("SERVER_PUBLIC_URL")

	// Tracing is opt-in; without an exporter endpoint the provider would
	// just retry in the background and spam the logs.
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tp, err := tracing.Init(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Tracing shutdown failed")
			}
		}()
		log.Info().Msg("Tracing initialized")
	}

	dbPath := os.Getenv("SIF_DB_PATH")
	if dbPath == "" {
		// Default to XDG data directory or home directory for development
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to get home directory")
			}
			dataDir = filepath.Join(home, ".local", "share")
		}
		dbPath = filepath.Join(dataDir, "isayitforward", "isayitforward.db")
	}

	// Two interchangeable backends share the store interfaces: bbolt for
	// single-node deployments (default), sqlite when operators want SQL
	// access to the data.
	backend := os.Getenv("SIF_DB_BACKEND")
	var (
		modStore moderation.Store
		sifStore sif.Store
		closeDB  func() error
	)
	switch backend {
	case "sqlite":
		db, err := sqlitestore.Open(ctx, dbPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open sqlite database")
		}
		modStore = sqlitestore.NewModerationStore(db)
		sifStore = sqlitestore.NewSIFStore(db)
		closeDB = db.Close
	case "bolt", "":
		store, err := boltstore.Open(boltstore.Options{Path: dbPath})
		if err != nil {
			log.Fatal().Err(err).Str("path", dbPath).Msg("Failed to open database")
		}
		modStore = store.ModerationStore()
		sifStore = store.SIFStore()
		closeDB = store.Close
	default:
		log.Fatal().Str("backend", backend).Msg("Unknown SIF_DB_BACKEND (want bolt or sqlite)")
	}
	defer closeDB()

	log.Info().Str("path", dbPath).Str("backend", backendName(backend)).Msg("Database opened")

	service := moderation.NewService(modStore, sifStore)

	// Export pending-report and block-count gauges in the background
	metrics.StartCollector(ctx, metrics.StatsSource{
		PendingReportCount: func() int { return countOrNegative(ctx, modStore.CountPendingReports) },
		BlockCount:         func() int { return countOrNegative(ctx, modStore.CountBlocks) },
	}, 30*time.Second)

	h := handlers.New(service, sifStore, handlers.Config{
		PublicURL: publicURL,
	})

	rateLimit := 300
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatal().Str("value", v).Msg("Invalid RATE_LIMIT_PER_MINUTE")
		}
		rateLimit = n
	}

	handler := routing.SetupRouter(routing.Config{
		Handlers:  h,
		Logger:    log.Logger,
		RateLimit: rateLimit,
	})

	server := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().
		Str("address", server.Addr).
		Str("url", "http://localhost:"+port).
		Str("database", dbPath).
		Msg("Starting HTTP server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	log.Info().Msg("Server stopped")
}

func backendName(backend string) string {
	if backend == "" {
		return "bolt"
	}
	return backend
}

// countOrNegative adapts a store count to the collector's int contract;
// negative values tell the collector to skip the sample.
func countOrNegative(ctx context.Context, count func(context.Context) (int, error)) int {
	n, err := count(ctx)
	if err != nil {
		return -1
	}
	return n
}
