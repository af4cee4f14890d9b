package main

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/callctl/internal/api"
	"github.com/dennisdiepolder/callctl/internal/asterisk"
	"github.com/dennisdiepolder/callctl/internal/auth"
	"github.com/dennisdiepolder/callctl/internal/callcenter"
	"github.com/dennisdiepolder/callctl/internal/config"
	"github.com/dennisdiepolder/callctl/internal/definitions"
	"github.com/dennisdiepolder/callctl/internal/dialplan"
	"github.com/dennisdiepolder/callctl/internal/ledger"
	"github.com/dennisdiepolder/callctl/internal/lock"
	"github.com/dennisdiepolder/callctl/internal/metrics"
	"github.com/dennisdiepolder/callctl/internal/stats"
	"github.com/dennisdiepolder/callctl/internal/storage"
	"github.com/dennisdiepolder/callctl/internal/supervisor"
	"github.com/dennisdiepolder/callctl/internal/websocket"
	"github.com/dennisdiepolder/callctl/internal/wrapup"
	"github.com/dennisdiepolder/callctl/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("config_dir", cfg.ConfigDir).
		Str("log_level", cfg.LogLevel).
		Msg("starting callctl server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.Get()

	// Durable streams: agent ledgers, wrap-ups, supervisor audit
	storeCfg := storage.LoadConfig()
	store, err := storage.NewStore(ctx, storeCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create store")
	}

	// Per-agent serialization, shared across instances when Redis is configured
	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		rl := lock.NewRedisLocker(cfg.RedisAddr, cfg.LockTTL)
		if err := rl.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to reach redis")
		}
		defer rl.Close()
		locker = rl
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis locks")
	}

	agentLedger := ledger.New(store, locker, m, log.Logger)
	sw := asterisk.NewClient(asterisk.NewExecRunner(cfg.AsteriskBin), cfg.AsteriskTimeout, m, log.Logger)

	// Definitions and call history
	defs, history, db, err := openDefinitions(ctx, cfg, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load definitions")
	}
	if db != nil {
		defer db.Close()
	}

	catalog := wrapup.DefaultCatalog()
	if cfg.WrapUpCatalog != "" {
		if catalog, err = wrapup.LoadCatalog(cfg.WrapUpCatalog); err != nil {
			log.Fatal().Err(err).Msg("failed to load wrap-up catalog")
		}
	}

	// Create WebSocket hub
	hub := websocket.NewHub(log.Logger)
	go hub.Run()
	wsHandler := websocket.NewHandler(hub, cfg, log.Logger)

	svc := callcenter.NewService(callcenter.Deps{
		Switch:      sw,
		Definitions: defs,
		History:     history,
		Ledger:      agentLedger,
		Applier:     dialplan.NewApplier(cfg.ConfigDir, sw, locker, m, log.Logger),
		Supervisor:  supervisor.NewDispatcher(sw, store, agentLedger, m, log.Logger),
		WrapUps:     wrapup.NewRecorder(catalog, agentLedger, m, log.Logger),
		Publisher:   hub,
		Shuffler:    dialplan.NewLockedShuffler(rand.New(rand.NewSource(time.Now().UnixNano()))),
		WindowDays:  cfg.SLAWindowDays,
		Metrics:     m,
	}, log.Logger)

	authenticator, err := auth.New(auth.Options{
		Disabled: cfg.AuthDisabled,
		JWKSURL:  cfg.JWKSURL,
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.JWTIssuer,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure authentication")
	}

	r := newRouter(cfg, m, authenticator.Middleware, api.NewHandler(svc, log.Logger), wsHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// openDefinitions prefers PostgreSQL, which also holds the queue log used for
// SLA history. Without a database the YAML file is read and history comes
// from DynamoDB call records when that store is in use.
func openDefinitions(ctx context.Context, cfg *config.Config, store storage.Store) (definitions.Source, stats.HistorySource, *sql.DB, error) {
	if cfg.DatabaseURL != "" {
		db, err := definitions.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := definitions.Migrate(db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		log.Info().Msg("using postgres definitions")
		return definitions.NewRepo(db), stats.NewPostgresHistory(db), db, nil
	}

	defs, err := definitions.LoadFile(cfg.DefinitionsFile)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info().Str("file", cfg.DefinitionsFile).Msg("using file definitions")

	var history stats.HistorySource
	if records, ok := store.(stats.CallRecordSource); ok {
		history = stats.NewRecordHistory(records)
	}
	return defs, history, nil, nil
}

// newRouter assembles middleware and routes. authn guards everything except
// /health and /metrics.
func newRouter(cfg *config.Config, m *metrics.Metrics, authn func(http.Handler) http.Handler, apiHandler *api.Handler, ws http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes
	r.Get("/health", healthHandler)
	r.Handle("/metrics", m.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Route("/api", apiHandler.Routes)
		r.Get("/ws", ws.ServeHTTP)
	})
	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"callctl"}`)
}
