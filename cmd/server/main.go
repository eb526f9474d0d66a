package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/bookreview/internal/config"
	"github.com/ayush/bookreview/internal/logging"
	"github.com/ayush/bookreview/internal/ratings"
	"github.com/ayush/bookreview/internal/server"
	"github.com/ayush/bookreview/internal/session"
	"github.com/ayush/bookreview/internal/store"
	"github.com/ayush/bookreview/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init("info", "json")
		log.Fatal().Err(err).Msg("config")
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres migrate")
	}

	// ── Sessions ──────────────────────────────────────────────
	sessionStore, closeSessions, err := openSessionStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.SessionBackend).Msg("session store")
	}
	defer closeSessions()
	sessions := session.NewManager(sessionStore, cfg.SessionTTL, cfg.SessionCookieSecure)

	// ── Rating service ────────────────────────────────────────
	ratingClient := ratings.NewClient(cfg.RatingsURL, cfg.RatingsAPIKey, cfg.RatingsTimeout)

	// ── Templates ─────────────────────────────────────────────
	render, err := web.NewRenderer()
	if err != nil {
		log.Fatal().Err(err).Msg("templates")
	}

	// ── Router ───────────────────────────────────────────────
	router := server.NewRouter(server.Options{
		LoginRateLimit: cfg.LoginRateLimit,
		CORSOrigins:    cfg.CORSOrigins,
	}, pgStore, ratingClient, sessions, render)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("bookreview listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

// openSessionStore connects the configured backend and returns a func that
// releases it.
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.SessionBackend {
	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() { client.Disconnect(context.Background()) }
		st, err := session.NewMongoStore(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return st, closeFn, nil
	case "memory":
		log.Warn().Msg("in-memory sessions are lost on restart")
		return session.NewMemoryStore(), func() {}, nil
	default:
		rdb, err := session.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return session.NewRedisStore(rdb), func() { rdb.Close() }, nil
	}
}
