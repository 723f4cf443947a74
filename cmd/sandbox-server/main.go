package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/projetocrm/consultas/internal/api"
	"github.com/projetocrm/consultas/internal/config"
	"github.com/projetocrm/consultas/internal/db"
	"github.com/projetocrm/consultas/internal/logging"
	redisclient "github.com/projetocrm/consultas/internal/redis"
	"github.com/projetocrm/consultas/internal/store"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "prod", "info").Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(os.Stderr, cfg.Env, cfg.LogLevel)

	if err := cfg.ValidateSandbox(); err != nil {
		logger.Fatal().Err(err).Msg("invalid sandbox config")
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("sandbox-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		st     store.Store
		pgPool *pgxpool.Pool
	)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.EnsureSchema(pgCtx, pgPool)
		}
		cancelPg()
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres setup error")
		}
		defer pgPool.Close()
		st = store.NewPgStore(pgPool)
		logger.Info().Msg("connected to Postgres")
	} else {
		mem := store.NewMemoryStore()
		if err := store.Seed(rootCtx, mem, gofakeit.New(0), 50, 3); err != nil {
			logger.Fatal().Err(err).Msg("seed memory store")
		}
		st = mem
		logger.Info().Msg("using seeded in-memory store")
	}

	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.Connect(rootCtx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		logger.Info().Msg("connected to Redis")
	} else {
		locker = redisclient.NewLocalLocker(cfg.LockTTL)
	}

	router := api.NewRouter(api.RouterConfig{
		Store:       st,
		Locker:      locker,
		Tokens:      api.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		Credentials: api.Credentials{User: cfg.SandboxUser, Password: cfg.SandboxPassword},
		PgPool:      pgPool,
		Redis:       rdb,
		Logger:      logger,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return rootCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info().Str("addr", srv.Addr).Msg("listening")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	case <-rootCtx.Done():
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down sandbox-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
