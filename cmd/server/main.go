package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rei1007/daigakuhai-support/internal/broadcast"
	"github.com/rei1007/daigakuhai-support/internal/config"
	"github.com/rei1007/daigakuhai-support/internal/database"
	"github.com/rei1007/daigakuhai-support/internal/logging"
	"github.com/rei1007/daigakuhai-support/internal/redis"
	"github.com/rei1007/daigakuhai-support/internal/refdata"
	"github.com/rei1007/daigakuhai-support/internal/room"
	"github.com/rei1007/daigakuhai-support/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRedis(ctx context.Context, cfg *config.Config) *goredis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logging.WithError(err).Error("Failed to connect to Redis")
		os.Exit(1)
	}
	return client
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.WithError(err).Error("Failed to connect to database")
		os.Exit(1)
	}

	if err := database.EnsureSchema(ctx, pool); err != nil {
		logging.WithError(err).Error("Failed to ensure database schema")
		os.Exit(1)
	}

	return pool
}

func runGracefulShutdown(srv *server.Server, dispatcher *room.Dispatcher, broadcaster *broadcast.Broadcaster) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		broadcaster.Stop()
		dispatcher.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	redisClient := setupRedis(context.Background(), cfg)
	defer func() { _ = redisClient.Close() }()

	// Reference data: postgres-backed when configured, built-in sample
	// data otherwise.
	var (
		pool     *pgxpool.Pool
		refDataP refdata.Provider = refdata.Static{}
	)
	if cfg.DatabaseURL != "" {
		pool = setupDB(cfg)
		defer pool.Close()
		refDataP = database.NewRefDataRepo(pool)
	}

	store := redis.NewRoomStore(redisClient)
	broadcaster := broadcast.NewBroadcaster(clock, cfg.MaxWebSocketConnections)

	// The state load is synchronous: no command or connection is served
	// before the room is initialized.
	loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dispatcher, err := room.NewDispatcher(loadCtx, store, broadcaster)
	cancel()
	if err != nil {
		logging.WithError(err).Error("Failed to initialize room state")
		os.Exit(1)
	}

	srv := server.NewServer(cfg, dispatcher, broadcaster, refDataP, redisClient, pool)

	done := runGracefulShutdown(srv, dispatcher, broadcaster)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.WithError(err).Error("Server error")
		os.Exit(1)
	}

	<-done
}
