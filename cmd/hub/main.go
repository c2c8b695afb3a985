package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"

	"pulse/auth"
	"pulse/infrastructure/api"
	"pulse/infrastructure/push"
	"pulse/infrastructure/ws"
	"pulse/internal"
	"pulse/repositories"
	"pulse/runtime"
	"pulse/runtime/workers"
	"pulse/services"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hub terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close, redis close)
// executes before the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Durable store (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Replay cache (Redis)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return exitRuntime, fmt.Errorf("redis unreachable: %w", err)
	}
	defer func() {
		logger.Info("Closing Redis...")
		_ = redisClient.Close()
	}()

	// 4. Runtime state and services
	registry := runtime.NewRegistry()
	rooms := runtime.NewRoomIndex()
	feed := runtime.NewFeed(logger, registry, rooms, config.SinkTimeout)

	store := repositories.NewNotificationRepository(db, logger)
	replayCache := repositories.NewReplayCache(redisClient, logger)
	pushChannel := push.NewWebhook(logger, config.PushEndpoint, config.PushTimeout)

	notifier := services.NewNotifier(logger, store, pushChannel, replayCache, feed,
		config.PersistTimeout, config.PushTimeout, config.CacheTimeout, config.ReplayTTL)

	// The social graph lives in the relational backend; the embedding
	// application injects its own implementation. Standalone, the hub runs
	// with an empty graph: room fan-out works, follower and announcement
	// audiences resolve to nobody.
	broadcaster := services.NewBroadcaster(logger, feed, notifier, emptyGraph{})

	verifier := auth.NewVerifier([]byte(config.JWTSecret))

	// 5. Supervised background workers
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(workers.NewTelemetryWorker(logger, registry, config.MetricInterval))
	go supervisor.Run(ctx)
	defer supervisor.Stop()

	// 6. HTTP server exposing the websocket endpoint
	wsServer := ws.NewServer(logger, verifier, registry, rooms, feed, notifier, ws.Config{
		HandshakeTimeout:     config.HandshakeTimeout,
		WriteTimeout:         config.WriteTimeout,
		PongTimeout:          config.PongTimeout,
		PingInterval:         config.PingInterval,
		ReplayTimeout:        config.ReplayTimeout,
		ConnectionBufferSize: config.ConnectionBufferSize,
		MaxMessageSize:       config.MaxMessageSize,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", wsServer)
	api.NewServer(logger, broadcaster, notifier, store, registry).Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler: mux,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Hub listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return exitRuntime, err
		}
	}

	return exitOK, nil
}

// emptyGraph is the standalone fallback for contract.SocialGraph.
type emptyGraph struct{}

func (emptyGraph) FollowersOf(context.Context, string) ([]string, error) { return nil, nil }
func (emptyGraph) ListUserIDs(context.Context) ([]string, error)         { return nil, nil }
