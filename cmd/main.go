/*
Package main is the entry point for the livechat server.

It is responsible for loading configuration, initializing the global logging system,
building the persistence, presence, blob and event bus backends, setting up the HTTP
server with the subscription gateway, and gracefully handling operating system
interrupt signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"livechat/internal/app/chatroom"
	"livechat/internal/app/db"
	"livechat/internal/app/eventbus"
	"livechat/internal/app/gateway"
	"livechat/internal/app/presence"
	"livechat/internal/app/storage"
	"livechat/internal/app/typing"
	"livechat/internal/app/user"
	"livechat/internal/configs"
	"livechat/internal/handler"
	"livechat/internal/pkg/auth/jwt"
	"livechat/internal/pkg/keyedlock"
	"livechat/internal/pkg/logx"
)

// devTokenLifetime is the lifetime of the tokens printed for seeded users in development.
const devTokenLifetime = 24 * time.Hour

// stores bundles the persistence collaborators chosen by DATABASE_URL.
type stores struct {
	chatrooms chatroom.Store
	users     user.Store
	pool      *pgxpool.Pool
}

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("redis", cfg.RedisURL != "").
		Bool("s3", cfg.UseS3()).
		Bool("memory_store", cfg.UseMemoryStore()).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persistence, err := openStores(ctx, cfg)
	if err != nil {
		logx.Fatal(err, "Failed to initialize persistence")
	}

	blobs, err := storage.NewBlobStore(storage.ServiceConfig{
		PublicAssetURL:    cfg.PublicAssetURL,
		UploadDir:         cfg.UploadDir,
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize blob store")
	}

	// Event bus, presence store and per-chatroom locks are process-local unless REDIS_URL is set.
	var (
		bus           eventbus.Bus
		presenceStore presence.Store
		locks         keyedlock.Locker
		redisClient   *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis")
		}
		bus = eventbus.NewRedisBus(redisClient, cfg.RedisPrefix)
		presenceStore = presence.NewRedisStore(redisClient, cfg.RedisPrefix)
		locks = keyedlock.NewRedis(redisClient, cfg.RedisPrefix)
	} else {
		bus = eventbus.NewMemoryBus()
		presenceStore = presence.NewMemoryStore()
		locks = keyedlock.NewLocal()
	}

	validator := jwt.NewValidator(cfg.JWTSecret)
	gw := gateway.New(validator, bus)

	deps := &handler.AppDeps{
		Config:    cfg,
		Chatrooms: chatroom.NewService(persistence.chatrooms, blobs, bus).WithLocker(locks),
		Users:     user.NewService(persistence.users, blobs),
		Presence:  presence.NewService(presenceStore, bus).WithLocker(locks),
		Typing:    typing.NewCoordinator(bus),
		Gateway:   gw,
		Validator: validator,
	}
	if disk, ok := blobs.(*storage.DiskStore); ok {
		deps.AssetsDir = disk.Root()
	}

	limiters := handler.NewLimiters()

	// Setup HTTP server and routes
	router := handler.Router(deps, limiters)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("livechat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	// Hijacked WebSocket connections are not tracked by the HTTP server.
	gw.Shutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	if err := bus.Close(); err != nil {
		logx.Error(err, "Failed to close event bus")
	}
	limiters.Stop()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logx.Error(err, "Failed to close Redis client")
		}
	}
	if persistence.pool != nil {
		persistence.pool.Close()
	}

	logx.Info("Server gracefully stopped.")
}

// openStores connects to Postgres, or builds a seeded in-memory store when DATABASE_URL=memory.
func openStores(ctx context.Context, cfg *configs.AppConfig) (*stores, error) {
	if !cfg.UseMemoryStore() {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		store := db.NewStore(pool)
		return &stores{chatrooms: store, users: store, pool: pool}, nil
	}

	store := db.NewMemoryStore()
	seeded, err := db.SeedUsers(ctx, store)
	if err != nil {
		return nil, err
	}

	for _, u := range seeded {
		fields := []any{"user_id", u.ID, "email", u.Email}
		if cfg.IsDevelopment() {
			token, err := jwt.GenerateToken(&jwt.Payload{UserID: u.ID, Email: u.Email}, cfg.JWTSecret, devTokenLifetime)
			if err != nil {
				return nil, fmt.Errorf("failed to issue token for seeded user: %w", err)
			}
			fields = append(fields, "token", token)
		}
		logx.Info("Seeded in-memory user", fields...)
	}

	return &stores{chatrooms: store, users: store}, nil
}

// openRedis parses url and verifies the server is reachable.
func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logx.Info("Connected to Redis.", "addr", opts.Addr)
	return client, nil
}
