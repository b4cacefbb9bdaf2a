// calleditd is the calledit server daemon. It wires the configured store
// and services into the encrypted TCP game endpoint and supervises
// graceful shutdown.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/calledit/calledit-server/pkg/api"
	"github.com/calledit/calledit-server/pkg/chatlock"
	"github.com/calledit/calledit-server/pkg/config"
	"github.com/calledit/calledit-server/pkg/database"
	"github.com/calledit/calledit-server/pkg/events"
	"github.com/calledit/calledit-server/pkg/identity"
	"github.com/calledit/calledit-server/pkg/push"
	"github.com/calledit/calledit-server/pkg/server"
	"github.com/calledit/calledit-server/pkg/services"
	"github.com/calledit/calledit-server/pkg/store"
	"github.com/calledit/calledit-server/pkg/sweeper"
	"github.com/calledit/calledit-server/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Parse command-line flags
	envFile := flag.String("env-file",
		getEnv("ENV_FILE", ".env"),
		"Path to .env file")
	flag.Parse()

	// Load .env file; a missing file is fine, deployed instances configure
	// through the environment directly.
	if err := godotenv.Load(*envFile); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", *envFile, "error", err)
	} else {
		slog.Info("Loaded environment", "path", *envFile)
	}

	ctx := context.Background()

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting calledit-server",
		"version", version.Full(),
		"listen_addr", cfg.ListenAddr,
		"store_driver", cfg.StoreDriver,
		"auth_mode", cfg.AuthMode)

	// 2. Open the store
	var st store.Store
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		dbConfig, err := database.LoadConfigFromEnv()
		if err != nil {
			slog.Error("Failed to load database config", "error", err)
			os.Exit(1)
		}
		dbClient, err := database.NewClient(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				slog.Error("Error closing database client", "error", err)
			}
		}()
		st = store.NewPostgres(dbClient.DB())
		slog.Info("Connected to PostgreSQL database")
	case config.StoreDriverMemory:
		st = store.NewMemory()
		slog.Warn("Using in-memory store, data does not survive restarts")
	}

	// 3. Identity verifier
	var verifier identity.Verifier
	switch cfg.AuthMode {
	case config.AuthModeFirebase:
		fv, err := identity.NewFirebaseVerifier(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			slog.Error("Failed to initialize Firebase verifier", "error", err)
			os.Exit(1)
		}
		verifier = fv
	case config.AuthModeJWT:
		jv, err := identity.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			slog.Error("Failed to initialize JWT verifier", "error", err)
			os.Exit(1)
		}
		verifier = jv
		slog.Warn("Using shared-secret JWT auth, intended for development only")
	}
	verifier = identity.NewCachingVerifier(verifier, 0, 0)

	// 4. Push notifier
	var notifier push.Notifier = push.NoopNotifier{}
	if cfg.PushEnabled {
		fcm, err := push.NewFCMNotifier(ctx, cfg.FirebaseCredentialsFile)
		if err != nil {
			slog.Error("Failed to initialize FCM notifier", "error", err)
			os.Exit(1)
		}
		notifier = fcm
		slog.Info("FCM notifications enabled")
	}

	// 5. Start the event engine
	engine := events.NewEngine(cfg.EventQueueSize, cfg.EventDeliveryPause)
	engine.Start()

	// 6. Domain services
	locks := chatlock.NewManager()
	profiles := services.NewProfileCache(st, 0, 0)
	userService := services.NewUserService(st, verifier, profiles, cfg.JoinTokenSecret)
	chatService := services.NewChatService(st, locks, profiles, cfg.JoinTokenSecret)
	messageService := services.NewMessageService(st, locks, engine, notifier, profiles, cfg.JoinTokenSecret)
	assertionService := services.NewAssertionService(st, locks, engine, profiles)
	slog.Info("Services initialized")

	// 7. Completion sweeper. Assertions also settle lazily on reads, so
	// running without the sweeper only delays settlement of unread chats.
	var sw *sweeper.Sweeper
	if cfg.SweepInterval > 0 {
		sw = sweeper.New(assertionService, cfg.SweepInterval, cfg.SweepJitter)
		sw.Start(ctx)
	} else {
		slog.Info("Sweeper disabled, assertions settle lazily on reads")
	}

	// 8. Start the TCP protocol server
	srv := server.NewServer(cfg.ListenAddr, userService, chatService, messageService, assertionService, engine)
	if err := srv.Start(); err != nil {
		slog.Error("Failed to start protocol listener", "error", err)
		os.Exit(1)
	}

	// 9. Start the ops HTTP server (non-blocking)
	errCh := make(chan error, 1)
	var opsServer *api.Server
	if cfg.OpsAddr != "" {
		opsServer = api.NewServer(st, engine, sw)
		go func() {
			slog.Info("Ops HTTP server listening", "addr", cfg.OpsAddr)
			if err := opsServer.Start(cfg.OpsAddr); err != nil && err != http.ErrServerClosed {
				slog.Error("Ops HTTP server error", "error", err)
				errCh <- err
			}
		}()
	}

	slog.Info("calledit-server started successfully")

	// 10. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 11. Graceful shutdown: stop accepting sessions first, then the
	// machinery that serves them.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Protocol server shutdown error", "error", err)
	}

	if sw != nil {
		sw.Stop()
	}
	engine.Stop()

	if opsServer != nil {
		opsShutdownCtx, opsCancel := context.WithTimeout(ctx, 5*time.Second)
		defer opsCancel()
		if err := opsServer.Shutdown(opsShutdownCtx); err != nil {
			slog.Error("Ops HTTP server shutdown error", "error", err)
		}
	}

	slog.Info("Shutdown complete")
}
