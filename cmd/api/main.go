package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/config"
	"github.com/fitforge/fitforge-backend/internal/auth"
	"github.com/fitforge/fitforge-backend/internal/backup"
	"github.com/fitforge/fitforge-backend/internal/bootstrap"
	"github.com/fitforge/fitforge-backend/internal/device"
	"github.com/fitforge/fitforge-backend/internal/logging"
	profileshttp "github.com/fitforge/fitforge-backend/internal/profiles/http"
	"github.com/fitforge/fitforge-backend/internal/remote"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := bootstrap.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()

	app := initFirebase(ctx, cfg, logger)

	provider := auth.NewFirebaseProvider(nil, cfg.Firebase.WebAPIKey, auth.WithProviderLogger(logger))
	if app != nil {
		authClient, err := app.Auth(ctx)
		if err != nil {
			logger.Fatal("firebase auth client", zap.Error(err))
		}
		provider = auth.NewFirebaseProvider(authClient, cfg.Firebase.WebAPIKey, auth.WithProviderLogger(logger))
	}

	store, err := bootstrap.OpenRemote(ctx, cfg, app)
	if err != nil {
		logger.Fatal("remote store unavailable", zap.String("backend", cfg.Remote.Backend), zap.Error(err))
	}
	defer store.Close()

	profiles := remote.NewProfileService(store,
		remote.WithLogger(logger),
		remote.WithRetry(cfg.Remote.RetryBase, cfg.Remote.MaxRetries),
	)

	devices := device.NewManager(device.Deps{
		Redis:        rdb,
		Namespace:    cfg.App.Namespace,
		AppVersion:   cfg.App.Version,
		Profiles:     profiles,
		FormDebounce: cfg.Forms.Debounce,
		MaxRetries:   cfg.Remote.MaxRetries,
		Logger:       logger,
	})

	var sink profileshttp.BackupSink
	if s, err := backup.NewSink(ctx, cfg.Backup); err == nil {
		sink = s
	} else if !errors.Is(err, backup.ErrDisabled) {
		logger.Warn("export backups disabled", zap.Error(err))
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: cfg.App.Namespace,
		Version:     cfg.App.Version,
		CORSOrigins: cfg.Server.CORSOrigins,
		Redis:       rdb,
		Remote:      profiles,
		Devices:     devices,
		Provider:    provider,
		Backup:      sink,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("remote_backend", cfg.Remote.Backend),
			zap.String("env", cfg.App.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	devices.Close(shutdownCtx)
}

// initFirebase returns nil when firebase is not configured and the remote
// backend does not need it.
func initFirebase(ctx context.Context, cfg *config.Config, logger *zap.Logger) *firebase.App {
	needed := cfg.Remote.Backend == config.RemoteFirestore
	if !needed && cfg.Firebase.CredentialsPath == "" && cfg.Firebase.ProjectID == "" {
		logger.Warn("firebase not configured, authentication disabled")
		return nil
	}

	app, err := auth.InitializeFirebase(ctx, &cfg.Firebase)
	if err != nil {
		if needed {
			logger.Fatal("firebase", zap.Error(err))
		}
		logger.Warn("firebase unavailable, authentication disabled", zap.Error(err))
		return nil
	}
	return app
}
