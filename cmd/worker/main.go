package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/config"
	"github.com/fitforge/fitforge-backend/internal/bootstrap"
	"github.com/fitforge/fitforge-backend/internal/device"
	"github.com/fitforge/fitforge-backend/internal/formcache"
	"github.com/fitforge/fitforge-backend/internal/logging"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := bootstrap.OpenRedis(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal("redis unavailable", zap.Error(err))
	}
	defer rdb.Close()

	devices := device.NewManager(device.Deps{
		Redis:     rdb,
		Namespace: cfg.App.Namespace,
		Logger:    logger,
	})

	sched, err := formcache.NewScheduler(cfg.Forms.SweepCron, devices.FormCaches, logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "sweep":
		removed, err := sched.RunOnce(ctx)
		if err != nil {
			logger.Fatal("form sweep failed", zap.Error(err))
		}
		logger.Info("form sweep done", zap.Int("removed", removed))
	case "run":
		sched.Start()
		<-ctx.Done()
		sched.Stop()
	default:
		log.Fatalf("usage: worker [run|sweep], unknown command: %s", cmd)
	}
}
