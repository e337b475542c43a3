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

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/chairside/internal/app"
	"github.com/jwalitptl/chairside/internal/config"
	"github.com/jwalitptl/chairside/internal/handler/health"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/worker"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("CHAIRSIDE_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	lg := logger.NewLogger(&logger.Config{
		Level: logger.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	lg.SetGlobal()
	gin.SetMode(cfg.Server.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg, metrics.NewMetrics("chairside", "worker"))
	if err != nil {
		lg.Fatal(err, "failed to initialise application")
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)

	if a.Queue != nil && cfg.Reminders.Enabled {
		srv := asynq.NewServer(*a.Queue, asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues:      map[string]int{worker.ReminderQueue: 1},
			Logger:      worker.NewQueueLogger(lg),
		})
		g.Go(func() error {
			if err := srv.Start(worker.NewServeMux(a.ReminderService, lg)); err != nil {
				return fmt.Errorf("failed to start reminder server: %w", err)
			}
			<-gctx.Done()
			srv.Shutdown()
			return nil
		})
	} else {
		lg.Warn("reminder queue disabled, only upcoming alerts will run")
	}

	watcher := worker.NewUpcomingWatcher(a.Appointments, a.NotificationService, worker.UpcomingConfig{
		Window:   cfg.Notifications.UpcomingWindow,
		Interval: cfg.Notifications.PollInterval,
		Location: a.Location,
		Channels: upcomingChannels(cfg),
	}, a.Metrics, lg)
	g.Go(func() error { return watcher.Start(gctx) })

	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(a.Checks, nil).RegisterRoutes(engine.Group(""))
	probe := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Worker.HealthPort),
		Handler: engine,
	}
	g.Go(func() error {
		if err := probe.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return probe.Shutdown(shutdownCtx)
	})

	lg.Info("worker started", "concurrency", cfg.Worker.Concurrency)
	if err := g.Wait(); err != nil {
		lg.Error(err, "worker stopped with error")
		return
	}
	lg.Info("worker exited properly")
}

func upcomingChannels(cfg *config.Config) []string {
	channels := []string{model.ChannelInApp}
	if cfg.Notifications.Push.Enabled {
		channels = append(channels, model.ChannelPush)
	}
	return channels
}
