package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"tradedoc/internal/app"
	"tradedoc/internal/config"
	"tradedoc/internal/logger"
	"tradedoc/internal/reminder"
	"tradedoc/internal/routes"
)

func main() {
	log := logger.New()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	st, err := app.OpenStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := app.NewNotifier(cfg, st, log)

	// With Redis, deferred reminders go to the worker's queue. Without it they
	// are held in process and swept on a ticker.
	var (
		deferrer reminder.Deferrer
		timers   *reminder.TimerQueue
	)
	if cfg.RedisURL != "" {
		queue, err := app.OpenQueue(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open task queue")
		}
		defer queue.Close()
		deferrer = queue.Deferrer()
	} else {
		timers = reminder.NewTimerQueue()
		deferrer = timers
	}

	svc := routes.NewServices(st, cfg, notifier, deferrer, log)

	if timers != nil {
		go timers.Run(ctx, func(ctx context.Context, job reminder.Job) {
			if err := svc.Scheduler.Deliver(ctx, job.TransactionID); err != nil {
				log.Error().Err(err).Str("trref", job.Trref).Msg("deferred reminder failed")
			}
		})
		if _, err := svc.Scheduler.Recover(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to recover deferred reminders")
		}
		go sweepEvery(ctx, svc.Scheduler, cfg.SweepInterval, log)
	}

	router := routes.SetupRouter(cfg, svc)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server shut down complete.")
}
