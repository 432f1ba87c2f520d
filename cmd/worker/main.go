package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"tradedoc/internal/app"
	"tradedoc/internal/config"
	"tradedoc/internal/logger"
	"tradedoc/internal/reminder"
	"tradedoc/internal/tasks"
)

func main() {
	log := logger.New()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.RedisURL == "" {
		log.Fatal().Msg("REDIS_URL is required for the worker")
	}

	st, err := app.OpenStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Worker connected to database.")

	queue, err := app.OpenQueue(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open task queue")
	}
	defer queue.Close()

	scheduler := reminder.NewScheduler(st, app.NewNotifier(cfg, st, log), queue.Deferrer(), reminder.Options{
		LeadDays:     cfg.ReminderLeadDays,
		DispatchHour: cfg.ReminderDispatchHour,
		Location:     cfg.Location,
		DefaultFrom:  cfg.SMTPFrom,
	}, log)

	if n, err := scheduler.Recover(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to recover deferred reminders")
	} else if n > 0 {
		log.Info().Int("restored", n).Msg("Re-queued deferred reminders")
	}

	cron := asynq.NewScheduler(queue.RedisOpt, &asynq.SchedulerOpts{Location: cfg.Location})
	entryID, err := cron.Register(cfg.SweepCron, tasks.NewSweepRemindersTask(), asynq.Queue(tasks.ReminderQueue))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register periodic task")
	}
	log.Info().Str("task", tasks.TypeTaskSweepReminders).Str("entry_id", entryID).Str("cron", cfg.SweepCron).Msg("Registered periodic task")

	srv := asynq.NewServer(
		queue.RedisOpt,
		asynq.Config{
			Queues: map[string]int{
				tasks.ReminderQueue: 3,
			},
			Concurrency: 10,
			Logger:      asynqLogger{log: log.With().Str("component", "asynq").Logger()},
		},
	)

	mux := asynq.NewServeMux()
	tasks.NewTaskProcessor(scheduler, log).Register(mux)

	go func() {
		log.Info().Msg("Starting Asynq scheduler...")
		if err := cron.Run(); err != nil {
			log.Fatal().Err(err).Msg("Could not run Asynq scheduler")
		}
	}()

	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := srv.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Could not run Asynq worker server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Info().Msg("Shutdown signal received, shutting down gracefully...")

	cron.Shutdown()
	log.Info().Msg("Asynq scheduler shut down.")

	srv.Shutdown()
	log.Info().Msg("Asynq worker server shut down.")

	log.Info().Msg("Worker process shut down complete.")
}
