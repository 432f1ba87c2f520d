// Package app assembles the engine from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"tradedoc/internal/config"
	"tradedoc/internal/db"
	"tradedoc/internal/pkg/mailer"
	"tradedoc/internal/reminder"
	"tradedoc/internal/store"
	"tradedoc/internal/tasks"
)

// OpenStore connects to the configured database and migrates it when enabled.
func OpenStore(cfg *config.Config, log zerolog.Logger) (*store.GormStore, error) {
	gdb, err := db.InitDB(cfg.DBDriver, cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		return nil, err
	}
	if cfg.DBAutoMigrate {
		if err := db.Migrate(gdb, log); err != nil {
			return nil, err
		}
	}
	return store.NewGormStore(gdb), nil
}

// NewNotifier returns an SMTP mailer when a host is configured and a logging
// stand-in otherwise. The SMTP mailer authenticates as a stored sender when
// its password is known.
func NewNotifier(cfg *config.Config, senders store.SenderStore, log zerolog.Logger) reminder.Notifier {
	if cfg.SMTPHost == "" {
		log.Warn().Msg("SMTP_HOST not set, reminders will only be logged")
		return mailer.NewLogMailer(log)
	}

	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
	}, log).WithCredentials(senderCredentials(senders))
}

func senderCredentials(senders store.SenderStore) mailer.CredentialsFunc {
	return func(ctx context.Context, from string) (string, string, bool) {
		list, err := senders.ListSenders(ctx)
		if err != nil {
			return "", "", false
		}
		for _, s := range list {
			if strings.EqualFold(s.Email, from) && s.Password != "" {
				return s.Email, s.Password, true
			}
		}
		return "", "", false
	}
}

// Queue is the asynq connection shared by the deferrer and the worker.
type Queue struct {
	RedisOpt  asynq.RedisConnOpt
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

func OpenQueue(redisURL string) (*Queue, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Queue{
		RedisOpt:  redisOpt,
		Client:    asynq.NewClient(redisOpt),
		Inspector: asynq.NewInspector(redisOpt),
	}, nil
}

func (q *Queue) Deferrer() *tasks.AsynqDeferrer {
	return tasks.NewAsynqDeferrer(q.Client, q.Inspector)
}

func (q *Queue) Close() {
	q.Client.Close()
	q.Inspector.Close()
}
