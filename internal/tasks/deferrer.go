package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"tradedoc/internal/reminder"
)

const ReminderQueue = "default"

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type taskDeleter interface {
	DeleteTask(queue, id string) error
}

// AsynqDeferrer schedules reminders as asynq tasks processed at the target
// instant. Scheduled tasks live in Redis and survive a restart.
type AsynqDeferrer struct {
	client    enqueuer
	inspector taskDeleter
	queue     string
}

var _ reminder.Deferrer = (*AsynqDeferrer)(nil)

func NewAsynqDeferrer(client *asynq.Client, inspector *asynq.Inspector) *AsynqDeferrer {
	return newAsynqDeferrer(client, inspector)
}

func newAsynqDeferrer(client enqueuer, inspector taskDeleter) *AsynqDeferrer {
	return &AsynqDeferrer{client: client, inspector: inspector, queue: ReminderQueue}
}

// Schedule enqueues the reminder once; a reminder already queued for the same
// transaction is left as is.
func (d *AsynqDeferrer) Schedule(ctx context.Context, job reminder.Job) error {
	task, err := NewSendReminderTask(job.TransactionID, job.Trref)
	if err != nil {
		return err
	}

	_, err = d.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(job.At),
		asynq.TaskID(ReminderTaskID(job.TransactionID)),
		asynq.MaxRetry(0),
		asynq.Queue(d.queue),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue reminder %s: %w", job.Trref, err)
	}
	return nil
}

func (d *AsynqDeferrer) Cancel(_ context.Context, transactionID uint) error {
	err := d.inspector.DeleteTask(d.queue, ReminderTaskID(transactionID))
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return reminder.ErrUnknownJob
	}
	return err
}
