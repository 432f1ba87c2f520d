package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"tradedoc/internal/reminder"
)

// TaskProcessor holds dependencies for our task handlers
type TaskProcessor struct {
	scheduler *reminder.Scheduler
	log       zerolog.Logger
}

// NewTaskProcessor creates a new TaskProcessor
func NewTaskProcessor(scheduler *reminder.Scheduler, log zerolog.Logger) *TaskProcessor {
	return &TaskProcessor{
		scheduler: scheduler,
		log:       log.With().Str("component", "tasks").Logger(),
	}
}

// HandleSendReminderTask delivers one deferred reminder. A failed delivery is
// not retried; the task is archived instead.
func (p *TaskProcessor) HandleSendReminderTask(ctx context.Context, t *asynq.Task) error {
	var payload SendReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	p.log.Info().Uint("id", payload.TransactionID).Str("trref", payload.Trref).Msg("delivering deferred reminder")

	if err := p.scheduler.Deliver(ctx, payload.TransactionID); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// HandleSweepRemindersTask runs one reminder sweep. Sweeps are safe to repeat,
// so store errors are returned for asynq to retry.
func (p *TaskProcessor) HandleSweepRemindersTask(ctx context.Context, _ *asynq.Task) error {
	res, err := p.scheduler.Sweep(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("reminder sweep failed")
		return err
	}
	p.log.Info().Interface("result", res).Msg("reminder sweep done")
	return nil
}

// Register wires the handlers into mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeTaskSendReminder, p.HandleSendReminderTask)
	mux.HandleFunc(TypeTaskSweepReminders, p.HandleSweepRemindersTask)
}
