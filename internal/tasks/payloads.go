package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeTaskSendReminder   = "task:send_reminder"
	TypeTaskSweepReminders = "task:sweep_reminders"
)

// --- SendReminder Task ---

// SendReminderPayload identifies the claimed transaction to remind about.
type SendReminderPayload struct {
	TransactionID uint   `json:"transaction_id"`
	Trref         string `json:"trref"`
}

// NewSendReminderTask creates a new task for asynq
func NewSendReminderTask(transactionID uint, trref string) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(SendReminderPayload{TransactionID: transactionID, Trref: trref})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTaskSendReminder, payloadBytes), nil
}

// ReminderTaskID is the asynq task ID of a transaction's reminder; it makes a
// second enqueue for the same transaction a conflict.
func ReminderTaskID(transactionID uint) string {
	return fmt.Sprintf("reminder:%d", transactionID)
}

// --- SweepReminders Task ---

// NewSweepRemindersTask creates the periodic sweep task. It carries no payload.
func NewSweepRemindersTask() *asynq.Task {
	return asynq.NewTask(TypeTaskSweepReminders, nil)
}
