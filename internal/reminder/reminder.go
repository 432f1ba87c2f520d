package reminder

import (
	"context"
	"errors"
	"time"
)

// ErrDelivery marks a failed send. The claim stays in place and the send is
// not retried.
var ErrDelivery = errors.New("reminder delivery failed")

// Notifier sends one HTML message.
type Notifier interface {
	Send(ctx context.Context, from, to, subject, html string) error
}

// Job is a deferred reminder for one transaction.
type Job struct {
	TransactionID uint      `json:"transaction_id"`
	Trref         string    `json:"trref"`
	At            time.Time `json:"at"`
}

// Deferrer holds jobs until their fire time.
type Deferrer interface {
	Schedule(ctx context.Context, job Job) error
	Cancel(ctx context.Context, transactionID uint) error
}
