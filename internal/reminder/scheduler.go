package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tradedoc/internal/models"
	"tradedoc/internal/store"
)

const subjectPrefix = "Nhắc nhở bổ sung chứng từ giao dịch "

type Options struct {
	// LeadDays is how many days before the declaration deadline the reminder goes out.
	LeadDays int
	// DispatchHour is the local hour of day deferred reminders fire at.
	DispatchHour int
	Location     *time.Location
	// DefaultFrom is used when no sender config is stored.
	DefaultFrom string
}

type SweepResult struct {
	Candidates int `json:"candidates"`
	Claimed    int `json:"claimed"`
	Dispatched int `json:"dispatched"`
	Deferred   int `json:"deferred"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Scheduler claims pending reminders and either sends them or hands them to a
// Deferrer. The is_sending_email claim is the only guard against a second
// send, so it is safe within one process sharing the store but not across
// processes racing on a store without atomic conditional updates.
type Scheduler struct {
	store    store.Store
	notifier Notifier
	deferrer Deferrer
	opts     Options
	now      func() time.Time
	log      zerolog.Logger
}

func NewScheduler(s store.Store, n Notifier, d Deferrer, opts Options, log zerolog.Logger) *Scheduler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Scheduler{
		store:    s,
		notifier: n,
		deferrer: d,
		opts:     opts,
		now:      time.Now,
		log:      log.With().Str("component", "reminder").Logger(),
	}
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// TargetInstant is LeadDays before the declaration deadline at DispatchHour in
// the configured location. Without a deadline the target is now.
func (s *Scheduler) TargetInstant(declaration *time.Time, now time.Time) time.Time {
	if declaration == nil {
		return now
	}
	day := models.AddDays(*declaration, -s.opts.LeadDays)
	return time.Date(day.Year(), day.Month(), day.Day(), s.opts.DispatchHour, 0, 0, 0, s.opts.Location)
}

// Sweep attempts one reminder per unclaimed transaction. Delivery failures are
// logged and counted; only store errors while listing candidates are returned.
func (s *Scheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	no := false

	candidates, err := s.store.FindAll(ctx, store.Filter{SendEmail: &no, SendingEmail: &no})
	if err != nil {
		return res, fmt.Errorf("failed to load reminder candidates: %w", err)
	}
	res.Candidates = len(candidates)
	if len(candidates) == 0 {
		return res, nil
	}

	customers, err := s.store.FindCustomers(ctx, custnos(candidates))
	if err != nil {
		return res, fmt.Errorf("failed to load customers: %w", err)
	}

	now := s.now()
	for _, tx := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		log := s.log.With().Uint("id", tx.ID).Str("trref", tx.Trref).Logger()

		cust, ok := customers[tx.Custno]
		if !ok || cust.Email == "" {
			log.Debug().Str("custno", tx.Custno).Msg("no customer email, not claiming")
			res.Skipped++
			continue
		}

		claimed, err := s.store.ClaimReminder(ctx, tx.ID)
		if err != nil {
			log.Error().Err(err).Msg("claim failed")
			res.Failed++
			continue
		}
		if !claimed {
			res.Skipped++
			continue
		}
		res.Claimed++

		target := s.TargetInstant(tx.ExpectedDeclarationDate, now)
		if target.After(now) {
			if err := s.deferrer.Schedule(ctx, Job{TransactionID: tx.ID, Trref: tx.Trref, At: target}); err != nil {
				log.Error().Err(err).Time("at", target).Msg("failed to defer reminder")
				res.Failed++
				continue
			}
			log.Info().Time("at", target).Msg("reminder deferred")
			res.Deferred++
			continue
		}

		if err := s.Deliver(ctx, tx.ID); err != nil {
			res.Failed++
			continue
		}
		res.Dispatched++
	}

	s.log.Info().
		Int("candidates", res.Candidates).
		Int("dispatched", res.Dispatched).
		Int("deferred", res.Deferred).
		Int("failed", res.Failed).
		Msg("reminder sweep finished")

	return res, nil
}

// Deliver sends the reminder for a claimed transaction and marks it sent. It
// does nothing for a transaction already marked sent. Failures are logged here.
func (s *Scheduler) Deliver(ctx context.Context, id uint) error {
	log := s.log.With().Uint("id", id).Logger()

	tx, err := s.store.FindByID(ctx, id)
	if err != nil {
		log.Error().Err(err).Msg("reminder target not found")
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if tx.IsSendEmail {
		log.Debug().Msg("reminder already sent")
		return nil
	}

	customers, err := s.store.FindCustomers(ctx, []string{tx.Custno})
	if err != nil {
		log.Error().Err(err).Msg("failed to load customer")
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	cust, ok := customers[tx.Custno]
	if !ok || cust.Email == "" {
		log.Warn().Str("custno", tx.Custno).Msg("customer has no email")
		return fmt.Errorf("%w: no email for customer %s", ErrDelivery, tx.Custno)
	}

	html, err := Render(tx, s.opts.Location)
	if err != nil {
		log.Error().Err(err).Msg("failed to render reminder")
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	from := s.sender(ctx)
	if err := s.notifier.Send(ctx, from, cust.Email, Subject(tx), html); err != nil {
		log.Error().Err(err).Str("to", cust.Email).Msg("reminder send failed, claim kept")
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	if err := s.store.MarkReminderSent(ctx, id); err != nil {
		log.Error().Err(err).Msg("reminder sent but not marked")
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}

	log.Info().Str("to", cust.Email).Msg("reminder sent")
	return nil
}

// Recover re-registers claimed, unsent reminders whose target is still in the
// future, for deferrers that lose jobs on restart. Claims whose target already
// passed may have been attempted and are left for manual reset.
func (s *Scheduler) Recover(ctx context.Context) (int, error) {
	no, yes := false, true
	claimed, err := s.store.FindAll(ctx, store.Filter{SendEmail: &no, SendingEmail: &yes})
	if err != nil {
		return 0, fmt.Errorf("failed to load claimed reminders: %w", err)
	}

	now := s.now()
	restored := 0
	for _, tx := range claimed {
		target := s.TargetInstant(tx.ExpectedDeclarationDate, now)
		if !target.After(now) {
			s.log.Warn().Str("trref", tx.Trref).Msg("stuck reminder claim needs manual reset")
			continue
		}
		if err := s.deferrer.Schedule(ctx, Job{TransactionID: tx.ID, Trref: tx.Trref, At: target}); err != nil {
			return restored, fmt.Errorf("failed to restore reminder %s: %w", tx.Trref, err)
		}
		restored++
	}

	s.log.Info().Int("restored", restored).Msg("deferred reminders recovered")
	return restored, nil
}

func (s *Scheduler) sender(ctx context.Context) string {
	cfg, err := s.store.CurrentSender(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Msg("failed to load sender config, using default")
		}
		return s.opts.DefaultFrom
	}
	return cfg.Email
}

func Subject(tx models.Transaction) string {
	return subjectPrefix + tx.Trref
}

func custnos(txs []models.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		if _, ok := seen[tx.Custno]; ok {
			continue
		}
		seen[tx.Custno] = struct{}{}
		out = append(out, tx.Custno)
	}
	return out
}
