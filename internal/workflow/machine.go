package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tradedoc/internal/models"
	"tradedoc/internal/store"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Machine applies role-gated partial updates to stored transactions. Each call
// is one read followed by one write; concurrent updates to the same record are
// last-writer-wins.
type Machine struct {
	store store.TransactionStore
	now   func() time.Time
	log   zerolog.Logger
}

func NewMachine(s store.TransactionStore, log zerolog.Logger) *Machine {
	return &Machine{
		store: s,
		now:   time.Now,
		log:   log.With().Str("component", "workflow").Logger(),
	}
}

// WithClock replaces the clock used for updated_at.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now
	return m
}

func (m *Machine) AdvanceDocuments(ctx context.Context, id uint, cmd AdvanceDocuments, actor Actor) (models.Transaction, error) {
	return m.apply(ctx, id, actor, RoleOfficer, cmd.Status, func(p *store.Patch, _ models.Transaction) {
		p.Note = cmd.Note
	})
}

func (m *Machine) SetCensorship(ctx context.Context, id uint, cmd SetCensorship, actor Actor) (models.Transaction, error) {
	return m.apply(ctx, id, actor, RoleCensor, cmd.Status, func(p *store.Patch, _ models.Transaction) {
		p.Censored = cmd.Censored
		p.NoteCensored = cmd.NoteCensored
	})
}

// SetPostInspection does not require censorship to be granted first; doing so
// is logged.
func (m *Machine) SetPostInspection(ctx context.Context, id uint, cmd SetPostInspection, actor Actor) (models.Transaction, error) {
	return m.apply(ctx, id, actor, RoleInspector, cmd.Status, func(p *store.Patch, current models.Transaction) {
		p.PostInspection = cmd.PostInspection
		p.NoteInspection = cmd.NoteInspection

		if cmd.PostInspection != nil && *cmd.PostInspection && !current.Censored {
			m.log.Warn().
				Uint("id", current.ID).
				Str("trref", current.Trref).
				Str("actor", actor.Name).
				Msg("post inspection approved before censorship")
		}
	})
}

func (m *Machine) apply(
	ctx context.Context,
	id uint,
	actor Actor,
	required Role,
	status *models.Status,
	fill func(*store.Patch, models.Transaction),
) (models.Transaction, error) {
	if err := actor.Authorize(required); err != nil {
		return models.Transaction{}, err
	}
	if status != nil && !status.Valid() {
		return models.Transaction{}, fmt.Errorf("%w: %q", ErrInvalidStatus, *status)
	}

	current, err := m.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Transaction{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return models.Transaction{}, err
	}

	if status != nil && !current.Status.CanTransition(*status) {
		return models.Transaction{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, *status)
	}

	patch := store.Patch{
		Status:    status,
		UpdatedBy: actor.Name,
		UpdatedAt: m.now(),
	}
	fill(&patch, current)

	updated, err := m.store.UpdateFields(ctx, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Transaction{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return models.Transaction{}, err
	}

	m.log.Info().
		Uint("id", id).
		Str("trref", updated.Trref).
		Str("actor", actor.Name).
		Str("role", string(actor.Role)).
		Str("status", string(updated.Status)).
		Msg("transaction updated")

	return updated, nil
}
