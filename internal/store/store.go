package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"tradedoc/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write would break a unique key.
	ErrConflict = errors.New("record already exists")
)

// TransactionStore is the record store the lifecycle engine runs against.
type TransactionStore interface {
	FindByID(ctx context.Context, id uint) (models.Transaction, error)
	FindByKey(ctx context.Context, trref string) (models.Transaction, error)
	// ExistingKeys returns the subset of trrefs already stored.
	ExistingKeys(ctx context.Context, trrefs []string) (map[string]struct{}, error)
	// BulkInsert writes all records, silently skipping any trref that already
	// exists, and returns the number of rows written.
	BulkInsert(ctx context.Context, txs []models.Transaction) (int, error)
	FindPaginated(ctx context.Context, f Filter, p Pagination) ([]models.Transaction, int64, error)
	FindAll(ctx context.Context, f Filter) ([]models.Transaction, error)
	UpdateFields(ctx context.Context, id uint, patch Patch) (models.Transaction, error)

	// ClaimReminder sets is_sending_email if it is not set yet. Only the caller
	// that flipped the flag gets true.
	ClaimReminder(ctx context.Context, id uint) (bool, error)
	MarkReminderSent(ctx context.Context, id uint) error
	// ResetReminderClaim clears a stuck claim (claimed, never sent). It is an
	// administrative action and is never called by the engine itself.
	ResetReminderClaim(ctx context.Context, trref string) error
}

type CustomerStore interface {
	FindCustomers(ctx context.Context, custnos []string) (map[string]models.Customer, error)
	UpsertCustomers(ctx context.Context, customers []models.Customer) (int, error)
	// CustomersWithReminderState lists customers owning at least one
	// transaction whose is_send_email equals sent.
	CustomersWithReminderState(ctx context.Context, sent bool, search string, p Pagination) ([]models.Customer, int64, error)
}

type SenderStore interface {
	CurrentSender(ctx context.Context) (models.SenderConfig, error)
	ListSenders(ctx context.Context) ([]models.SenderConfig, error)
	CreateSender(ctx context.Context, sender *models.SenderConfig) error
	UpdateSender(ctx context.Context, id uint, email, password string) (models.SenderConfig, error)
}

type Store interface {
	TransactionStore
	CustomerStore
	SenderStore
}

// Pagination is 1-based.
type Pagination struct {
	Page  int
	Limit int
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 500
)

// Normalize fills defaults and clamps the limit.
func (p Pagination) Normalize() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Pagination) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// LastPage is the number of pages needed for total rows, at least 1.
func (p Pagination) LastPage(total int64) int {
	p = p.Normalize()
	if total == 0 {
		return 1
	}
	return int((total + int64(p.Limit) - 1) / int64(p.Limit))
}

// Filter selects transactions. Zero fields do not constrain.
type Filter struct {
	// Search is a case-insensitive substring over custnm and trref.
	Search string
	Status *models.Status
	// DeclarationBefore keeps rows whose declaration date is set and < the day.
	DeclarationBefore *time.Time
	// DeclarationFrom keeps rows whose declaration date is unset or >= the day.
	DeclarationFrom *time.Time
	Censored        *bool
	PostInspection  *bool
	SendEmail       *bool
	SendingEmail    *bool
	Custnos         []string
}

// Match evaluates the filter in memory with the same semantics the SQL
// implementation uses.
func (f Filter) Match(tx models.Transaction) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(tx.Custnm), needle) && !strings.Contains(strings.ToLower(tx.Trref), needle) {
			return false
		}
	}
	if f.Status != nil && tx.Status != *f.Status {
		return false
	}
	if f.DeclarationBefore != nil {
		if tx.ExpectedDeclarationDate == nil || !tx.ExpectedDeclarationDate.Before(*f.DeclarationBefore) {
			return false
		}
	}
	if f.DeclarationFrom != nil && tx.ExpectedDeclarationDate != nil && tx.ExpectedDeclarationDate.Before(*f.DeclarationFrom) {
		return false
	}
	if f.Censored != nil && tx.Censored != *f.Censored {
		return false
	}
	if f.PostInspection != nil && tx.PostInspection != *f.PostInspection {
		return false
	}
	if f.SendEmail != nil && tx.IsSendEmail != *f.SendEmail {
		return false
	}
	if f.SendingEmail != nil && tx.IsSendingEmail != *f.SendingEmail {
		return false
	}
	if len(f.Custnos) > 0 {
		found := false
		for _, c := range f.Custnos {
			if c == tx.Custno {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Patch is a partial update of the workflow-owned columns. Nil fields are left
// untouched; UpdatedBy/UpdatedAt are always written.
type Patch struct {
	Status         *models.Status
	Note           *string
	Censored       *bool
	NoteCensored   *string
	PostInspection *bool
	NoteInspection *string
	UpdatedBy      string
	UpdatedAt      time.Time
}

// Apply writes the patch onto tx, keeping is_document_added consistent with
// the status.
func (p Patch) Apply(tx *models.Transaction) {
	if p.Status != nil {
		tx.Status = *p.Status
		tx.IsDocumentAdded = *p.Status == models.StatusDocumentsAdded
	}
	if p.Note != nil {
		tx.Note = p.Note
	}
	if p.Censored != nil {
		tx.Censored = *p.Censored
	}
	if p.NoteCensored != nil {
		tx.NoteCensored = p.NoteCensored
	}
	if p.PostInspection != nil {
		tx.PostInspection = *p.PostInspection
	}
	if p.NoteInspection != nil {
		tx.NoteInspection = p.NoteInspection
	}
	by := p.UpdatedBy
	at := p.UpdatedAt
	tx.UpdatedBy = &by
	tx.UpdatedAt = &at
}

// Columns returns the column map for a SQL UPDATE.
func (p Patch) Columns() map[string]any {
	cols := map[string]any{
		"updated_by": p.UpdatedBy,
		"updated_at": p.UpdatedAt,
	}
	if p.Status != nil {
		cols["status"] = *p.Status
		cols["is_document_added"] = *p.Status == models.StatusDocumentsAdded
	}
	if p.Note != nil {
		cols["note"] = *p.Note
	}
	if p.Censored != nil {
		cols["censored"] = *p.Censored
	}
	if p.NoteCensored != nil {
		cols["note_censored"] = *p.NoteCensored
	}
	if p.PostInspection != nil {
		cols["post_inspection"] = *p.PostInspection
	}
	if p.NoteInspection != nil {
		cols["note_inspection"] = *p.NoteInspection
	}
	return cols
}
