package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradedoc/internal/models"
)

const (
	insertBatchSize = 200
	keyLookupChunk  = 500
)

// GormStore implements Store on top of gorm.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) FindByID(ctx context.Context, id uint) (models.Transaction, error) {
	tx, err := gorm.G[models.Transaction](s.DB).Where("id = ?", id).First(ctx)
	if err != nil {
		return models.Transaction{}, notFound(err)
	}
	return tx, nil
}

func (s *GormStore) FindByKey(ctx context.Context, trref string) (models.Transaction, error) {
	tx, err := gorm.G[models.Transaction](s.DB).Where("trref = ?", trref).First(ctx)
	if err != nil {
		return models.Transaction{}, notFound(err)
	}
	return tx, nil
}

func (s *GormStore) ExistingKeys(ctx context.Context, trrefs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(trrefs); start += keyLookupChunk {
		end := min(start+keyLookupChunk, len(trrefs))

		var keys []string
		err := s.DB.WithContext(ctx).Model(&models.Transaction{}).
			Where("trref IN ?", trrefs[start:end]).
			Pluck("trref", &keys).Error
		if err != nil {
			return nil, fmt.Errorf("failed to look up existing references: %w", err)
		}
		for _, k := range keys {
			existing[k] = struct{}{}
		}
	}
	return existing, nil
}

func (s *GormStore) BulkInsert(ctx context.Context, txs []models.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	// CreateInBatches runs all batches in one transaction.
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "trref"}}, DoNothing: true}).
		CreateInBatches(&txs, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert transactions: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *GormStore) FindPaginated(ctx context.Context, f Filter, p Pagination) ([]models.Transaction, int64, error) {
	p = p.Normalize()

	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	var rows []models.Transaction
	err := s.filtered(ctx, f).
		Order("created_at DESC").Order("id DESC").
		Offset(p.Offset()).Limit(p.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return rows, total, nil
}

func (s *GormStore) FindAll(ctx context.Context, f Filter) ([]models.Transaction, error) {
	var rows []models.Transaction
	if err := s.filtered(ctx, f).Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return rows, nil
}

func (s *GormStore) UpdateFields(ctx context.Context, id uint, patch Patch) (models.Transaction, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return models.Transaction{}, err
	}

	err := s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(patch.Columns()).Error
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to update transaction %d: %w", id, err)
	}

	return s.FindByID(ctx, id)
}

func (s *GormStore) ClaimReminder(ctx context.Context, id uint) (bool, error) {
	// UpdateColumn leaves updated_at alone; it is the workflow audit stamp.
	res := s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND is_sending_email = ? AND is_send_email = ?", id, false, false).
		UpdateColumn("is_sending_email", true)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim reminder for %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) MarkReminderSent(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		UpdateColumn("is_send_email", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark reminder sent for %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ResetReminderClaim(ctx context.Context, trref string) error {
	res := s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("trref = ? AND is_send_email = ?", trref, false).
		UpdateColumn("is_sending_email", false)
	if res.Error != nil {
		return fmt.Errorf("failed to reset reminder claim for %s: %w", trref, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&models.Transaction{})

	if f.Search != "" {
		like := containsPattern(f.Search)
		q = q.Where("(LOWER(custnm) LIKE ? ESCAPE '!' OR LOWER(trref) LIKE ? ESCAPE '!')", like, like)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.DeclarationBefore != nil {
		q = q.Where("expected_declaration_date IS NOT NULL AND expected_declaration_date < ?", *f.DeclarationBefore)
	}
	if f.DeclarationFrom != nil {
		q = q.Where("(expected_declaration_date IS NULL OR expected_declaration_date >= ?)", *f.DeclarationFrom)
	}
	if f.Censored != nil {
		q = q.Where("censored = ?", *f.Censored)
	}
	if f.PostInspection != nil {
		q = q.Where("post_inspection = ?", *f.PostInspection)
	}
	if f.SendEmail != nil {
		q = q.Where("is_send_email = ?", *f.SendEmail)
	}
	if f.SendingEmail != nil {
		q = q.Where("is_sending_email = ?", *f.SendingEmail)
	}
	if len(f.Custnos) > 0 {
		q = q.Where("custno IN ?", f.Custnos)
	}
	return q
}

func (s *GormStore) FindCustomers(ctx context.Context, custnos []string) (map[string]models.Customer, error) {
	out := make(map[string]models.Customer, len(custnos))
	if len(custnos) == 0 {
		return out, nil
	}

	customers, err := gorm.G[models.Customer](s.DB).Where("custno IN ?", custnos).Find(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load customers: %w", err)
	}
	for _, c := range customers {
		out[c.Custno] = c
	}
	return out, nil
}

func (s *GormStore) UpsertCustomers(ctx context.Context, customers []models.Customer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "custno"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "email", "contact_person", "phone_number", "updated_at"}),
		}).
		CreateInBatches(&customers, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to upsert customers: %w", res.Error)
	}
	return len(customers), nil
}

func (s *GormStore) CustomersWithReminderState(ctx context.Context, sent bool, search string, p Pagination) ([]models.Customer, int64, error) {
	p = p.Normalize()

	query := func() *gorm.DB {
		sub := s.DB.Model(&models.Transaction{}).Select("custno").Where("is_send_email = ?", sent)
		q := s.DB.WithContext(ctx).Model(&models.Customer{}).Where("custno IN (?)", sub)
		if search != "" {
			like := containsPattern(search)
			q = q.Where("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(custno) LIKE ? ESCAPE '!')", like, like)
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	var customers []models.Customer
	err := query().Order("created_at DESC").Order("id DESC").Offset(p.Offset()).Limit(p.Limit).Find(&customers).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	return customers, total, nil
}

func (s *GormStore) CurrentSender(ctx context.Context) (models.SenderConfig, error) {
	sender, err := gorm.G[models.SenderConfig](s.DB).Order("updated_at DESC").Order("id DESC").First(ctx)
	if err != nil {
		return models.SenderConfig{}, notFound(err)
	}
	return sender, nil
}

func (s *GormStore) ListSenders(ctx context.Context) ([]models.SenderConfig, error) {
	senders, err := gorm.G[models.SenderConfig](s.DB).Order("id ASC").Find(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sender configs: %w", err)
	}
	return senders, nil
}

func (s *GormStore) CreateSender(ctx context.Context, sender *models.SenderConfig) error {
	if err := gorm.G[models.SenderConfig](s.DB).Create(ctx, sender); err != nil {
		return fmt.Errorf("failed to create sender config: %w", conflict(err))
	}
	return nil
}

func (s *GormStore) UpdateSender(ctx context.Context, id uint, email, password string) (models.SenderConfig, error) {
	if _, err := gorm.G[models.SenderConfig](s.DB).Where("id = ?", id).First(ctx); err != nil {
		return models.SenderConfig{}, notFound(err)
	}

	cols := map[string]any{"email": email}
	if password != "" {
		cols["password"] = password
	}

	if err := s.DB.WithContext(ctx).Model(&models.SenderConfig{}).Where("id = ?", id).Updates(cols).Error; err != nil {
		return models.SenderConfig{}, fmt.Errorf("failed to update sender config %d: %w", id, conflict(err))
	}

	sender, err := gorm.G[models.SenderConfig](s.DB).Where("id = ?", id).First(ctx)
	if err != nil {
		return models.SenderConfig{}, notFound(err)
	}
	return sender, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// likeEscaper escapes LIKE wildcards with '!', which needs no quoting in any of
// the supported dialects (a backslash does in MySQL).
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern is a case-insensitive substring pattern for LIKE ... ESCAPE '!'.
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
}

// conflict maps unique-key violations to ErrConflict. Drivers that gorm cannot
// translate are recognized by their message.
func conflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "duplicate key") || strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "unique constraint") {
		return ErrConflict
	}
	return err
}
