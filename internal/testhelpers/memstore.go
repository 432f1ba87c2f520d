package testhelpers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"tradedoc/internal/models"
	"tradedoc/internal/store"
)

// MemoryStore is an in-memory store.Store. It serializes every call behind one
// mutex, which is the guarantee the engine expects from a real store.
type MemoryStore struct {
	mu        sync.Mutex
	nextID    uint
	txs       map[uint]models.Transaction
	byKey     map[string]uint
	customers map[string]models.Customer
	senders   []models.SenderConfig

	// Now stamps created_at; defaults to time.Now.
	Now func() time.Time
	// FailInsert, when set, is returned by BulkInsert.
	FailInsert error
}

var _ store.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txs:       make(map[uint]models.Transaction),
		byKey:     make(map[string]uint),
		customers: make(map[string]models.Customer),
		Now:       time.Now,
	}
}

func (m *MemoryStore) FindByID(_ context.Context, id uint) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return models.Transaction{}, store.ErrNotFound
	}
	return tx, nil
}

func (m *MemoryStore) FindByKey(_ context.Context, trref string) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[trref]
	if !ok {
		return models.Transaction{}, store.ErrNotFound
	}
	return m.txs[id], nil
}

func (m *MemoryStore) ExistingKeys(_ context.Context, trrefs []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]struct{})
	for _, k := range trrefs {
		if _, ok := m.byKey[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out, nil
}

func (m *MemoryStore) BulkInsert(_ context.Context, txs []models.Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsert != nil {
		return 0, m.FailInsert
	}

	written := 0
	for _, tx := range txs {
		if _, ok := m.byKey[tx.Trref]; ok {
			continue
		}
		m.nextID++
		tx.ID = m.nextID
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = m.Now()
		}
		m.txs[tx.ID] = tx
		m.byKey[tx.Trref] = tx.ID
		written++
	}
	return written, nil
}

// Insert stores tx as-is (assigning an ID) and returns it.
func (m *MemoryStore) Insert(tx models.Transaction) models.Transaction {
	_, _ = m.BulkInsert(context.Background(), []models.Transaction{tx})
	found, _ := m.FindByKey(context.Background(), tx.Trref)
	return found
}

func (m *MemoryStore) FindPaginated(ctx context.Context, f store.Filter, p store.Pagination) ([]models.Transaction, int64, error) {
	all, _ := m.FindAll(ctx, f)
	p = p.Normalize()
	total := int64(len(all))

	start := min(p.Offset(), len(all))
	end := min(start+p.Limit, len(all))
	return all[start:end], total, nil
}

func (m *MemoryStore) FindAll(_ context.Context, f store.Filter) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Transaction
	for _, tx := range m.txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpdateFields(_ context.Context, id uint, patch store.Patch) (models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return models.Transaction{}, store.ErrNotFound
	}
	patch.Apply(&tx)
	m.txs[id] = tx
	return tx, nil
}

func (m *MemoryStore) ClaimReminder(_ context.Context, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.IsSendingEmail || tx.IsSendEmail {
		return false, nil
	}
	tx.IsSendingEmail = true
	m.txs[id] = tx
	return true, nil
}

func (m *MemoryStore) MarkReminderSent(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return store.ErrNotFound
	}
	tx.IsSendEmail = true
	m.txs[id] = tx
	return nil
}

func (m *MemoryStore) ResetReminderClaim(_ context.Context, trref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byKey[trref]
	if !ok || m.txs[id].IsSendEmail {
		return store.ErrNotFound
	}
	tx := m.txs[id]
	tx.IsSendingEmail = false
	m.txs[id] = tx
	return nil
}

func (m *MemoryStore) FindCustomers(_ context.Context, custnos []string) (map[string]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Customer)
	for _, c := range custnos {
		if cust, ok := m.customers[c]; ok {
			out[c] = cust
		}
	}
	return out, nil
}

func (m *MemoryStore) UpsertCustomers(_ context.Context, customers []models.Customer) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range customers {
		if existing, ok := m.customers[c.Custno]; ok {
			c.ID = existing.ID
			c.CreatedAt = existing.CreatedAt
		} else {
			m.nextID++
			c.ID = m.nextID
			c.CreatedAt = m.Now()
		}
		m.customers[c.Custno] = c
	}
	return len(customers), nil
}

func (m *MemoryStore) CustomersWithReminderState(_ context.Context, sent bool, search string, p store.Pagination) ([]models.Customer, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owners := make(map[string]bool)
	for _, tx := range m.txs {
		if tx.IsSendEmail == sent {
			owners[tx.Custno] = true
		}
	}

	needle := strings.ToLower(search)
	var out []models.Customer
	for _, c := range m.customers {
		if !owners[c.Custno] {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Name), needle) && !strings.Contains(strings.ToLower(c.Custno), needle) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	p = p.Normalize()
	total := int64(len(out))
	start := min(p.Offset(), len(out))
	end := min(start+p.Limit, len(out))
	return out[start:end], total, nil
}

func (m *MemoryStore) CurrentSender(_ context.Context) (models.SenderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.senders) == 0 {
		return models.SenderConfig{}, store.ErrNotFound
	}
	latest := m.senders[0]
	for _, s := range m.senders[1:] {
		if !s.UpdatedAt.Before(latest.UpdatedAt) {
			latest = s
		}
	}
	return latest, nil
}

func (m *MemoryStore) ListSenders(_ context.Context) ([]models.SenderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SenderConfig(nil), m.senders...), nil
}

func (m *MemoryStore) CreateSender(_ context.Context, sender *models.SenderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.senderTaken(sender.Email, 0) {
		return store.ErrConflict
	}
	m.nextID++
	sender.ID = m.nextID
	sender.CreatedAt = m.Now()
	sender.UpdatedAt = sender.CreatedAt
	m.senders = append(m.senders, *sender)
	return nil
}

func (m *MemoryStore) UpdateSender(_ context.Context, id uint, email, password string) (models.SenderConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.senders {
		if s.ID != id {
			continue
		}
		if m.senderTaken(email, id) {
			return models.SenderConfig{}, store.ErrConflict
		}
		s.Email = email
		if password != "" {
			s.Password = password
		}
		s.UpdatedAt = m.Now()
		m.senders[i] = s
		return s, nil
	}
	return models.SenderConfig{}, store.ErrNotFound
}

func (m *MemoryStore) senderTaken(email string, except uint) bool {
	for _, s := range m.senders {
		if s.ID != except && s.Email == email {
			return true
		}
	}
	return false
}
