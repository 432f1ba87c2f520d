package report

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
	ErrNotFound        = errors.New("transaction not found")
	ErrUnsupportedView = errors.New("view cannot be exported")
)

// Query selects one page of transactions. A nil View lists every status.
type Query struct {
	Page   int
	Limit  int
	Search string
	View   *models.View
}

// Row is a transaction with its classification as of the query.
type Row struct {
	models.Transaction
	View    models.View `json:"view"`
	Overdue bool        `json:"overdue"`
}

type Page struct {
	Data     []Row `json:"data"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	LastPage int   `json:"lastPage"`
}

// Service serves read-only views of the stored transactions. Overdue is
// evaluated against the clock on every call.
type Service struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
	log   zerolog.Logger
}

func NewService(s store.Store, loc *time.Location, log zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store: s,
		loc:   loc,
		now:   time.Now,
		log:   log.With().Str("component", "report").Logger(),
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() time.Time {
	return models.Today(s.now(), s.loc)
}

func (s *Service) Get(ctx context.Context, id uint) (Row, error) {
	tx, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Row{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return Row{}, err
	}
	return classify(tx, s.today()), nil
}

func (s *Service) List(ctx context.Context, q Query) (Page, error) {
	today := s.today()
	f := store.Filter{Search: q.Search}
	if q.View != nil {
		var err error
		if f, err = viewFilter(*q.View, today); err != nil {
			return Page{}, err
		}
		f.Search = q.Search
	}
	return s.page(ctx, f, q, today)
}

// PostCensorshipQueue lists transactions with documents added and censorship
// granted, the input of the post-inspection stage.
func (s *Service) PostCensorshipQueue(ctx context.Context, q Query) (Page, error) {
	added, yes := models.StatusDocumentsAdded, true
	return s.page(ctx, store.Filter{Search: q.Search, Status: &added, Censored: &yes}, q, s.today())
}

func (s *Service) page(ctx context.Context, f store.Filter, q Query, today time.Time) (Page, error) {
	p := store.Pagination{Page: q.Page, Limit: q.Limit}.Normalize()

	txs, total, err := s.store.FindPaginated(ctx, f, p)
	if err != nil {
		return Page{}, err
	}

	rows := make([]Row, len(txs))
	for i, tx := range txs {
		rows[i] = classify(tx, today)
	}

	return Page{
		Data:     rows,
		Total:    total,
		Page:     p.Page,
		LastPage: p.LastPage(total),
	}, nil
}

func viewFilter(v models.View, today time.Time) (store.Filter, error) {
	awaiting, added := models.StatusAwaitingDocuments, models.StatusDocumentsAdded
	switch v {
	case models.ViewAwaitingDocuments:
		return store.Filter{Status: &awaiting, DeclarationFrom: &today}, nil
	case models.ViewOverdue:
		return store.Filter{Status: &awaiting, DeclarationBefore: &today}, nil
	case models.ViewDocumentsAdded:
		return store.Filter{Status: &added}, nil
	}
	return store.Filter{}, fmt.Errorf("%w: %q", models.ErrUnknownStatus, v)
}

func classify(tx models.Transaction, today time.Time) Row {
	view := tx.View(today)
	return Row{Transaction: tx, View: view, Overdue: view == models.ViewOverdue}
}
