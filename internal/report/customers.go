package report

import (
	"context"

	"tradedoc/internal/models"
	"tradedoc/internal/store"
)

type CustomerQuery struct {
	Page   int
	Limit  int
	Search string
	// Sent selects customers by the reminder state of their transactions.
	Sent bool
}

type CustomerPage struct {
	Data     []models.Customer `json:"data"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	LastPage int               `json:"lastPage"`
}

// CustomersWithTransactions lists customers owning at least one transaction in
// the requested reminder state, each with those transactions attached.
func (s *Service) CustomersWithTransactions(ctx context.Context, q CustomerQuery) (CustomerPage, error) {
	p := store.Pagination{Page: q.Page, Limit: q.Limit}.Normalize()

	customers, total, err := s.store.CustomersWithReminderState(ctx, q.Sent, q.Search, p)
	if err != nil {
		return CustomerPage{}, err
	}

	if len(customers) > 0 {
		custnos := make([]string, len(customers))
		for i, c := range customers {
			custnos[i] = c.Custno
		}
		sent := q.Sent
		txs, err := s.store.FindAll(ctx, store.Filter{SendEmail: &sent, Custnos: custnos})
		if err != nil {
			return CustomerPage{}, err
		}

		byCustomer := make(map[string][]models.Transaction, len(customers))
		for _, tx := range txs {
			byCustomer[tx.Custno] = append(byCustomer[tx.Custno], tx)
		}
		for i := range customers {
			customers[i].Transactions = byCustomer[customers[i].Custno]
		}
	}

	return CustomerPage{
		Data:     customers,
		Total:    total,
		Page:     p.Page,
		LastPage: p.LastPage(total),
	}, nil
}
