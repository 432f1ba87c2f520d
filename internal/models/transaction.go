package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GracePeriodDays separates the declaration deadline from the additional
// (grace) deadline, and the remark delivery date from the declaration deadline.
const GracePeriodDays = 30

type Transaction struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Trref  string `gorm:"size:64;uniqueIndex;not null" json:"trref"`
	Custno string `gorm:"size:64;index;not null" json:"custno"`
	Custnm string `gorm:"size:255;not null" json:"custnm"`

	Tradate  *time.Time      `json:"tradate"`
	Currency string          `gorm:"size:8;not null" json:"currency"`
	Amount   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Bencust  string          `gorm:"size:255;not null" json:"bencust"`
	Remark   string          `gorm:"type:text" json:"remark"`
	Document string          `gorm:"type:text" json:"document"`

	ContractNumber          *string    `gorm:"size:128" json:"contract_number"`
	ExpectedDeliveryDate    *time.Time `json:"expected_delivery_date"`
	ExpectedDeclarationDate *time.Time `gorm:"index" json:"expected_declaration_date"`
	AdditionalDate          *time.Time `json:"additional_date"`

	Status          Status `gorm:"size:32;index;not null" json:"status"`
	IsDocumentAdded bool   `gorm:"not null;default:false" json:"is_document_added"`
	Censored        bool   `gorm:"not null;default:false" json:"censored"`
	PostInspection  bool   `gorm:"not null;default:false" json:"post_inspection"`

	IsSendEmail    bool `gorm:"not null;default:false;index" json:"is_send_email"`
	IsSendingEmail bool `gorm:"not null;default:false" json:"is_sending_email"`

	Note           *string `gorm:"type:text" json:"note"`
	NoteCensored   *string `gorm:"type:text" json:"note_censored"`
	NoteInspection *string `gorm:"type:text" json:"note_inspection"`

	UpdatedBy *string    `gorm:"size:255" json:"updated_by"`
	UpdatedAt *time.Time `json:"updated_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// SetDeclarationDate sets the regulatory deadline and the derived grace deadline.
func (t *Transaction) SetDeclarationDate(d *time.Time) {
	if d == nil {
		t.ExpectedDeclarationDate = nil
		t.AdditionalDate = nil
		return
	}
	t.ExpectedDeclarationDate = dayPtr(*d)
	additional := AddDays(*d, GracePeriodDays)
	t.AdditionalDate = &additional
}

// IsOverdue reports whether documents are still awaited past the deadline.
// today must be an anchored day (see Today).
func (t Transaction) IsOverdue(today time.Time) bool {
	if t.Status != StatusAwaitingDocuments || t.ExpectedDeclarationDate == nil {
		return false
	}
	return t.ExpectedDeclarationDate.Before(Day(today))
}

// View classifies the transaction as of today.
func (t Transaction) View(today time.Time) View {
	switch {
	case t.Status == StatusDocumentsAdded:
		return ViewDocumentsAdded
	case t.IsOverdue(today):
		return ViewOverdue
	default:
		return ViewAwaitingDocuments
	}
}

// ReminderPending reports whether no reminder was sent or claimed yet.
func (t Transaction) ReminderPending() bool {
	return !t.IsSendEmail && !t.IsSendingEmail
}
