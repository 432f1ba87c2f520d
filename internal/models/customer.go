package models

import "time"

type Customer struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Custno        string    `gorm:"size:64;uniqueIndex;not null" json:"custno"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Email         string    `gorm:"size:255" json:"email"`
	ContactPerson *string   `gorm:"size:255" json:"contact_person"`
	PhoneNumber   *string   `gorm:"size:20" json:"phone_number"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Transactions []Transaction `gorm:"-" json:"transactions,omitempty"`
}

// SenderConfig is the mailbox reminder emails are sent from.
type SenderConfig struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"size:255" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
