package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Note        string          `json:"note,omitempty"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// GenerateID assigns a new UUID if the transaction has none yet.
func (t *Transaction) GenerateID() {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
}

// TransactionFilter narrows a transaction query. Zero values are ignored.
type TransactionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Ascending bool
}

// TransactionUpdate carries the fields of a partial edit. Nil means unchanged.
type TransactionUpdate struct {
	Amount      *decimal.Decimal
	Category    *Category
	Description *string
	Date        *time.Time
	Note        *string
}

// Empty reports whether the update changes nothing.
func (u TransactionUpdate) Empty() bool {
	return u.Amount == nil && u.Category == nil && u.Description == nil && u.Date == nil && u.Note == nil
}

// Apply copies the set fields of u onto t.
func (u TransactionUpdate) Apply(t *Transaction) {
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.Category != nil {
		t.Category = *u.Category
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Date != nil {
		t.Date = *u.Date
	}
	if u.Note != nil {
		t.Note = *u.Note
	}
}

// Candidate is what the categorizer extracts from a free text description.
type Candidate struct {
	Amount      decimal.Decimal
	Category    Category
	Description string
	Note        string
}
