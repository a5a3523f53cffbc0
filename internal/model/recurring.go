package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxRecurringDay is the last day of month a recurring rule may target, so
// that every rule fires in February too.
const MaxRecurringDay = 28

// RecurringRule is a monthly fixed expense template.
type RecurringRule struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	Description string          `json:"description"`
	Note        string          `json:"note,omitempty"`
	DayOfMonth  int             `json:"day_of_month"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (r *RecurringRule) GenerateID() {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
}

// DueRecurring is a rule matched by the daily reminder together with the
// owner's Telegram identity.
type DueRecurring struct {
	Rule      RecurringRule
	ChatID    int64
	FirstName string
}

// ClampDay limits a requested day of month to MaxRecurringDay.
func ClampDay(day int) int {
	return min(day, MaxRecurringDay)
}
