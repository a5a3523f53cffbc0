package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ivanoskov/lazzyfinance/internal/model"
)

// ErrNotFound is returned when a record does not exist or belongs to another
// user.
var ErrNotFound = errors.New("not found")

// Repository is the ledger storage. Every user scoped call filters by the
// internal user id.
type Repository interface {
	// Users
	UpsertUser(ctx context.Context, user *model.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	// Transactions
	CreateTransaction(ctx context.Context, transaction *model.Transaction) error
	GetTransaction(ctx context.Context, id, userID string) (*model.Transaction, error)
	GetTransactions(ctx context.Context, userID string, filter model.TransactionFilter) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, transaction *model.Transaction) error
	DeleteTransaction(ctx context.Context, id, userID string) error

	// Recurring rules
	CreateRecurringRule(ctx context.Context, rule *model.RecurringRule) error
	GetRecurringRules(ctx context.Context, userID string) ([]model.RecurringRule, error)
	DeactivateRecurringRule(ctx context.Context, id, userID string) error
	GetDueRecurringRules(ctx context.Context, day int) ([]model.DueRecurring, error)

	// Dashboard access tokens
	CreateAccessToken(ctx context.Context, token *model.AccessToken) error
	GetAccessToken(ctx context.Context, token string) (*model.AccessToken, error)
	GetActiveAccessToken(ctx context.Context, userID string, now time.Time) (*model.AccessToken, error)
	TouchAccessToken(ctx context.Context, token string, usedAt time.Time) error
	DeleteAccessToken(ctx context.Context, token string) error
	DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error)

	Close()
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}
