package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidCategory = errors.New("unknown category")
	ErrInvalidDay      = errors.New("day of month must be between 1 and 31")
)

// ExpenseTracker is the ledger: users, transactions, recurring rules and
// dashboard tokens, always scoped by the internal user id.
type ExpenseTracker struct {
	repo     repository.Repository
	loc      *time.Location
	now      func() time.Time
	tokenTTL time.Duration
}

// NewExpenseTracker creates a tracker that interprets calendar dates in loc.
func NewExpenseTracker(repo repository.Repository, loc *time.Location) *ExpenseTracker {
	if loc == nil {
		loc = time.Local
	}
	return &ExpenseTracker{
		repo:     repo,
		loc:      loc,
		now:      time.Now,
		tokenTTL: DefaultTokenTTL,
	}
}

// Now is the current time in the tracker's location.
func (s *ExpenseTracker) Now() time.Time {
	return s.now().In(s.loc)
}

// Today is midnight of the current local day.
func (s *ExpenseTracker) Today() time.Time {
	return textparse.StartOfDay(s.Now())
}

// RegisterUser creates the user on first contact and refreshes the profile
// afterwards.
func (s *ExpenseTracker) RegisterUser(ctx context.Context, user model.User) (*model.User, error) {
	if err := s.repo.UpsertUser(ctx, &user); err != nil {
		return nil, fmt.Errorf("registering user %d: %w", user.TelegramID, err)
	}
	return &user, nil
}

func (s *ExpenseTracker) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.repo.GetUserByTelegramID(ctx, telegramID)
}

func (s *ExpenseTracker) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *ExpenseTracker) AddTransaction(ctx context.Context, userID string, amount decimal.Decimal, category model.Category, description string, date time.Time, note string) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	now := s.now()
	transaction := &model.Transaction{
		UserID:      userID,
		Amount:      amount.Round(2),
		Category:    category,
		Description: strings.TrimSpace(description),
		Note:        strings.TrimSpace(note),
		Date:        textparse.StartOfDay(date),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	transaction.GenerateID()

	if err := s.repo.CreateTransaction(ctx, transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

// CreateRecurringRule stores a monthly rule. Days above MaxRecurringDay are
// clamped; the returned rule carries the stored day.
func (s *ExpenseTracker) CreateRecurringRule(ctx context.Context, userID string, amount decimal.Decimal, category model.Category, description string, day int, note string) (*model.RecurringRule, error) {
	if day < 1 || day > 31 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	rule := &model.RecurringRule{
		UserID:      userID,
		Amount:      amount.Round(2),
		Category:    category,
		Description: strings.TrimSpace(description),
		Note:        strings.TrimSpace(note),
		DayOfMonth:  model.ClampDay(day),
		Active:      true,
		CreatedAt:   s.now(),
	}
	rule.GenerateID()

	if err := s.repo.CreateRecurringRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *ExpenseTracker) ListRecurringRules(ctx context.Context, userID string) ([]model.RecurringRule, error) {
	return s.repo.GetRecurringRules(ctx, userID)
}

// DeactivateRecurringRule soft deletes a rule; it stops matching DueRecurringRules.
func (s *ExpenseTracker) DeactivateRecurringRule(ctx context.Context, id, userID string) error {
	return s.repo.DeactivateRecurringRule(ctx, id, userID)
}

// DueRecurringRules lists the active rules of every user for a day of month.
func (s *ExpenseTracker) DueRecurringRules(ctx context.Context, day int) ([]model.DueRecurring, error) {
	return s.repo.GetDueRecurringRules(ctx, day)
}

// MonthRange returns the first and last calendar day of month.
func MonthRange(month time.Month, year int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, -1)
	return start, end
}

// GetMonthTransactions returns a month's transactions, newest first.
func (s *ExpenseTracker) GetMonthTransactions(ctx context.Context, userID string, month time.Month, year int) ([]model.Transaction, error) {
	start, end := MonthRange(month, year, s.loc)
	return s.repo.GetTransactions(ctx, userID, model.TransactionFilter{
		StartDate: &start,
		EndDate:   &end,
	})
}

func (s *ExpenseTracker) GetAllTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.repo.GetTransactions(ctx, userID, model.TransactionFilter{})
}

func (s *ExpenseTracker) GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	return s.repo.GetTransactions(ctx, userID, model.TransactionFilter{Limit: limit})
}

func (s *ExpenseTracker) GetTransaction(ctx context.Context, id, userID string) (*model.Transaction, error) {
	return s.repo.GetTransaction(ctx, id, userID)
}

// UpdateTransaction applies a partial edit and returns the stored result.
func (s *ExpenseTracker) UpdateTransaction(ctx context.Context, id, userID string, update model.TransactionUpdate) (*model.Transaction, error) {
	if update.Amount != nil && !update.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if update.Category != nil && !update.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, *update.Category)
	}

	transaction, err := s.repo.GetTransaction(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if update.Empty() {
		return transaction, nil
	}

	update.Apply(transaction)
	transaction.Date = textparse.StartOfDay(transaction.Date)
	transaction.UpdatedAt = s.now()

	if err := s.repo.UpdateTransaction(ctx, transaction); err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *ExpenseTracker) DeleteTransaction(ctx context.Context, id, userID string) error {
	return s.repo.DeleteTransaction(ctx, id, userID)
}
