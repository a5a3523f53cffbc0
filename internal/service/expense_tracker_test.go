package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
)

var saoPaulo = time.FixedZone("BRT", -3*60*60)

func newTestTracker(t *testing.T, now time.Time) (*ExpenseTracker, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	tracker := NewExpenseTracker(repo, saoPaulo)
	tracker.now = func() time.Time { return now }
	return tracker, repo
}

func registerAna(t *testing.T, tracker *ExpenseTracker) *model.User {
	t.Helper()
	user, err := tracker.RegisterUser(context.Background(), model.User{TelegramID: 42, FirstName: "Ana"})
	require.NoError(t, err)
	return user
}

func TestRegisterUser_Idempotent(t *testing.T) {
	tracker, _ := newTestTracker(t, time.Now())
	ctx := context.Background()

	first := registerAna(t, tracker)
	second, err := tracker.RegisterUser(ctx, model.User{TelegramID: 42, FirstName: "Ana Maria"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := tracker.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.FirstName)

	_, err = tracker.GetUser(ctx, 7)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAddTransaction(t *testing.T) {
	now := time.Date(2025, time.March, 10, 15, 30, 0, 0, saoPaulo)
	tracker, repo := newTestTracker(t, now)
	user := registerAna(t, tracker)

	tx, err := tracker.AddTransaction(context.Background(), user.ID, decimal.RequireFromString("45.905"), model.CategoryFood, "  almoço ", now, "")
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "45.91", tx.Amount.StringFixed(2))
	assert.Equal(t, "almoço", tx.Description)
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, saoPaulo), tx.Date)
	assert.Len(t, repo.transactions, 1)
}

func TestAddTransaction_Validation(t *testing.T) {
	tracker, repo := newTestTracker(t, time.Now())
	ctx := context.Background()

	_, err := tracker.AddTransaction(ctx, "u", decimal.Zero, model.CategoryFood, "x", time.Now(), "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = tracker.AddTransaction(ctx, "u", decimal.NewFromInt(10), model.Category("COMPRAS"), "x", time.Now(), "")
	assert.ErrorIs(t, err, ErrInvalidCategory)

	assert.Empty(t, repo.transactions)
}

func TestCreateRecurringRule_ClampsDay(t *testing.T) {
	tracker, _ := newTestTracker(t, time.Now())
	user := registerAna(t, tracker)
	ctx := context.Background()

	tests := []struct {
		day     int
		want    int
		wantErr bool
	}{
		{day: 1, want: 1},
		{day: 28, want: 28},
		{day: 30, want: 28},
		{day: 31, want: 28},
		{day: 0, wantErr: true},
		{day: 32, wantErr: true},
	}

	for _, tt := range tests {
		rule, err := tracker.CreateRecurringRule(ctx, user.ID, decimal.NewFromInt(100), model.CategoryHousing, "aluguel", tt.day, "")
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidDay, "day %d", tt.day)
			continue
		}
		require.NoError(t, err, "day %d", tt.day)
		assert.Equal(t, tt.want, rule.DayOfMonth)
		assert.True(t, rule.Active)
	}
}

func TestRecurringRules_DueAndDeactivate(t *testing.T) {
	tracker, _ := newTestTracker(t, time.Now())
	user := registerAna(t, tracker)
	ctx := context.Background()

	rent, err := tracker.CreateRecurringRule(ctx, user.ID, decimal.NewFromInt(1500), model.CategoryHousing, "aluguel", 5, "")
	require.NoError(t, err)
	_, err = tracker.CreateRecurringRule(ctx, user.ID, decimal.NewFromInt(40), model.CategoryLeisure, "streaming", 12, "")
	require.NoError(t, err)

	due, err := tracker.DueRecurringRules(ctx, 5)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(42), due[0].ChatID)
	assert.Equal(t, "Ana", due[0].FirstName)

	require.NoError(t, tracker.DeactivateRecurringRule(ctx, rent.ID, user.ID))
	due, err = tracker.DueRecurringRules(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, due)

	rules, err := tracker.ListRecurringRules(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "streaming", rules[0].Description)

	assert.ErrorIs(t, tracker.DeactivateRecurringRule(ctx, rent.ID, "someone-else"), repository.ErrNotFound)
}

func TestGetMonthTransactions(t *testing.T) {
	now := time.Date(2025, time.February, 20, 12, 0, 0, 0, saoPaulo)
	tracker, _ := newTestTracker(t, now)
	user := registerAna(t, tracker)
	ctx := context.Background()

	for _, d := range []time.Time{
		time.Date(2025, time.January, 31, 0, 0, 0, 0, saoPaulo),
		time.Date(2025, time.February, 1, 0, 0, 0, 0, saoPaulo),
		time.Date(2025, time.February, 28, 0, 0, 0, 0, saoPaulo),
		time.Date(2025, time.March, 1, 0, 0, 0, 0, saoPaulo),
	} {
		_, err := tracker.AddTransaction(ctx, user.ID, decimal.NewFromInt(10), model.CategoryFood, "x", d, "")
		require.NoError(t, err)
	}

	list, err := tracker.GetMonthTransactions(ctx, user.ID, time.February, 2025)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 28, list[0].Date.Day())
	assert.Equal(t, 1, list[1].Date.Day())

	all, err := tracker.GetAllTransactions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	recent, err := tracker.GetRecentTransactions(ctx, user.ID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, time.March, recent[0].Date.Month())
}

func TestMonthRange(t *testing.T) {
	start, end := MonthRange(time.February, 2024, time.UTC)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), end)

	_, end = MonthRange(time.December, 2025, time.UTC)
	assert.Equal(t, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestUpdateTransaction(t *testing.T) {
	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, saoPaulo)
	tracker, _ := newTestTracker(t, now)
	user := registerAna(t, tracker)
	ctx := context.Background()

	tx, err := tracker.AddTransaction(ctx, user.ID, decimal.NewFromInt(30), model.CategoryFood, "uber", now, "")
	require.NoError(t, err)

	later := now.Add(time.Hour)
	tracker.now = func() time.Time { return later }

	category := model.CategoryTransport
	note := "corrida"
	updated, err := tracker.UpdateTransaction(ctx, tx.ID, user.ID, model.TransactionUpdate{Category: &category, Note: &note})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryTransport, updated.Category)
	assert.Equal(t, "corrida", updated.Note)
	assert.Equal(t, "uber", updated.Description)
	assert.Equal(t, later, updated.UpdatedAt)

	bad := model.Category("NADA")
	_, err = tracker.UpdateTransaction(ctx, tx.ID, user.ID, model.TransactionUpdate{Category: &bad})
	assert.ErrorIs(t, err, ErrInvalidCategory)

	negative := decimal.NewFromInt(-5)
	_, err = tracker.UpdateTransaction(ctx, tx.ID, user.ID, model.TransactionUpdate{Amount: &negative})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = tracker.UpdateTransaction(ctx, tx.ID, "intruder", model.TransactionUpdate{Note: &note})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteTransaction(t *testing.T) {
	tracker, repo := newTestTracker(t, time.Now())
	user := registerAna(t, tracker)
	ctx := context.Background()

	tx, err := tracker.AddTransaction(ctx, user.ID, decimal.NewFromInt(30), model.CategoryFood, "pizza", time.Now(), "")
	require.NoError(t, err)

	assert.ErrorIs(t, tracker.DeleteTransaction(ctx, tx.ID, "intruder"), repository.ErrNotFound)
	require.NoError(t, tracker.DeleteTransaction(ctx, tx.ID, user.ID))
	assert.Empty(t, repo.transactions)
}

func TestAddTransaction_RepositoryError(t *testing.T) {
	tracker, repo := newTestTracker(t, time.Now())
	repo.failWrites = errBoom

	_, err := tracker.AddTransaction(context.Background(), "u", decimal.NewFromInt(1), model.CategoryFood, "x", time.Now(), "")
	assert.ErrorIs(t, err, errBoom)
}

func TestToday(t *testing.T) {
	utcNow := time.Date(2025, time.March, 10, 2, 0, 0, 0, time.UTC)
	tracker, _ := newTestTracker(t, utcNow)

	today := tracker.Today()
	assert.Equal(t, 9, today.Day())
	assert.Equal(t, 0, today.Hour())
	assert.Equal(t, saoPaulo, today.Location())
}
