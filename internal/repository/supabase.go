package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/ivanoskov/lazzyfinance/internal/model"
)

const (
	tableUsers        = "users"
	tableTransactions = "transactions"
	tableRecurring    = "recurring_transactions"
	tableTokens       = "access_tokens"
)

type SupabaseRepository struct {
	client *supabase.Client
	logger *slog.Logger
}

var _ Repository = (*SupabaseRepository)(nil)

func NewSupabaseRepository(url, key string, logger *slog.Logger) (*SupabaseRepository, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SupabaseRepository{
		client: client,
		logger: logger,
	}, nil
}

func (r *SupabaseRepository) Close() {}

// Rows mirror the table layout. Dates travel as YYYY-MM-DD strings.

type userRow struct {
	ID           string    `json:"id,omitempty"`
	TelegramID   int64     `json:"telegram_id"`
	FirstName    *string   `json:"first_name"`
	LastName     *string   `json:"last_name"`
	Username     *string   `json:"username"`
	LanguageCode *string   `json:"language_code"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	UpdatedAt    time.Time `json:"updated_at,omitzero"`
}

type transactionRow struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Note        *string         `json:"note"`
	Date        string          `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type recurringRow struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Note        *string         `json:"note"`
	DayOfMonth  int             `json:"day_of_month"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"created_at"`
	Owner       *struct {
		TelegramID int64   `json:"telegram_id"`
		FirstName  *string `json:"first_name"`
	} `json:"users,omitempty"`
}

type tokenRow struct {
	Token     string     `json:"token"`
	UserID    string     `json:"user_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (row userRow) model() model.User {
	return model.User{
		ID:           row.ID,
		TelegramID:   row.TelegramID,
		FirstName:    deref(row.FirstName),
		LastName:     deref(row.LastName),
		Username:     deref(row.Username),
		LanguageCode: deref(row.LanguageCode),
		CreatedAt:    row.CreatedAt,
	}
}

func newTransactionRow(t *model.Transaction) transactionRow {
	return transactionRow{
		ID:          t.ID,
		UserID:      t.UserID,
		Amount:      t.Amount,
		Category:    string(t.Category),
		Description: t.Description,
		Note:        nullable(t.Note),
		Date:        formatDate(t.Date),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (row transactionRow) model() (model.Transaction, error) {
	date, err := parseDate(row.Date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date of transaction %s: %w", row.ID, err)
	}
	return model.Transaction{
		ID:          row.ID,
		UserID:      row.UserID,
		Amount:      row.Amount,
		Category:    model.Category(row.Category),
		Description: row.Description,
		Note:        deref(row.Note),
		Date:        date,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (row recurringRow) model() model.RecurringRule {
	return model.RecurringRule{
		ID:          row.ID,
		UserID:      row.UserID,
		Amount:      row.Amount,
		Category:    model.Category(row.Category),
		Description: row.Description,
		Note:        deref(row.Note),
		DayOfMonth:  row.DayOfMonth,
		Active:      row.Active,
		CreatedAt:   row.CreatedAt,
	}
}

func (row tokenRow) model() model.AccessToken {
	return model.AccessToken(row)
}

func decodeRows[T any](data []byte, what string) ([]T, error) {
	var rows []T
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", what, err)
	}
	return rows, nil
}

func (r *SupabaseRepository) UpsertUser(ctx context.Context, user *model.User) error {
	row := userRow{
		TelegramID:   user.TelegramID,
		FirstName:    nullable(user.FirstName),
		LastName:     nullable(user.LastName),
		Username:     nullable(user.Username),
		LanguageCode: nullable(user.LanguageCode),
		UpdatedAt:    time.Now().UTC(),
	}

	data, _, err := r.client.From(tableUsers).
		Insert(row, true, "telegram_id", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	rows, err := decodeRows[userRow](data, "upserted user")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("upsert of user %d returned no rows", user.TelegramID)
	}
	*user = rows[0].model()
	return nil
}

func (r *SupabaseRepository) getUser(column, value string) (*model.User, error) {
	data, _, err := r.client.From(tableUsers).
		Select("*", "", false).
		Eq(column, value).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rows, err := decodeRows[userRow](data, "user")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user %s=%s: %w", column, value, ErrNotFound)
	}
	u := rows[0].model()
	return &u, nil
}

func (r *SupabaseRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return r.getUser("telegram_id", strconv.FormatInt(telegramID, 10))
}

func (r *SupabaseRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser("id", id)
}

func (r *SupabaseRepository) CreateTransaction(ctx context.Context, transaction *model.Transaction) error {
	data, _, err := r.client.From(tableTransactions).
		Insert(newTransactionRow(transaction), false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	rows, err := decodeRows[transactionRow](data, "created transaction")
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		transaction.ID = rows[0].ID
		transaction.CreatedAt = rows[0].CreatedAt
	}
	r.logger.Debug("transaction created", "id", transaction.ID, "user_id", transaction.UserID)
	return nil
}

func (r *SupabaseRepository) GetTransaction(ctx context.Context, id, userID string) (*model.Transaction, error) {
	data, _, err := r.client.From(tableTransactions).
		Select("*", "", false).
		Eq("id", id).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	rows, err := decodeRows[transactionRow](data, "transaction")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	t, err := rows[0].model()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SupabaseRepository) GetTransactions(ctx context.Context, userID string, filter model.TransactionFilter) ([]model.Transaction, error) {
	query := r.client.From(tableTransactions).
		Select("*", "", false).
		Eq("user_id", userID)

	if filter.StartDate != nil {
		query = query.Gte("date", formatDate(*filter.StartDate))
	}
	if filter.EndDate != nil {
		query = query.Lte("date", formatDate(*filter.EndDate))
	}

	query = query.
		Order("date", &postgrest.OrderOpts{Ascending: filter.Ascending}).
		Order("created_at", &postgrest.OrderOpts{Ascending: filter.Ascending})

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit, "")
	}

	data, _, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}

	rows, err := decodeRows[transactionRow](data, "transactions")
	if err != nil {
		return nil, err
	}

	transactions := make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := row.model()
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, nil
}

func (r *SupabaseRepository) UpdateTransaction(ctx context.Context, transaction *model.Transaction) error {
	update := map[string]any{
		"amount":      transaction.Amount,
		"category":    string(transaction.Category),
		"description": transaction.Description,
		"note":        nullable(transaction.Note),
		"date":        formatDate(transaction.Date),
		"updated_at":  transaction.UpdatedAt,
	}

	data, _, err := r.client.From(tableTransactions).
		Update(update, "representation", "").
		Eq("id", transaction.ID).
		Eq("user_id", transaction.UserID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rows, err := decodeRows[transactionRow](data, "updated transaction")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("transaction %s: %w", transaction.ID, ErrNotFound)
	}
	return nil
}

func (r *SupabaseRepository) DeleteTransaction(ctx context.Context, id, userID string) error {
	data, _, err := r.client.From(tableTransactions).
		Delete("representation", "").
		Eq("id", id).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rows, err := decodeRows[transactionRow](data, "deleted transaction")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SupabaseRepository) CreateRecurringRule(ctx context.Context, rule *model.RecurringRule) error {
	row := recurringRow{
		ID:          rule.ID,
		UserID:      rule.UserID,
		Amount:      rule.Amount,
		Category:    string(rule.Category),
		Description: rule.Description,
		Note:        nullable(rule.Note),
		DayOfMonth:  rule.DayOfMonth,
		Active:      rule.Active,
		CreatedAt:   rule.CreatedAt,
	}

	data, _, err := r.client.From(tableRecurring).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to create recurring rule: %w", err)
	}

	rows, err := decodeRows[recurringRow](data, "created recurring rule")
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		rule.ID = rows[0].ID
		rule.CreatedAt = rows[0].CreatedAt
	}
	return nil
}

func (r *SupabaseRepository) GetRecurringRules(ctx context.Context, userID string) ([]model.RecurringRule, error) {
	data, _, err := r.client.From(tableRecurring).
		Select("*", "", false).
		Eq("user_id", userID).
		Eq("active", "true").
		Order("day_of_month", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get recurring rules: %w", err)
	}

	rows, err := decodeRows[recurringRow](data, "recurring rules")
	if err != nil {
		return nil, err
	}

	rules := make([]model.RecurringRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, row.model())
	}
	return rules, nil
}

func (r *SupabaseRepository) DeactivateRecurringRule(ctx context.Context, id, userID string) error {
	data, _, err := r.client.From(tableRecurring).
		Update(map[string]any{"active": false}, "representation", "").
		Eq("id", id).
		Eq("user_id", userID).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to deactivate recurring rule: %w", err)
	}

	rows, err := decodeRows[recurringRow](data, "deactivated recurring rule")
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("recurring rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SupabaseRepository) GetDueRecurringRules(ctx context.Context, day int) ([]model.DueRecurring, error) {
	data, _, err := r.client.From(tableRecurring).
		Select("*, users(telegram_id, first_name)", "", false).
		Eq("day_of_month", strconv.Itoa(day)).
		Eq("active", "true").
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get due recurring rules: %w", err)
	}

	rows, err := decodeRows[recurringRow](data, "due recurring rules")
	if err != nil {
		return nil, err
	}

	due := make([]model.DueRecurring, 0, len(rows))
	for _, row := range rows {
		if row.Owner == nil {
			r.logger.Warn("recurring rule without owner", "rule_id", row.ID)
			continue
		}
		due = append(due, model.DueRecurring{
			Rule:      row.model(),
			ChatID:    row.Owner.TelegramID,
			FirstName: deref(row.Owner.FirstName),
		})
	}
	return due, nil
}

func (r *SupabaseRepository) CreateAccessToken(ctx context.Context, token *model.AccessToken) error {
	_, _, err := r.client.From(tableTokens).
		Insert(tokenRow(*token), false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to create access token: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) GetAccessToken(ctx context.Context, token string) (*model.AccessToken, error) {
	data, _, err := r.client.From(tableTokens).
		Select("*", "", false).
		Eq("token", token).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	rows, err := decodeRows[tokenRow](data, "access token")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("access token: %w", ErrNotFound)
	}
	t := rows[0].model()
	return &t, nil
}

func (r *SupabaseRepository) GetActiveAccessToken(ctx context.Context, userID string, now time.Time) (*model.AccessToken, error) {
	data, _, err := r.client.From(tableTokens).
		Select("*", "", false).
		Eq("user_id", userID).
		Gt("expires_at", now.UTC().Format(time.RFC3339)).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get active access token: %w", err)
	}

	rows, err := decodeRows[tokenRow](data, "access token")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("active access token for %s: %w", userID, ErrNotFound)
	}
	t := rows[0].model()
	return &t, nil
}

func (r *SupabaseRepository) TouchAccessToken(ctx context.Context, token string, usedAt time.Time) error {
	_, _, err := r.client.From(tableTokens).
		Update(map[string]any{"used_at": usedAt.UTC()}, "minimal", "").
		Eq("token", token).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to touch access token: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) DeleteAccessToken(ctx context.Context, token string) error {
	_, _, err := r.client.From(tableTokens).
		Delete("minimal", "").
		Eq("token", token).
		Execute()
	if err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error) {
	_, count, err := r.client.From(tableTokens).
		Delete("minimal", "exact").
		Lt("expires_at", now.UTC().Format(time.RFC3339)).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired access tokens: %w", err)
	}
	return count, nil
}
