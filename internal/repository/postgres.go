package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/model"
)

// SchemaSQL creates every table the bot uses. It is idempotent and is also
// what should be applied to a Supabase project.
//
//go:embed schema.sql
var SchemaSQL string

type PostgresConfig struct {
	URL         string
	MaxPoolSize int
}

// PostgresRepository talks to PostgreSQL directly through a pgx pool.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to PostgreSQL", "host", poolConfig.ConnConfig.Host, "database", poolConfig.ConnConfig.Database)

	return &PostgresRepository{pool: pool, logger: logger}, nil
}

// Migrate applies SchemaSQL.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	r.logger.Info("running database migrations")
	if _, err := r.pool.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("executing migration: %w", err)
	}
	r.logger.Info("migrations completed successfully")
	return nil
}

func (r *PostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
		r.logger.Info("closed PostgreSQL connection pool")
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

const userColumns = `id::text, telegram_id, COALESCE(first_name, ''), COALESCE(last_name, ''),
	COALESCE(username, ''), COALESCE(language_code, ''), created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.TelegramID, &u.FirstName, &u.LastName, &u.Username, &u.LanguageCode, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresRepository) UpsertUser(ctx context.Context, user *model.User) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (telegram_id, first_name, last_name, username, language_code)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (telegram_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			language_code = EXCLUDED.language_code,
			updated_at = NOW()
		RETURNING `+userColumns,
		user.TelegramID, user.FirstName, user.LastName, user.Username, user.LanguageCode,
	)

	u, err := scanUser(row)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	*user = *u
	return nil
}

func (r *PostgresRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("user telegram_id=%d", telegramID))
	}
	return u, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id))
	if err != nil {
		return nil, notFound(err, "user "+id)
	}
	return u, nil
}

const transactionColumns = `id::text, user_id::text, amount::text, category, description,
	COALESCE(note, ''), date, created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var (
		t        model.Transaction
		amount   string
		category string
	)
	if err := row.Scan(&t.ID, &t.UserID, &amount, &category, &t.Description, &t.Note, &t.Date, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	t.Amount = d
	t.Category = model.Category(category)
	return &t, nil
}

func (r *PostgresRepository) CreateTransaction(ctx context.Context, transaction *model.Transaction) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO transactions (id, user_id, amount, category, description, note, date, created_at, updated_at)
		VALUES ($1::uuid, $2::uuid, $3::numeric, $4, $5, NULLIF($6, ''), $7::date, $8, $8)
		RETURNING created_at`,
		transaction.ID, transaction.UserID, transaction.Amount.String(), string(transaction.Category),
		transaction.Description, transaction.Note, formatDate(transaction.Date), transaction.CreatedAt,
	).Scan(&transaction.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetTransaction(ctx context.Context, id, userID string) (*model.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1::uuid AND user_id = $2::uuid`, id, userID))
	if err != nil {
		return nil, notFound(err, "transaction "+id)
	}
	return t, nil
}

func (r *PostgresRepository) GetTransactions(ctx context.Context, userID string, filter model.TransactionFilter) ([]model.Transaction, error) {
	args := []any{userID}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1::uuid`

	if filter.StartDate != nil {
		args = append(args, formatDate(*filter.StartDate))
		query += fmt.Sprintf(" AND date >= $%d::date", len(args))
	}
	if filter.EndDate != nil {
		args = append(args, formatDate(*filter.EndDate))
		query += fmt.Sprintf(" AND date <= $%d::date", len(args))
	}

	if filter.Ascending {
		query += " ORDER BY date ASC, created_at ASC"
	} else {
		query += " ORDER BY date DESC, created_at DESC"
	}
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return transactions, nil
}

func (r *PostgresRepository) UpdateTransaction(ctx context.Context, transaction *model.Transaction) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE transactions SET
			amount = $3::numeric,
			category = $4,
			description = $5,
			note = NULLIF($6, ''),
			date = $7::date,
			updated_at = NOW()
		WHERE id = $1::uuid AND user_id = $2::uuid`,
		transaction.ID, transaction.UserID, transaction.Amount.String(), string(transaction.Category),
		transaction.Description, transaction.Note, formatDate(transaction.Date),
	)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", transaction.ID, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) DeleteTransaction(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1::uuid AND user_id = $2::uuid`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

const recurringColumns = `r.id::text, r.user_id::text, r.amount::text, r.category, r.description,
	COALESCE(r.note, ''), r.day_of_month, r.active, r.created_at`

func scanRecurring(row pgx.Row, extra ...any) (*model.RecurringRule, error) {
	var (
		rule     model.RecurringRule
		amount   string
		category string
	)
	dest := append([]any{&rule.ID, &rule.UserID, &amount, &category, &rule.Description, &rule.Note, &rule.DayOfMonth, &rule.Active, &rule.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	rule.Amount = d
	rule.Category = model.Category(category)
	return &rule, nil
}

func (r *PostgresRepository) CreateRecurringRule(ctx context.Context, rule *model.RecurringRule) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO recurring_transactions (id, user_id, amount, category, description, note, day_of_month, active, created_at)
		VALUES ($1::uuid, $2::uuid, $3::numeric, $4, $5, NULLIF($6, ''), $7, $8, $9)
		RETURNING created_at`,
		rule.ID, rule.UserID, rule.Amount.String(), string(rule.Category),
		rule.Description, rule.Note, rule.DayOfMonth, rule.Active, rule.CreatedAt,
	).Scan(&rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting recurring rule: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetRecurringRules(ctx context.Context, userID string) ([]model.RecurringRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recurringColumns+`
		FROM recurring_transactions r
		WHERE r.user_id = $1::uuid AND r.active
		ORDER BY r.day_of_month ASC, r.created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying recurring rules: %w", err)
	}
	defer rows.Close()

	var rules []model.RecurringRule
	for rows.Next() {
		rule, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning recurring rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recurring rules: %w", err)
	}
	return rules, nil
}

func (r *PostgresRepository) DeactivateRecurringRule(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE recurring_transactions SET active = FALSE WHERE id = $1::uuid AND user_id = $2::uuid`, id, userID)
	if err != nil {
		return fmt.Errorf("deactivating recurring rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recurring rule %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) GetDueRecurringRules(ctx context.Context, day int) ([]model.DueRecurring, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+recurringColumns+`, u.telegram_id, COALESCE(u.first_name, '')
		FROM recurring_transactions r
		JOIN users u ON u.id = r.user_id
		WHERE r.day_of_month = $1 AND r.active
		ORDER BY r.created_at ASC`, day)
	if err != nil {
		return nil, fmt.Errorf("querying due recurring rules: %w", err)
	}
	defer rows.Close()

	var due []model.DueRecurring
	for rows.Next() {
		var d model.DueRecurring
		rule, err := scanRecurring(rows, &d.ChatID, &d.FirstName)
		if err != nil {
			return nil, fmt.Errorf("scanning due recurring rule: %w", err)
		}
		d.Rule = *rule
		due = append(due, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating due recurring rules: %w", err)
	}
	return due, nil
}

const tokenColumns = `token, user_id::text, expires_at, used_at, created_at`

func scanToken(row pgx.Row) (*model.AccessToken, error) {
	var t model.AccessToken
	if err := row.Scan(&t.Token, &t.UserID, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresRepository) CreateAccessToken(ctx context.Context, token *model.AccessToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO access_tokens (token, user_id, expires_at, created_at) VALUES ($1, $2::uuid, $3, $4)`,
		token.Token, token.UserID, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting access token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAccessToken(ctx context.Context, token string) (*model.AccessToken, error) {
	t, err := scanToken(r.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM access_tokens WHERE token = $1`, token))
	if err != nil {
		return nil, notFound(err, "access token")
	}
	return t, nil
}

func (r *PostgresRepository) GetActiveAccessToken(ctx context.Context, userID string, now time.Time) (*model.AccessToken, error) {
	t, err := scanToken(r.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+` FROM access_tokens
		WHERE user_id = $1::uuid AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`, userID, now))
	if err != nil {
		return nil, notFound(err, "active access token for "+userID)
	}
	return t, nil
}

func (r *PostgresRepository) TouchAccessToken(ctx context.Context, token string, usedAt time.Time) error {
	if _, err := r.pool.Exec(ctx, `UPDATE access_tokens SET used_at = $2 WHERE token = $1`, token, usedAt); err != nil {
		return fmt.Errorf("touching access token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAccessToken(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM access_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("deleting access token: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired access tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
