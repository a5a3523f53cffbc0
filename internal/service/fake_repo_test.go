package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
)

// memoryRepo is an in-memory repository.Repository for service tests.
type memoryRepo struct {
	mu           sync.Mutex
	users        map[string]model.User
	transactions map[string]model.Transaction
	rules        map[string]model.RecurringRule
	tokens       map[string]model.AccessToken

	failWrites error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		users:        make(map[string]model.User),
		transactions: make(map[string]model.Transaction),
		rules:        make(map[string]model.RecurringRule),
		tokens:       make(map[string]model.AccessToken),
	}
}

var _ repository.Repository = (*memoryRepo)(nil)

func (r *memoryRepo) UpsertUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.users {
		if existing.TelegramID == user.TelegramID {
			user.ID = id
			user.CreatedAt = existing.CreatedAt
			r.users[id] = *user
			return nil
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *memoryRepo) GetUserByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.TelegramID == telegramID {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *memoryRepo) CreateTransaction(_ context.Context, t *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	r.transactions[t.ID] = *t
	return nil
}

func (r *memoryRepo) GetTransaction(_ context.Context, id, userID string) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *memoryRepo) GetTransactions(_ context.Context, userID string, filter model.TransactionFilter) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Transaction
	for _, t := range r.transactions {
		if t.UserID != userID {
			continue
		}
		if filter.StartDate != nil && t.Date.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && t.Date.After(*filter.EndDate) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.Ascending {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Date.After(out[j].Date)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryRepo) UpdateTransaction(_ context.Context, t *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.transactions[t.ID]
	if !ok || existing.UserID != t.UserID {
		return repository.ErrNotFound
	}
	r.transactions[t.ID] = *t
	return nil
}

func (r *memoryRepo) DeleteTransaction(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.transactions, id)
	return nil
}

func (r *memoryRepo) CreateRecurringRule(_ context.Context, rule *model.RecurringRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	r.rules[rule.ID] = *rule
	return nil
}

func (r *memoryRepo) GetRecurringRules(_ context.Context, userID string) ([]model.RecurringRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.RecurringRule
	for _, rule := range r.rules {
		if rule.UserID == userID && rule.Active {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DayOfMonth < out[j].DayOfMonth })
	return out, nil
}

func (r *memoryRepo) DeactivateRecurringRule(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[id]
	if !ok || rule.UserID != userID || !rule.Active {
		return repository.ErrNotFound
	}
	rule.Active = false
	r.rules[id] = rule
	return nil
}

func (r *memoryRepo) GetDueRecurringRules(_ context.Context, day int) ([]model.DueRecurring, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.DueRecurring
	for _, rule := range r.rules {
		if !rule.Active || rule.DayOfMonth != day {
			continue
		}
		owner := r.users[rule.UserID]
		out = append(out, model.DueRecurring{Rule: rule, ChatID: owner.TelegramID, FirstName: owner.FirstName})
	}
	return out, nil
}

func (r *memoryRepo) CreateAccessToken(_ context.Context, token *model.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.Token] = *token
	return nil
}

func (r *memoryRepo) GetAccessToken(_ context.Context, token string) (*model.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r *memoryRepo) GetActiveAccessToken(_ context.Context, userID string, now time.Time) (*model.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.AccessToken
	for _, t := range r.tokens {
		if t.UserID != userID || t.Expired(now) {
			continue
		}
		if best == nil || t.CreatedAt.After(best.CreatedAt) {
			best = &t
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (r *memoryRepo) TouchAccessToken(_ context.Context, token string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return repository.ErrNotFound
	}
	t.UsedAt = &usedAt
	r.tokens[token] = t
	return nil
}

func (r *memoryRepo) DeleteAccessToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token]; !ok {
		return repository.ErrNotFound
	}
	delete(r.tokens, token)
	return nil
}

func (r *memoryRepo) DeleteExpiredAccessTokens(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.tokens {
		if t.Expired(now) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) Close() {}

var errBoom = errors.New("boom")
