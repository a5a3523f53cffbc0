package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
)

// DefaultTokenTTL is how long a dashboard link stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token expired")
)

// IssueToken returns the user's newest valid token, or a fresh one.
func (s *ExpenseTracker) IssueToken(ctx context.Context, userID string) (*model.AccessToken, error) {
	now := s.now()

	existing, err := s.repo.GetActiveAccessToken(ctx, userID, now)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("looking up access token: %w", err)
	}

	token := &model.AccessToken{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.tokenTTL),
		CreatedAt: now,
	}
	if err := s.repo.CreateAccessToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// ValidateToken resolves a token to its user. Expired tokens are removed.
func (s *ExpenseTracker) ValidateToken(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	access, err := s.repo.GetAccessToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("looking up access token: %w", err)
	}

	now := s.now()
	if access.Expired(now) {
		if err := s.repo.DeleteAccessToken(ctx, token); err != nil {
			return nil, fmt.Errorf("removing expired token: %w", err)
		}
		return nil, ErrTokenExpired
	}

	if err := s.repo.TouchAccessToken(ctx, token, now); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, access.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	return user, err
}

// RevokeToken deletes a token.
func (s *ExpenseTracker) RevokeToken(ctx context.Context, token string) error {
	return s.repo.DeleteAccessToken(ctx, token)
}

// PurgeExpiredTokens deletes every expired token and reports how many.
func (s *ExpenseTracker) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredAccessTokens(ctx, s.now())
}
