// Package web serves the JSON API behind the LazzyFinance dashboard. Every
// /api route is authenticated with the access token handed out by /site.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/service"
)

// Ledger is what the dashboard reads and edits.
type Ledger interface {
	Now() time.Time

	ValidateToken(ctx context.Context, token string) (*model.User, error)
	PurgeExpiredTokens(ctx context.Context) (int64, error)

	GetMonthTransactions(ctx context.Context, userID string, month time.Month, year int) ([]model.Transaction, error)
	GetAllTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
	GetMonthlyReport(ctx context.Context, userID string, month time.Month, year int) (*service.MonthlyReport, error)
	UpdateTransaction(ctx context.Context, id, userID string, update model.TransactionUpdate) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, id, userID string) error
	ListRecurringRules(ctx context.Context, userID string) ([]model.RecurringRule, error)
}

const shutdownTimeout = 10 * time.Second

type Server struct {
	ledger  Ledger
	origins map[string]struct{}
	logger  *slog.Logger
	handler http.Handler
}

func NewServer(ledger Ledger, allowedOrigins []string, logger *slog.Logger) *Server {
	s := &Server{
		ledger:  ledger,
		origins: make(map[string]struct{}, len(allowedOrigins)),
		logger:  logger,
	}
	for _, o := range allowedOrigins {
		s.origins[o] = struct{}{}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /api/auth/validate", s.authenticated(s.handleValidate))
	mux.Handle("GET /api/transactions", s.authenticated(s.handleMonthTransactions))
	mux.Handle("GET /api/transactions/all", s.authenticated(s.handleAllTransactions))
	mux.Handle("PUT /api/transactions/{id}", s.authenticated(s.handleUpdateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.authenticated(s.handleDeleteTransaction))
	mux.Handle("GET /api/stats", s.authenticated(s.handleStats))
	mux.Handle("GET /api/recurring", s.authenticated(s.handleRecurring))

	s.handler = s.cors(s.logRequests(mux))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	s.logger.Info("web server stopped")
	return nil
}

// RunTokenPurge deletes expired access tokens now and then every interval
// until ctx is cancelled.
func (s *Server) RunTokenPurge(ctx context.Context, interval time.Duration) {
	purge := func() {
		n, err := s.ledger.PurgeExpiredTokens(ctx)
		if err != nil {
			s.logger.Warn("purging expired tokens failed", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("expired tokens purged", "count", n)
		}
	}

	purge()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if _, ok := s.origins[origin]; ok {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

type userKey struct{}

// authenticated resolves the bearer token, or the token query parameter,
// and hands the owner to h.
func (s *Server) authenticated(h func(w http.ResponseWriter, r *http.Request, user *model.User)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Token não fornecido")
			return
		}

		user, err := s.ledger.ValidateToken(r.Context(), token)
		switch {
		case errors.Is(err, service.ErrInvalidToken), errors.Is(err, service.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "Token inválido ou expirado")
			return
		case err != nil:
			s.logger.Error("token validation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
			return
		}

		h(w, r, user)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// monthQuery reads mes and ano, defaulting to the current month.
func (s *Server) monthQuery(r *http.Request) (time.Month, int, bool) {
	now := s.ledger.Now()
	month, year := now.Month(), now.Year()

	if v := r.URL.Query().Get("mes"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, false
		}
		month = time.Month(m)
	}
	if v := r.URL.Query().Get("ano"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return 0, 0, false
		}
		year = y
	}
	return month, year, true
}
