package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/export"
	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/pending"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
	"github.com/ivanoskov/lazzyfinance/internal/service"
)

var errLedger = errors.New("ledger unavailable")

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
	// errs are returned, in order, by the next Send calls.
	errs []error
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return tgbotapi.Message{}, err
		}
	}
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

// texts returns the text of every plain message sent to chatID.
func (s *fakeSender) texts(chatID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (s *fakeSender) last(chatID int64) string {
	texts := s.texts(chatID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (s *fakeSender) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeCategorizer struct {
	mu        sync.Mutex
	candidate *model.Candidate
	err       error
	calls     []string
}

func (c *fakeCategorizer) Categorize(_ context.Context, text string) (*model.Candidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, text)
	if c.err != nil {
		return nil, c.err
	}
	if c.candidate == nil {
		return nil, errors.New("not categorized")
	}
	cp := *c.candidate
	return &cp, nil
}

type fakeTracker struct {
	mu  sync.Mutex
	now time.Time

	users        map[int64]*model.User
	transactions []model.Transaction
	rules        []model.RecurringRule
	due          []model.DueRecurring

	addErr  error
	ruleErr error
	dueErr  error

	addCalls  int
	ruleCalls int
	token     *model.AccessToken
}

func newFakeTracker(now time.Time) *fakeTracker {
	return &fakeTracker{now: now, users: make(map[int64]*model.User)}
}

func (t *fakeTracker) Now() time.Time { return t.now }

func (t *fakeTracker) Today() time.Time {
	return time.Date(t.now.Year(), t.now.Month(), t.now.Day(), 0, 0, 0, 0, t.now.Location())
}

func (t *fakeTracker) RegisterUser(_ context.Context, user model.User) (*model.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.users[user.TelegramID]; ok {
		user.ID = existing.ID
	} else {
		user.ID = "user-" + uuid.NewString()[:8]
	}
	t.users[user.TelegramID] = &user
	return &user, nil
}

func (t *fakeTracker) GetUser(_ context.Context, telegramID int64) (*model.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[telegramID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (t *fakeTracker) AddTransaction(_ context.Context, userID string, amount decimal.Decimal, category model.Category, description string, date time.Time, note string) (*model.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addCalls++
	if t.addErr != nil {
		return nil, t.addErr
	}
	tx := model.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Description: description,
		Date:        date,
		Note:        note,
		CreatedAt:   t.now,
		UpdatedAt:   t.now,
	}
	t.transactions = append(t.transactions, tx)
	return &tx, nil
}

func (t *fakeTracker) GetRecentTransactions(_ context.Context, userID string, limit int) ([]model.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.Transaction
	for i := len(t.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if t.transactions[i].UserID == userID {
			out = append(out, t.transactions[i])
		}
	}
	return out, nil
}

func (t *fakeTracker) UpdateTransaction(_ context.Context, id, userID string, update model.TransactionUpdate) (*model.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.transactions {
		if t.transactions[i].ID == id && t.transactions[i].UserID == userID {
			update.Apply(&t.transactions[i])
			cp := t.transactions[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (t *fakeTracker) DeleteTransaction(_ context.Context, id, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.transactions {
		if t.transactions[i].ID == id && t.transactions[i].UserID == userID {
			t.transactions = append(t.transactions[:i], t.transactions[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t *fakeTracker) GetMonthlyReport(_ context.Context, userID string, month time.Month, year int) (*service.MonthlyReport, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var list []model.Transaction
	for _, tx := range t.transactions {
		if tx.UserID == userID && tx.Date.Month() == month && tx.Date.Year() == year {
			list = append(list, tx)
		}
	}
	return service.BuildMonthlyReport(month, year, list), nil
}

func (t *fakeTracker) CreateRecurringRule(_ context.Context, userID string, amount decimal.Decimal, category model.Category, description string, day int, note string) (*model.RecurringRule, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ruleCalls++
	if t.ruleErr != nil {
		return nil, t.ruleErr
	}
	rule := model.RecurringRule{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Description: description,
		Note:        note,
		DayOfMonth:  model.ClampDay(day),
		Active:      true,
	}
	t.rules = append(t.rules, rule)
	return &rule, nil
}

func (t *fakeTracker) ListRecurringRules(_ context.Context, userID string) ([]model.RecurringRule, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.RecurringRule
	for _, r := range t.rules {
		if r.UserID == userID && r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *fakeTracker) DeactivateRecurringRule(_ context.Context, id, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rules {
		if t.rules[i].ID == id && t.rules[i].UserID == userID && t.rules[i].Active {
			t.rules[i].Active = false
			return nil
		}
	}
	return repository.ErrNotFound
}

func (t *fakeTracker) DueRecurringRules(_ context.Context, day int) ([]model.DueRecurring, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dueErr != nil {
		return nil, t.dueErr
	}
	var out []model.DueRecurring
	for _, d := range t.due {
		if d.Rule.DayOfMonth == day {
			out = append(out, d)
		}
	}
	return out, nil
}

func (t *fakeTracker) IssueToken(_ context.Context, userID string) (*model.AccessToken, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token == nil {
		t.token = &model.AccessToken{Token: "tok-123", UserID: userID, ExpiresAt: t.now.Add(service.DefaultTokenTTL)}
	}
	return t.token, nil
}

type fakeCharts struct{}

func (fakeCharts) GenerateCategoryPieChart(*service.MonthlyReport) ([]byte, error) {
	return []byte("\x89PNG pie"), nil
}

func (fakeCharts) GenerateBalanceChart(*service.MonthlyReport) ([]byte, error) {
	return nil, nil
}

func (fakeCharts) GenerateSpendingTrendChart(*service.MonthlyReport) ([]byte, error) {
	return nil, nil
}

type fakeExporter struct {
	file *export.File
	err  error
}

func (e *fakeExporter) Export(string, *service.MonthlyReport) (*export.File, error) {
	return e.file, e.err
}

const chatID int64 = 4242

type harness struct {
	bot         *Bot
	sender      *fakeSender
	tracker     *fakeTracker
	categorizer *fakeCategorizer
	store       *pending.Store
	user        *model.User
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	h := &harness{
		sender:      &fakeSender{},
		tracker:     newFakeTracker(now),
		categorizer: &fakeCategorizer{},
		store:       pending.NewStore(),
	}
	if opts.ReminderHour == 0 {
		opts.ReminderHour = 9
	}
	opts.SendRetryDelay = time.Millisecond
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.bot = New(h.sender, h.tracker, h.categorizer, h.store, logger, opts)

	user, err := h.tracker.RegisterUser(context.Background(), model.User{TelegramID: chatID, FirstName: "Ana"})
	if err != nil {
		t.Fatal(err)
	}
	h.user = user
	return h
}

func message(text string) *tgbotapi.Message {
	m := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatID, FirstName: "Ana", UserName: "ana"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return m
}

// say delivers text from the test user.
func (h *harness) say(t *testing.T, text string) {
	t.Helper()
	h.bot.HandleUpdate(t.Context(), tgbotapi.Update{UpdateID: 1, Message: message(text)})
}

func candidate(amount string, category model.Category, description string) *model.Candidate {
	return &model.Candidate{
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Description: description,
	}
}
