package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/export"
	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/pending"
	"github.com/ivanoskov/lazzyfinance/internal/service"
)

// Sender delivers outgoing Telegram requests. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Tracker is the part of the ledger the bot talks to.
type Tracker interface {
	Now() time.Time
	Today() time.Time

	RegisterUser(ctx context.Context, user model.User) (*model.User, error)
	GetUser(ctx context.Context, telegramID int64) (*model.User, error)

	AddTransaction(ctx context.Context, userID string, amount decimal.Decimal, category model.Category, description string, date time.Time, note string) (*model.Transaction, error)
	GetRecentTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, id, userID string, update model.TransactionUpdate) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, id, userID string) error
	GetMonthlyReport(ctx context.Context, userID string, month time.Month, year int) (*service.MonthlyReport, error)

	CreateRecurringRule(ctx context.Context, userID string, amount decimal.Decimal, category model.Category, description string, day int, note string) (*model.RecurringRule, error)
	ListRecurringRules(ctx context.Context, userID string) ([]model.RecurringRule, error)
	DeactivateRecurringRule(ctx context.Context, id, userID string) error
	DueRecurringRules(ctx context.Context, day int) ([]model.DueRecurring, error)

	IssueToken(ctx context.Context, userID string) (*model.AccessToken, error)
}

// Categorizer turns free text into a transaction candidate. Any error means
// the text could not be classified.
type Categorizer interface {
	Categorize(ctx context.Context, text string) (*model.Candidate, error)
}

// ChartRenderer draws report images. A nil image means nothing to draw.
type ChartRenderer interface {
	GenerateCategoryPieChart(report *service.MonthlyReport) ([]byte, error)
	GenerateBalanceChart(report *service.MonthlyReport) ([]byte, error)
	GenerateSpendingTrendChart(report *service.MonthlyReport) ([]byte, error)
}

// Exporter writes a monthly spreadsheet.
type Exporter interface {
	Export(userID string, report *service.MonthlyReport) (*export.File, error)
}

const (
	PolicyQueue = "queue"
	PolicyFirst = "first"
)

// Options tunes the bot. Zero values fall back to defaults.
type Options struct {
	WebBaseURL string
	// ReminderPolicy decides what happens when one chat has several rules
	// due on the same day: PolicyQueue asks about all of them in turn,
	// PolicyFirst only about the first.
	ReminderPolicy      string
	ReminderConcurrency int
	ReminderHour        int
	ReminderMinute      int
	SendAttempts        uint
	SendRetryDelay      time.Duration
	Charts              ChartRenderer
	Exporter            Exporter
}

func (o *Options) applyDefaults() {
	if o.ReminderPolicy == "" {
		o.ReminderPolicy = PolicyQueue
	}
	if o.ReminderConcurrency <= 0 {
		o.ReminderConcurrency = 4
	}
	if o.SendAttempts == 0 {
		o.SendAttempts = 3
	}
	if o.SendRetryDelay == 0 {
		o.SendRetryDelay = time.Second
	}
}

type Bot struct {
	api         *tgbotapi.BotAPI
	sender      Sender
	tracker     Tracker
	categorizer Categorizer
	store       *pending.Store
	opts        Options
	logger      *slog.Logger
	routes      []route

	// runReminders runs the daily reminder job on demand. It defaults to
	// SendRecurringReminders and is usually replaced by the scheduler's
	// RunNow so that manual and timed runs never overlap.
	runReminders func(ctx context.Context) error
}

// NewBot connects to Telegram with token.
func NewBot(token string, tracker Tracker, categorizer Categorizer, store *pending.Store, logger *slog.Logger, opts Options) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}

	b := New(api, tracker, categorizer, store, logger, opts)
	b.api = api
	logger.Info("authorized on telegram", "account", api.Self.UserName)
	return b, nil
}

// New creates a bot that sends through sender. It cannot poll for updates;
// feed it with HandleUpdate or HandleWebhook.
func New(sender Sender, tracker Tracker, categorizer Categorizer, store *pending.Store, logger *slog.Logger, opts Options) *Bot {
	opts.applyDefaults()
	b := &Bot{
		sender:      sender,
		tracker:     tracker,
		categorizer: categorizer,
		store:       store,
		opts:        opts,
		logger:      logger,
	}
	b.routes = b.newRoutes()
	b.runReminders = b.SendRecurringReminders
	return b
}

// SetReminderRunner replaces the function used by /testar_fixos.
func (b *Bot) SetReminderRunner(run func(ctx context.Context) error) {
	b.runReminders = run
}

// Start receives updates by long polling until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.api == nil {
		return errors.New("bot has no telegram connection")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("bot polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// HandleWebhook processes one update delivered as a webhook body.
func (b *Bot) HandleWebhook(ctx context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("decoding update: %w", err)
	}

	b.HandleUpdate(ctx, update)
	return nil
}

// HandleUpdate dispatches one update. Errors are logged, never returned, so
// that one bad message cannot stop the update loop.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.Text == "" {
		return
	}

	logger := b.logger.With("chat_id", message.Chat.ID, "update_id", update.UpdateID)

	var err error
	if message.IsCommand() {
		logger.Debug("command received", "command", message.Command())
		err = b.handleCommand(ctx, message)
	} else {
		err = b.route(ctx, newIncoming(message))
	}

	if err != nil {
		logger.Error("error handling update", "error", err)
	}
}

// reply sends a Markdown message to chatID.
func (b *Bot) reply(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	return b.send(msg)
}

// replyPlain sends text without any parse mode.
func (b *Bot) replyPlain(chatID int64, text string) error {
	return b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) error {
	if _, err := b.sender.Send(c); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (b *Bot) sendErrorMessage(chatID int64, text string) error {
	return b.replyPlain(chatID, "❌ "+text)
}
