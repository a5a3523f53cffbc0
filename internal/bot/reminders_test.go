package bot

import (
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/pending"
)

const otherChatID int64 = 777

func dueRule(id string, chat int64, userID, amount string, category model.Category, description string) model.DueRecurring {
	return model.DueRecurring{
		Rule: model.RecurringRule{
			ID:          id,
			UserID:      userID,
			Amount:      decimal.RequireFromString(amount),
			Category:    category,
			Description: description,
			DayOfMonth:  10,
			Active:      true,
		},
		ChatID:    chat,
		FirstName: "Ana",
	}
}

func (h *harness) seedDue() {
	h.tracker.due = []model.DueRecurring{
		dueRule("rule-rent", chatID, h.user.ID, "1500", model.CategoryHousing, "aluguel"),
		dueRule("rule-net", chatID, h.user.ID, "150", model.CategoryHousing, "internet"),
		dueRule("rule-gym", otherChatID, "user-other", "99.90", model.CategoryHealth, "academia"),
	}
}

func TestReminders_QueuePolicyAsksAboutEveryRule(t *testing.T) {
	h := newHarness(t, Options{})
	h.seedDue()

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))

	require.Len(t, h.sender.texts(chatID), 1)
	require.Len(t, h.sender.texts(otherChatID), 1)
	head, ok := h.store.RecurringConfirmation(chatID)
	require.True(t, ok)
	assert.Equal(t, "rule-rent", head.RuleID)
	assert.Equal(t, reminderText(head), h.sender.last(chatID))
	assert.Equal(t, 1, h.store.Snapshot(chatID).QueuedRecurring)

	h.say(t, "não")

	assert.Zero(t, h.tracker.addCalls)
	texts := h.sender.texts(chatID)
	require.GreaterOrEqual(t, len(texts), 3)
	assert.Equal(t, msgRecurringSkipped, texts[len(texts)-2])
	next, ok := h.store.RecurringConfirmation(chatID)
	require.True(t, ok)
	assert.Equal(t, "rule-net", next.RuleID)
	assert.Equal(t, reminderText(next), h.sender.last(chatID))

	h.say(t, "sim")

	assert.False(t, h.store.HasRecurringConfirmation(chatID))
	require.Len(t, h.tracker.transactions, 1)
	tx := h.tracker.transactions[0]
	assert.Equal(t, "internet", tx.Description)
	assert.True(t, decimal.NewFromInt(150).Equal(tx.Amount))
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), tx.Date)
	assert.Equal(t, recurringSavedText(tx.Amount, tx.Category), h.sender.last(chatID))
}

func TestReminders_FirstPolicyAsksOnce(t *testing.T) {
	h := newHarness(t, Options{ReminderPolicy: PolicyFirst})
	h.seedDue()

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))
	assert.Zero(t, h.store.Snapshot(chatID).QueuedRecurring)

	h.say(t, "sim")

	assert.False(t, h.store.HasRecurringConfirmation(chatID))
	require.Len(t, h.tracker.transactions, 1)
	assert.Equal(t, "aluguel", h.tracker.transactions[0].Description)
}

func TestReminders_RerunDoesNotDuplicate(t *testing.T) {
	h := newHarness(t, Options{})
	h.seedDue()

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))
	sent := h.sender.count()

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))

	assert.Equal(t, sent, h.sender.count())
	assert.Equal(t, 1, h.store.Snapshot(chatID).QueuedRecurring)
	assert.True(t, h.store.Snapshot(otherChatID).RecurringConfirmation)
}

func TestReminders_RerunAfterAnswerDoesNotRepost(t *testing.T) {
	h := newHarness(t, Options{})
	h.tracker.due = []model.DueRecurring{
		dueRule("rule-rent", chatID, h.user.ID, "1500", model.CategoryHousing, "aluguel"),
	}

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))
	h.say(t, "sim")
	require.Len(t, h.tracker.transactions, 1)
	sent := h.sender.count()

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))

	assert.Equal(t, sent, h.sender.count())
	assert.False(t, h.store.HasRecurringConfirmation(chatID))
	assert.Len(t, h.tracker.transactions, 1)
}

func TestReminders_UnansweredDayIsReplacedNextDay(t *testing.T) {
	h := newHarness(t, Options{})
	h.tracker.due = []model.DueRecurring{
		dueRule("rule-rent", chatID, h.user.ID, "1500", model.CategoryHousing, "aluguel"),
	}
	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))
	require.Len(t, h.sender.texts(chatID), 1)

	internet := dueRule("rule-net", chatID, h.user.ID, "150", model.CategoryHousing, "internet")
	internet.Rule.DayOfMonth = 11
	h.tracker.due = append(h.tracker.due, internet)
	h.tracker.now = time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC)

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))

	require.Len(t, h.sender.texts(chatID), 2)
	head, ok := h.store.RecurringConfirmation(chatID)
	require.True(t, ok)
	assert.Equal(t, "rule-net", head.RuleID)
	assert.Zero(t, h.store.Snapshot(chatID).QueuedRecurring)
	assert.Contains(t, h.sender.last(chatID), "Gasto Fixo do dia 11")

	h.say(t, "sim")

	require.Len(t, h.tracker.transactions, 1)
	tx := h.tracker.transactions[0]
	assert.Equal(t, "internet", tx.Description)
	assert.Equal(t, time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC), tx.Date)
}

func TestReminders_NextPromptKeepsFiringDay(t *testing.T) {
	h := newHarness(t, Options{})
	h.seedDue()
	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))

	h.tracker.now = time.Date(2025, time.March, 11, 0, 30, 0, 0, time.UTC)
	h.say(t, "não")

	next, ok := h.store.RecurringConfirmation(chatID)
	require.True(t, ok)
	assert.Equal(t, "rule-net", next.RuleID)
	assert.Contains(t, h.sender.last(chatID), "Gasto Fixo do dia 10")
}

func TestReminders_NothingDue(t *testing.T) {
	h := newHarness(t, Options{})
	h.seedDue()
	h.tracker.now = time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC)

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))

	assert.Zero(t, h.sender.count())
	assert.False(t, h.store.HasRecurringConfirmation(chatID))
}

func TestReminders_LoadFailure(t *testing.T) {
	h := newHarness(t, Options{})
	h.tracker.dueErr = errLedger

	err := h.bot.SendRecurringReminders(t.Context())

	require.ErrorIs(t, err, errLedger)
	assert.Zero(t, h.sender.count())
}

func TestReminders_RetriesRateLimit(t *testing.T) {
	h := newHarness(t, Options{})
	h.tracker.due = []model.DueRecurring{
		dueRule("rule-rent", chatID, h.user.ID, "1500", model.CategoryHousing, "aluguel"),
	}
	h.sender.errs = []error{
		&tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 1"},
		&tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 1"},
	}

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))

	assert.Len(t, h.sender.texts(chatID), 1)
	assert.True(t, h.store.HasRecurringConfirmation(chatID))
}

func TestReminders_UndeliverableChatIsCleared(t *testing.T) {
	h := newHarness(t, Options{})
	h.tracker.due = []model.DueRecurring{
		dueRule("rule-rent", chatID, h.user.ID, "1500", model.CategoryHousing, "aluguel"),
	}
	h.sender.errs = []error{&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}

	require.NoError(t, h.bot.SendRecurringReminders(t.Context()))

	assert.Zero(t, h.sender.count())
	assert.False(t, h.store.HasRecurringConfirmation(chatID))
}

func TestRecurringReply_LedgerFailureKeepsConfirmation(t *testing.T) {
	h := newHarness(t, Options{})
	h.store.PushRecurringConfirmations(chatID, pending.RecurringConfirmation{
		RuleID:      "rule-rent",
		UserID:      h.user.ID,
		Amount:      decimal.NewFromInt(1500),
		Category:    model.CategoryHousing,
		Description: "aluguel",
	})
	h.tracker.addErr = errLedger

	h.say(t, "sim")

	assert.Equal(t, msgRecurringFailed, h.sender.last(chatID))
	assert.True(t, h.store.HasRecurringConfirmation(chatID))
	assert.Empty(t, h.categorizer.calls)
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, isRateLimited(&tgbotapi.Error{Code: 429}))
	assert.False(t, isRateLimited(&tgbotapi.Error{Code: 400}))
	assert.False(t, isRateLimited(errors.New("connection reset")))
}
