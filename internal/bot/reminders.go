package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/pending"
)

// SendRecurringReminders finds the recurring rules due today, queues a
// confirmation per rule for its owner's chat and prompts every chat whose
// queue has a new active head. Confirmations left unanswered from an earlier
// day are replaced. Rules still pending or already answered today are not
// queued again, so running it twice on the same day posts nothing twice.
func (b *Bot) SendRecurringReminders(ctx context.Context) error {
	today := b.tracker.Today()
	day := today.Day()

	due, err := b.tracker.DueRecurringRules(ctx, day)
	if err != nil {
		return fmt.Errorf("loading recurring rules for day %d: %w", day, err)
	}
	if len(due) == 0 {
		b.logger.Info("no recurring rules due", "day", day)
		return nil
	}

	var chats []int64
	byChat := make(map[int64][]pending.RecurringConfirmation)
	for _, d := range due {
		if _, seen := byChat[d.ChatID]; !seen {
			chats = append(chats, d.ChatID)
		}
		byChat[d.ChatID] = append(byChat[d.ChatID], recurringConfirmation(d, today))
	}

	var g errgroup.Group
	g.SetLimit(b.opts.ReminderConcurrency)

	var sent, failed atomic.Int64
	for _, chatID := range chats {
		items := byChat[chatID]
		if b.opts.ReminderPolicy == PolicyFirst {
			items = items[:1]
		}

		added, activated := b.store.PushRecurringConfirmations(chatID, items...)
		b.logger.Debug("recurring confirmations queued", "chat_id", chatID, "added", added, "activated", activated)
		if !activated {
			continue
		}

		head, ok := b.store.RecurringConfirmation(chatID)
		if !ok {
			continue
		}

		g.Go(func() error {
			msg := tgbotapi.NewMessage(chatID, reminderText(head))
			msg.ParseMode = tgbotapi.ModeMarkdown
			msg.ReplyMarkup = yesNoKeyboard()
			if err := b.sendWithRetry(ctx, msg); err != nil {
				b.logger.Error("failed to send recurring reminder", "chat_id", chatID, "rule_id", head.RuleID, "error", err)
				b.store.ClearRecurringConfirmations(chatID)
				failed.Add(1)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	b.logger.Info("recurring reminders done", "day", day, "rules", len(due), "chats", len(chats), "sent", sent.Load(), "failed", failed.Load())
	return ctx.Err()
}

func recurringConfirmation(d model.DueRecurring, dueOn time.Time) pending.RecurringConfirmation {
	return pending.RecurringConfirmation{
		RuleID:      d.Rule.ID,
		DueOn:       dueOn,
		UserID:      d.Rule.UserID,
		FirstName:   d.FirstName,
		Amount:      d.Rule.Amount,
		Category:    d.Rule.Category,
		Description: d.Rule.Description,
		Note:        d.Rule.Note,
	}
}

// sendWithRetry retries Telegram's flood-control rejections.
func (b *Bot) sendWithRetry(ctx context.Context, c tgbotapi.Chattable) error {
	return retry.Do(
		func() error {
			_, err := b.sender.Send(c)
			return err
		},
		retry.RetryIf(isRateLimited),
		retry.Attempts(b.opts.SendAttempts),
		retry.Delay(b.opts.SendRetryDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

func isRateLimited(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return tgErr.Code == http.StatusTooManyRequests
	}
	return false
}
