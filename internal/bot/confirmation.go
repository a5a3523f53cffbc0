package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/pending"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

// ensureUser returns the ledger user behind a Telegram account, creating it
// on first contact.
func (b *Bot) ensureUser(ctx context.Context, in incoming) (*model.User, error) {
	user, err := b.tracker.GetUser(ctx, in.from.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return b.tracker.RegisterUser(ctx, userFromTelegram(in.from))
}

// handleNewTransaction categorizes text and asks the user to confirm it.
func (b *Bot) handleNewTransaction(ctx context.Context, in incoming) error {
	user, err := b.ensureUser(ctx, in)
	if err != nil {
		_ = b.reply(in.chatID, msgUnknownUser)
		return fmt.Errorf("resolving user: %w", err)
	}

	if err := b.reply(in.chatID, msgAnalyzing); err != nil {
		return err
	}

	date := textparse.ParseDate(in.text, b.tracker.Now())

	candidate, err := b.categorizer.Categorize(ctx, in.text)
	if err != nil {
		b.logger.Info("categorization failed", "chat_id", in.chatID, "error", err)

		amount, ok := textparse.ParseAmount(in.text)
		if !ok {
			return b.reply(in.chatID, msgNeedAmount)
		}
		b.store.SetConfirmation(in.chatID, pending.Confirmation{
			UserID:      user.ID,
			Amount:      amount,
			Description: in.text,
			Date:        date,
		})
		return b.replyPlain(in.chatID, notCategorizedText())
	}

	c := pending.Confirmation{
		UserID:      user.ID,
		Amount:      candidate.Amount,
		Category:    candidate.Category,
		Description: candidate.Description,
		Date:        date,
		Note:        candidate.Note,
	}
	b.store.SetConfirmation(in.chatID, c)
	return b.replyWithKeyboard(in.chatID, confirmationText(c), categoryKeyboard())
}

// handleConfirmation resolves a reply to a pending ad-hoc confirmation. The
// pending value is removed only once the ledger accepted the transaction.
func (b *Bot) handleConfirmation(ctx context.Context, in incoming) error {
	c, ok := b.store.Confirmation(in.chatID)
	if !ok {
		return b.handleNewTransaction(ctx, in)
	}

	if category, ok := model.CategoryByNumber(in.normalized); ok {
		c.Category = category
		b.store.SetConfirmation(in.chatID, c)
		return b.reply(in.chatID, categoryChangedText(c))
	}

	switch {
	case isYes(in.normalized):
		if c.Category == "" {
			return b.reply(in.chatID, msgChooseCategory)
		}
		if _, err := b.tracker.AddTransaction(ctx, c.UserID, c.Amount, c.Category, c.Description, c.Date, c.Note); err != nil {
			_ = b.replyPlain(in.chatID, msgSaveFailed)
			return fmt.Errorf("saving transaction: %w", err)
		}
		b.store.DeleteConfirmation(in.chatID)
		return b.reply(in.chatID, savedText(c))

	case isNo(in.normalized):
		b.store.DeleteConfirmation(in.chatID)
		return b.replyPlain(in.chatID, msgCancelled)

	default:
		return b.reply(in.chatID, msgConfirmReprompt)
	}
}
