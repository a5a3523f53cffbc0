package bot

import (
	"context"
	"fmt"
)

// handleRecurringReply answers the active daily recurring confirmation. It
// reports false when the chat has none, so the router may try other routes.
// A ledger failure keeps the confirmation pending and still counts as
// handled.
func (b *Bot) handleRecurringReply(ctx context.Context, in incoming, yes bool) (bool, error) {
	rc, ok := b.store.RecurringConfirmation(in.chatID)
	if !ok {
		return false, nil
	}

	if yes {
		_, err := b.tracker.AddTransaction(ctx, rc.UserID, rc.Amount, rc.Category, rc.Description, b.tracker.Today(), rc.Note)
		if err != nil {
			_ = b.replyPlain(in.chatID, msgRecurringFailed)
			return true, fmt.Errorf("posting recurring rule %s: %w", rc.RuleID, err)
		}
		if err := b.reply(in.chatID, recurringSavedText(rc.Amount, rc.Category)); err != nil {
			b.logger.Warn("reply failed", "chat_id", in.chatID, "error", err)
		}
	} else {
		if err := b.reply(in.chatID, msgRecurringSkipped); err != nil {
			b.logger.Warn("reply failed", "chat_id", in.chatID, "error", err)
		}
	}

	next, ok := b.store.AdvanceRecurringConfirmation(in.chatID)
	if !ok {
		return true, nil
	}
	return true, b.replyWithKeyboard(in.chatID, reminderText(next), yesNoKeyboard())
}
