package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/pending"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

// handleFixo starts the recurring-rule wizard, or continues it when one is
// already running. Arguments after the command count as the next reply.
func (b *Bot) handleFixo(ctx context.Context, message *tgbotapi.Message) error {
	user, ok, err := b.requireUser(ctx, message)
	if !ok {
		return err
	}

	args := message.CommandArguments()
	in := newIncomingText(message.Chat.ID, message.From, args)

	if d, exists := b.store.Draft(message.Chat.ID); exists {
		if in.text != "" {
			return b.handleWizard(ctx, in)
		}
		return b.promptStep(message.Chat.ID, d)
	}

	b.store.SetDraft(message.Chat.ID, pending.RecurringDraft{
		UserID: user.ID,
		Step:   pending.StepAwaitingDescription,
	})
	if in.text != "" {
		return b.handleWizard(ctx, in)
	}
	return b.reply(message.Chat.ID, wizardIntroText)
}

func (b *Bot) promptStep(chatID int64, d pending.RecurringDraft) error {
	switch d.Step {
	case pending.StepAwaitingConfirmation:
		return b.reply(chatID, wizardSummaryText(d))
	case pending.StepAwaitingDay:
		return b.reply(chatID, askDayText)
	default:
		return b.reply(chatID, wizardIntroText)
	}
}

// handleWizard advances the recurring-rule wizard by one reply. A deny word
// cancels it at any step.
func (b *Bot) handleWizard(ctx context.Context, in incoming) error {
	d, ok := b.store.Draft(in.chatID)
	if !ok {
		return b.handleNewTransaction(ctx, in)
	}

	if isNo(in.normalized) {
		b.store.DeleteDraft(in.chatID)
		return b.replyPlain(in.chatID, msgWizardCancelled)
	}

	switch d.Step {
	case pending.StepAwaitingDescription:
		return b.wizardDescribe(ctx, in, d)
	case pending.StepAwaitingConfirmation:
		return b.wizardConfirm(in, d)
	case pending.StepAwaitingDay:
		return b.wizardDay(ctx, in, d)
	default:
		return fmt.Errorf("unknown wizard step %v", d.Step)
	}
}

func (b *Bot) wizardDescribe(ctx context.Context, in incoming, d pending.RecurringDraft) error {
	if err := b.reply(in.chatID, msgAnalyzingRecurring); err != nil {
		return err
	}

	candidate, err := b.categorizer.Categorize(ctx, in.text)
	if err != nil {
		b.logger.Info("recurring categorization failed", "chat_id", in.chatID, "error", err)

		amount, ok := textparse.ParseAmount(in.text)
		if !ok {
			return b.replyPlain(in.chatID, msgWizardNeedAmount)
		}
		d.Amount = amount
		d.Category = ""
		d.Description = in.text
		d.Note = ""
		d.Step = pending.StepAwaitingConfirmation
		b.store.SetDraft(in.chatID, d)
		return b.replyPlain(in.chatID, wizardNotCategorizedText())
	}

	d.Amount = candidate.Amount
	d.Category = candidate.Category
	d.Description = candidate.Description
	d.Note = candidate.Note
	d.Step = pending.StepAwaitingConfirmation
	b.store.SetDraft(in.chatID, d)
	return b.replyWithKeyboard(in.chatID, wizardSummaryText(d), categoryKeyboard())
}

func (b *Bot) wizardConfirm(in incoming, d pending.RecurringDraft) error {
	if category, ok := model.CategoryByNumber(in.normalized); ok {
		d.Category = category
		b.store.SetDraft(in.chatID, d)
		return b.reply(in.chatID, wizardCategoryChangedText(d))
	}

	if !isYes(in.normalized) {
		return b.reply(in.chatID, msgConfirmReprompt)
	}
	if d.Category == "" {
		return b.reply(in.chatID, msgChooseCategory)
	}

	d.Step = pending.StepAwaitingDay
	b.store.SetDraft(in.chatID, d)
	return b.reply(in.chatID, askDayText)
}

func (b *Bot) wizardDay(ctx context.Context, in incoming, d pending.RecurringDraft) error {
	day, err := strconv.Atoi(in.normalized)
	if err != nil || day < 1 || day > 31 {
		return b.replyPlain(in.chatID, msgInvalidDay)
	}

	rule, err := b.tracker.CreateRecurringRule(ctx, d.UserID, d.Amount, d.Category, d.Description, day, d.Note)
	if err != nil {
		_ = b.replyPlain(in.chatID, msgWizardSaveFailed)
		return fmt.Errorf("creating recurring rule: %w", err)
	}

	b.store.DeleteDraft(in.chatID)
	b.logger.Info("recurring rule created", "chat_id", in.chatID, "rule_id", rule.ID, "day", rule.DayOfMonth)
	return b.replyPlain(in.chatID, ruleCreatedText(rule, day, b.opts.ReminderHour, b.opts.ReminderMinute))
}
