package bot

import (
	"context"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var (
	yesNoRe        = regexp.MustCompile(`^(sim|não|nao|n|s)$`)
	confirmReplyRe = regexp.MustCompile(`^(sim|não|nao|n|s|cancelar|confirmar|confirmo|[1-8])$`)
)

// incoming is a plain text message on its way through the router.
type incoming struct {
	chatID int64
	from   *tgbotapi.User
	// text is the trimmed message as typed; normalized is its lower case form.
	text       string
	normalized string
}

func newIncoming(m *tgbotapi.Message) incoming {
	return newIncomingText(m.Chat.ID, m.From, m.Text)
}

func newIncomingText(chatID int64, from *tgbotapi.User, text string) incoming {
	text = strings.TrimSpace(text)
	return incoming{
		chatID:     chatID,
		from:       from,
		text:       text,
		normalized: strings.ToLower(text),
	}
}

func isYes(s string) bool {
	switch s {
	case "sim", "s", "confirmar", "confirmo":
		return true
	}
	return false
}

func isNo(s string) bool {
	switch s {
	case "não", "nao", "n", "cancelar":
		return true
	}
	return false
}

// route is one entry of the message router. A route whose handler reports
// not handled lets the message fall through to the next one.
type route struct {
	name   string
	match  func(in incoming) bool
	handle func(ctx context.Context, in incoming) (bool, error)
}

// newRoutes lists the routes in priority order: daily recurring
// confirmations, then the recurring wizard, then ad-hoc confirmations, and
// finally a fresh categorization.
func (b *Bot) newRoutes() []route {
	return []route{
		{
			name: "recurring_confirmation",
			match: func(in incoming) bool {
				return b.store.HasRecurringConfirmation(in.chatID) && yesNoRe.MatchString(in.normalized)
			},
			handle: func(ctx context.Context, in incoming) (bool, error) {
				return b.handleRecurringReply(ctx, in, in.normalized == "sim" || in.normalized == "s")
			},
		},
		{
			name: "recurring_wizard",
			match: func(in incoming) bool {
				return b.store.HasDraft(in.chatID)
			},
			handle: func(ctx context.Context, in incoming) (bool, error) {
				return true, b.handleWizard(ctx, in)
			},
		},
		{
			name: "confirmation",
			match: func(in incoming) bool {
				return b.store.HasConfirmation(in.chatID) && confirmReplyRe.MatchString(in.normalized)
			},
			handle: func(ctx context.Context, in incoming) (bool, error) {
				return true, b.handleConfirmation(ctx, in)
			},
		},
		{
			name:  "categorize",
			match: func(incoming) bool { return true },
			handle: func(ctx context.Context, in incoming) (bool, error) {
				return true, b.handleNewTransaction(ctx, in)
			},
		},
	}
}

func (b *Bot) route(ctx context.Context, in incoming) error {
	if in.text == "" {
		return nil
	}

	for _, r := range b.routes {
		if !r.match(in) {
			continue
		}
		b.logger.Debug("routing message", "chat_id", in.chatID, "route", r.name)
		handled, err := r.handle(ctx, in)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	return nil
}
