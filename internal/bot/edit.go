package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

// handleEdit lists the latest transactions, or applies
// "/editar <n> <campo> <valor>" and "/editar <n> apagar" to one of them.
func (b *Bot) handleEdit(ctx context.Context, message *tgbotapi.Message) error {
	user, ok, err := b.requireUser(ctx, message)
	if !ok {
		return err
	}

	recent, err := b.tracker.GetRecentTransactions(ctx, user.ID, recentLimit)
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao buscar transações. Tente novamente.")
		return err
	}
	if len(recent) == 0 {
		return b.replyPlain(message.Chat.ID, "📝 Você não tem transações para editar.")
	}

	fields := strings.Fields(message.CommandArguments())
	if len(fields) == 0 {
		return b.reply(message.Chat.ID, recentListText(recent))
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 1 || n > len(recent) {
		return b.replyPlain(message.Chat.ID, "⚠️ Número inválido. Use /editar para ver a lista.")
	}
	target := recent[n-1]

	if len(fields) == 2 && strings.EqualFold(fields[1], "apagar") {
		if err := b.tracker.DeleteTransaction(ctx, target.ID, user.ID); err != nil {
			_ = b.sendErrorMessage(message.Chat.ID, "Erro ao apagar transação. Tente novamente.")
			return err
		}
		return b.replyPlain(message.Chat.ID, "🗑️ Transação apagada.")
	}

	if len(fields) < 3 {
		return b.reply(message.Chat.ID, recentListText(recent))
	}

	update, err := b.parseEdit(strings.ToLower(fields[1]), strings.Join(fields[2:], " "))
	if err != nil {
		return b.replyPlain(message.Chat.ID, "⚠️ "+err.Error())
	}

	updated, err := b.tracker.UpdateTransaction(ctx, target.ID, user.ID, update)
	if errors.Is(err, repository.ErrNotFound) {
		return b.replyPlain(message.Chat.ID, "⚠️ Transação não encontrada.")
	}
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao atualizar transação. Tente novamente.")
		return err
	}
	return b.reply(message.Chat.ID, transactionUpdatedText(updated))
}

// parseEdit builds the update for one field. Error texts are shown to the
// user as is.
func (b *Bot) parseEdit(field, value string) (model.TransactionUpdate, error) {
	var update model.TransactionUpdate

	switch field {
	case "valor":
		amount, ok := textparse.ParseAmount(value)
		if !ok {
			return update, errors.New("Valor inválido. Exemplo: /editar 1 valor 45,90")
		}
		update.Amount = &amount
	case "categoria":
		category, ok := model.ParseCategory(value)
		if !ok {
			category, ok = model.CategoryByNumber(value)
		}
		if !ok {
			return update, errors.New("Categoria inválida. Use o nome ou o número (1-8).")
		}
		update.Category = &category
	case "descricao", "descrição":
		update.Description = &value
	case "data":
		date, ok := parseEditDate(value, b.tracker.Now())
		if !ok {
			return update, errors.New("Data inválida. Use dd/mm/aaaa, hoje ou ontem.")
		}
		update.Date = &date
	case "nota":
		update.Note = &value
	default:
		return update, errors.New("Campo inválido. Use: valor, categoria, descricao, data ou nota.")
	}
	return update, nil
}

func parseEditDate(value string, now time.Time) (time.Time, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "hoje", "ontem":
		return textparse.ParseDate(value, now), true
	}
	for _, layout := range []string{"02/01/2006", "2/1/2006", "02/01/06", "2/1/06"} {
		if d, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
