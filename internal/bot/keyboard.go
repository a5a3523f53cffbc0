package bot

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivanoskov/lazzyfinance/internal/model"
)

// yesNoKeyboard offers the two answers of a confirmation.
func yesNoKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewOneTimeReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("sim"),
			tgbotapi.NewKeyboardButton("não"),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// categoryKeyboard adds the category numbers below the yes/no row. Button
// labels are the bare digits so a tap routes exactly like typing them.
func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := yesNoKeyboard()

	var row []tgbotapi.KeyboardButton
	for i := range model.Categories {
		row = append(row, tgbotapi.NewKeyboardButton(strconv.Itoa(i+1)))
		if len(row) == 4 {
			kb.Keyboard = append(kb.Keyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb.Keyboard = append(kb.Keyboard, row)
	}
	return kb
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, markup tgbotapi.ReplyKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = markup
	return b.send(msg)
}
