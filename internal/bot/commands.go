package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivanoskov/lazzyfinance/internal/export"
	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
	"github.com/ivanoskov/lazzyfinance/internal/service"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

// recentLimit is how many transactions /editar lists.
const recentLimit = 5

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	switch message.Command() {
	case "start", "ajuda", "help":
		return b.handleStart(ctx, message)
	case "relatorio":
		return b.handleReport(ctx, message)
	case "exportar":
		return b.handleExport(ctx, message)
	case "site":
		return b.handleSite(ctx, message)
	case "fixo":
		return b.handleFixo(ctx, message)
	case "meu_fixos":
		return b.handleListRecurring(ctx, message)
	case "fixo_cancelar":
		return b.handleCancelRecurring(ctx, message)
	case "editar":
		return b.handleEdit(ctx, message)
	case "testar_fixos":
		return b.handleRunReminders(ctx, message)
	default:
		return b.replyPlain(message.Chat.ID, msgUnknownCommand)
	}
}

func userFromTelegram(from *tgbotapi.User) model.User {
	return model.User{
		TelegramID:   from.ID,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		Username:     from.UserName,
		LanguageCode: from.LanguageCode,
	}
}

// requireUser loads the sender's ledger user. When it reports !ok the user
// has already been told what went wrong.
func (b *Bot) requireUser(ctx context.Context, message *tgbotapi.Message) (*model.User, bool, error) {
	user, err := b.tracker.GetUser(ctx, message.From.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, b.replyPlain(message.Chat.ID, msgNeedStart)
	}
	if err != nil {
		_ = b.replyPlain(message.Chat.ID, msgProcessingFailure)
		return nil, false, fmt.Errorf("loading user: %w", err)
	}
	return user, true, nil
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.tracker.RegisterUser(ctx, userFromTelegram(message.From))
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao inicializar. Tente novamente.")
		return err
	}
	return b.replyPlain(message.Chat.ID, welcomeText(user.DisplayName()))
}

// parseMonthArgs reads "<mês> [ano]". The year defaults to the current one
// and is ignored unless it lies within 2001..2099.
func (b *Bot) parseMonthArgs(args string) (time.Month, int, bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, 0, false
	}
	month, ok := textparse.ParseMonth(fields[0])
	if !ok {
		return 0, 0, false
	}

	year := b.tracker.Now().Year()
	if len(fields) > 1 {
		if y, err := strconv.Atoi(fields[1]); err == nil && y > 2000 && y < 2100 {
			year = y
		}
	}
	return month, year, true
}

func (b *Bot) monthArgs(message *tgbotapi.Message) (time.Month, int, bool, error) {
	args := strings.TrimSpace(message.CommandArguments())
	if args == "" {
		return 0, 0, false, b.replyPlain(message.Chat.ID, monthUsage(message.Command()))
	}
	month, year, ok := b.parseMonthArgs(args)
	if !ok {
		return 0, 0, false, b.replyPlain(message.Chat.ID, msgInvalidMonth)
	}
	return month, year, true, nil
}

func (b *Bot) handleReport(ctx context.Context, message *tgbotapi.Message) error {
	month, year, ok, err := b.monthArgs(message)
	if !ok {
		return err
	}
	user, ok, err := b.requireUser(ctx, message)
	if !ok {
		return err
	}

	report, err := b.tracker.GetMonthlyReport(ctx, user.ID, month, year)
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao gerar relatório. Tente novamente.")
		return err
	}
	if report.TransactionCount() == 0 {
		return b.replyPlain(message.Chat.ID, noTransactionsText(month, year))
	}

	if err := b.replyPlain(message.Chat.ID, report.Text()); err != nil {
		return err
	}
	return b.sendCharts(message.Chat.ID, report)
}

func (b *Bot) sendCharts(chatID int64, report *service.MonthlyReport) error {
	if b.opts.Charts == nil {
		return nil
	}

	renderers := []struct {
		name   string
		render func(*service.MonthlyReport) ([]byte, error)
	}{
		{"categorias.png", b.opts.Charts.GenerateCategoryPieChart},
		{"saldo.png", b.opts.Charts.GenerateBalanceChart},
		{"gastos_diarios.png", b.opts.Charts.GenerateSpendingTrendChart},
	}
	for _, r := range renderers {
		png, err := r.render(report)
		if err != nil {
			b.logger.Warn("chart rendering failed", "chat_id", chatID, "chart", r.name, "error", err)
			continue
		}
		if png == nil {
			continue
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: r.name, Bytes: png})
		if err := b.send(photo); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleExport(ctx context.Context, message *tgbotapi.Message) error {
	month, year, ok, err := b.monthArgs(message)
	if !ok {
		return err
	}
	user, ok, err := b.requireUser(ctx, message)
	if !ok {
		return err
	}
	if b.opts.Exporter == nil {
		return b.sendErrorMessage(message.Chat.ID, "Exportação indisponível no momento.")
	}

	if err := b.replyPlain(message.Chat.ID, "📊 Gerando arquivo Excel..."); err != nil {
		return err
	}

	report, err := b.tracker.GetMonthlyReport(ctx, user.ID, month, year)
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao gerar arquivo Excel. Tente novamente.")
		return err
	}

	file, err := b.opts.Exporter.Export(user.ID, report)
	switch {
	case errors.Is(err, export.ErrNoTransactions):
		return b.replyPlain(message.Chat.ID, noTransactionsText(month, year)+"\nNão é possível gerar arquivo sem transações.")
	case errors.Is(err, export.ErrFileTooLarge):
		return b.reply(message.Chat.ID, "❌ *Erro ao gerar arquivo*\n\n"+
			"O relatório do mês selecionado é muito grande (maior que 50MB).\n"+
			"Por favor, tente exportar um período menor ou entre em contato com o suporte.")
	case err != nil:
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao gerar arquivo Excel. Tente novamente.")
		return err
	}

	f, err := os.Open(file.Path)
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao gerar arquivo Excel. Tente novamente.")
		return fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FileReader{Name: file.Name, Reader: f})
	doc.Caption = fmt.Sprintf("📊 *Relatório de %s de %d*\n\n✅ Arquivo Excel gerado com sucesso!\n📁 %s",
		textparse.MonthName(month), year, md(file.Name))
	doc.ParseMode = tgbotapi.ModeMarkdown
	return b.send(doc)
}

func (b *Bot) handleSite(ctx context.Context, message *tgbotapi.Message) error {
	user, err := b.ensureUser(ctx, newIncoming(message))
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao identificar usuário.")
		return err
	}

	token, err := b.tracker.IssueToken(ctx, user.ID)
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao gerar link. Tente novamente.")
		return fmt.Errorf("issuing access token: %w", err)
	}

	url := fmt.Sprintf("%s/?token=%s", strings.TrimRight(b.opts.WebBaseURL, "/"), token.Token)
	b.logger.Info("dashboard link issued", "chat_id", message.Chat.ID, "user_id", user.ID)
	return b.reply(message.Chat.ID, siteText(url))
}

func (b *Bot) handleListRecurring(ctx context.Context, message *tgbotapi.Message) error {
	user, ok, err := b.requireUser(ctx, message)
	if !ok {
		return err
	}

	rules, err := b.tracker.ListRecurringRules(ctx, user.ID)
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao listar gastos fixos. Tente novamente.")
		return err
	}
	if len(rules) == 0 {
		return b.replyPlain(message.Chat.ID, "📌 Você não tem gastos fixos cadastrados.\n\nUse /fixo para criar um novo gasto fixo.")
	}
	return b.reply(message.Chat.ID, recurringListText(rules))
}

func (b *Bot) handleCancelRecurring(ctx context.Context, message *tgbotapi.Message) error {
	user, ok, err := b.requireUser(ctx, message)
	if !ok {
		return err
	}

	id := strings.TrimSpace(message.CommandArguments())
	if id == "" {
		return b.replyPlain(message.Chat.ID, "⚠️ Use o formato: /fixo_cancelar <ID>\nVeja os IDs com /meu_fixos")
	}

	err = b.tracker.DeactivateRecurringRule(ctx, id, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return b.replyPlain(message.Chat.ID, "⚠️ Gasto fixo não encontrado.")
	}
	if err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao desativar gasto fixo. Tente novamente.")
		return err
	}
	return b.replyPlain(message.Chat.ID, "✅ Gasto fixo desativado. Você não receberá mais lembretes dele.")
}

func (b *Bot) handleRunReminders(ctx context.Context, message *tgbotapi.Message) error {
	if _, ok, err := b.requireUser(ctx, message); !ok {
		return err
	}

	if err := b.replyPlain(message.Chat.ID, "🔄 Executando verificação de gastos fixos..."); err != nil {
		return err
	}
	if err := b.runReminders(ctx); err != nil {
		_ = b.sendErrorMessage(message.Chat.ID, "Erro ao executar verificação. Tente novamente.")
		return err
	}
	return b.replyPlain(message.Chat.ID, "✅ Verificação concluída!\n\nSe houver gastos fixos para hoje, você receberá as confirmações agora.")
}
