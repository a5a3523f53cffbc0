package bot

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/pending"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

const (
	msgAnalyzing          = "🤔 Analisando sua transação..."
	msgAnalyzingRecurring = "🤔 Analisando gasto fixo..."
	msgCancelled          = "❌ Transação cancelada."
	msgSaveFailed         = "❌ Erro ao salvar gasto. Tente novamente."
	msgConfirmReprompt    = "⚠️ Por favor, responda *sim* ou *não*, ou escolha uma categoria (1-8)."
	msgChooseCategory     = "⚠️ Escolha uma categoria digitando o número (1-8) antes de confirmar."
	msgNeedAmount         = "❌ Não consegui identificar o valor da transação.\n\n" +
		"Tente novamente informando o valor, por exemplo:\n" +
		"• \"gastei 50 reais no mercado\""

	msgWizardCancelled   = "❌ Criação de gasto fixo cancelada."
	msgWizardSaveFailed  = "❌ Erro ao salvar gasto fixo. Tente novamente."
	msgInvalidDay        = "⚠️ Por favor, digite um número válido entre 1 e 31."
	msgDayClamped        = "⚠️ Ajustado para dia 28 (evita problemas em meses curtos)"
	msgWizardNeedAmount  = "❌ Não consegui identificar o valor. Envie o valor e a descrição, por exemplo: \"1500 aluguel\""
	msgRecurringSkipped  = "⏭️ Gasto fixo *não registrado* neste mês."
	msgRecurringFailed   = "❌ Erro ao processar. Tente novamente."
	msgNeedStart         = "⚠️ Você precisa usar /start primeiro para se registrar."
	msgUnknownUser       = "⚠️ Erro ao identificar usuário. Use /start primeiro."
	msgInvalidMonth      = "⚠️ Mês inválido. Use o nome do mês em português.\nExemplo: janeiro, fevereiro, março, etc."
	msgUnknownCommand    = "❓ Comando desconhecido. Use /ajuda para ver o que eu sei fazer."
	msgProcessingFailure = "❌ Ocorreu um erro. Tente novamente."
)

const categoryMenuInline = "1️⃣ ALIMENTACAO | 2️⃣ TRANSPORTE | 3️⃣ LAZER\n" +
	"4️⃣ SAUDE | 5️⃣ MORADIA | 6️⃣ ESTUDOS\n" +
	"7️⃣ TRABALHO | 8️⃣ LUCROS (ganhos)"

var digitEmoji = [...]string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

// md escapes user supplied text for Telegram's legacy Markdown.
func md(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func categoryMenuList() string {
	var b strings.Builder
	for i, c := range model.Categories {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s", digitEmoji[i], c.Label())
	}
	return b.String()
}

func notCategorizedText() string {
	return "❌ Não consegui categorizar sua transação.\n\n" +
		"Por favor, escolha uma categoria:\n" + categoryMenuList()
}

func wizardNotCategorizedText() string {
	return "❌ Não consegui categorizar. Por favor, escolha uma categoria:\n" + categoryMenuInline
}

func kindOf(c model.Category) (kind, emoji string) {
	if c.IsIncome() {
		return "Ganho", "💰"
	}
	return "Gasto", "💸"
}

func confirmationText(c pending.Confirmation) string {
	kind, emoji := kindOf(c.Category)

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s identificado:*\n\n", emoji, kind)
	fmt.Fprintf(&b, "💰 Valor: %s\n", textparse.FormatMoney(c.Amount))
	fmt.Fprintf(&b, "📂 Categoria: %s", c.Category)
	if c.Category.IsIncome() {
		b.WriteString(" (ganho)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "📝 Descrição: %s\n", md(c.Description))
	fmt.Fprintf(&b, "📅 Data: %s\n", textparse.FormatDate(c.Date))
	if c.Note != "" {
		fmt.Fprintf(&b, "📌 Nota: %s\n", md(c.Note))
	}
	b.WriteString("\n❓ *Confirma para salvar?*\n\n")
	b.WriteString("Responda: *sim* ou *não*\n")
	b.WriteString("Ou escolha outra categoria digitando o número:\n")
	b.WriteString(categoryMenuInline)
	return b.String()
}

func categoryChangedText(c pending.Confirmation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *Categoria alterada para: %s*\n\n", c.Category)
	fmt.Fprintf(&b, "💰 Valor: %s\n", textparse.FormatMoney(c.Amount))
	fmt.Fprintf(&b, "📝 Descrição: %s\n", md(c.Description))
	fmt.Fprintf(&b, "📅 Data: %s\n", textparse.FormatDate(c.Date))
	b.WriteString("\n❓ *Confirma para salvar?* (sim/não)")
	return b.String()
}

func savedText(c pending.Confirmation) string {
	kind, emoji := kindOf(c.Category)
	return fmt.Sprintf("✅ *%s salvo com sucesso!*\n\n%s %s - %s\n📅 %s",
		kind, emoji, textparse.FormatMoney(c.Amount), c.Category, textparse.FormatDate(c.Date))
}

const wizardIntroText = "📌 *Criar Gasto Fixo Recorrente*\n\n" +
	"Gastos fixos são despesas que se repetem *todo mês* no mesmo dia.\n\n" +
	"🔔 Você receberá uma notificação no dia escolhido e poderá confirmar ou pular.\n\n" +
	"Envie o valor e descrição do gasto fixo:\n\n" +
	"*Exemplos:*\n" +
	"• \"1500 aluguel\"\n" +
	"• \"150 internet\"\n" +
	"• \"80 assinatura netflix\""

const askDayText = "📅 *Qual dia do mês?*\n\n" +
	"Digite um número de 1 a 31.\n" +
	"⚠️ Se escolher acima de 28, será ajustado para o dia 28 automaticamente."

func wizardSummaryText(d pending.RecurringDraft) string {
	var b strings.Builder
	b.WriteString("📌 *Gasto Fixo Recorrente*\n\n")
	b.WriteString("Este gasto será registrado *automaticamente todo mês* no dia que você escolher.\n\n")
	fmt.Fprintf(&b, "💰 Valor: %s\n", textparse.FormatMoney(d.Amount))
	fmt.Fprintf(&b, "📂 Categoria: %s\n", d.Category)
	fmt.Fprintf(&b, "📝 Descrição: %s\n", md(d.Description))
	if d.Note != "" {
		fmt.Fprintf(&b, "📌 Nota: %s\n", md(d.Note))
	}
	b.WriteString("\n❓ *Confirma para continuar?*\n\n")
	b.WriteString("Responda: *sim* ou *não*\n")
	b.WriteString("Ou escolha outra categoria (1-8)")
	return b.String()
}

func wizardCategoryChangedText(d pending.RecurringDraft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ *Categoria alterada para: %s*\n\n", d.Category)
	fmt.Fprintf(&b, "💰 Valor: %s\n", textparse.FormatMoney(d.Amount))
	fmt.Fprintf(&b, "📝 Descrição: %s\n", md(d.Description))
	b.WriteString("\n❓ *Confirma?* (sim/não)")
	return b.String()
}

func reminderClock(hour, minute int) string {
	if minute == 0 {
		return fmt.Sprintf("%dh", hour)
	}
	return fmt.Sprintf("%dh%02d", hour, minute)
}

// ruleCreatedText is sent as plain text.
func ruleCreatedText(rule *model.RecurringRule, requestedDay, hour, minute int) string {
	var b strings.Builder
	b.WriteString("✅ Gasto Fixo Recorrente criado!\n\n")
	fmt.Fprintf(&b, "💰 %s - %s\n", textparse.FormatMoney(rule.Amount), rule.Category)
	fmt.Fprintf(&b, "📝 %s\n", rule.Description)
	fmt.Fprintf(&b, "📅 Repetir todo dia %d do mês\n\n", rule.DayOfMonth)
	if rule.DayOfMonth != requestedDay {
		b.WriteString(msgDayClamped + "\n\n")
	}
	b.WriteString("🔔 Como funciona:\n")
	fmt.Fprintf(&b, "• Todo dia %d, às %s, você receberá uma mensagem\n", rule.DayOfMonth, reminderClock(hour, minute))
	b.WriteString("• Você pode confirmar (sim) ou pular (não) naquele mês\n")
	b.WriteString("• Use /meu_fixos para ver todos os gastos fixos ativos")
	return b.String()
}

// reminderText prompts for rc, labelled with the day its rule fired.
func reminderText(rc pending.RecurringConfirmation) string {
	name := rc.FirstName
	if name == "" {
		name = "usuário"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 Olá, %s!\n\n", md(name))
	fmt.Fprintf(&b, "📌 *Gasto Fixo do dia %d:*\n\n", rc.DueOn.Day())
	fmt.Fprintf(&b, "💰 %s - %s\n", textparse.FormatMoney(rc.Amount), rc.Category)
	fmt.Fprintf(&b, "📝 %s\n", md(rc.Description))
	if rc.Note != "" {
		fmt.Fprintf(&b, "📌 %s\n", md(rc.Note))
	}
	b.WriteString("\n❓ *Deseja registrar esse gasto este mês?*\n\n")
	b.WriteString("Responda: *sim* ou *não*")
	return b.String()
}

func recurringSavedText(amount decimal.Decimal, category model.Category) string {
	return fmt.Sprintf("✅ *Gasto fixo registrado com sucesso!*\n\n💸 %s - %s", textparse.FormatMoney(amount), category)
}

func welcomeText(name string) string {
	return fmt.Sprintf("👋 Olá, %s! Eu sou o LazzyFinance bot.\n\n", name) +
		"📝 Para registrar um GASTO, envie uma mensagem como:\n" +
		"• \"gastei 50 reais no mercado\"\n" +
		"• \"gastei 100 reais de uber hoje\"\n" +
		"• \"gastei 200 reais de aluguel em 01/01/2025\"\n\n" +
		"💰 Para registrar um GANHO, envie uma mensagem como:\n" +
		"• \"ganhei 1500 reais de salário\"\n" +
		"• \"lucrei 500 reais que recebi de freela\"\n" +
		"• \"lucrei 200 reais de venda hoje\"\n\n" +
		"🔄 Gastos Fixos\n" +
		"• /fixo - Criar gasto fixo mensal\n" +
		"• /meu_fixos - Ver gastos fixos cadastrados\n\n" +
		"📊 Use /relatorio (mês) para ver o relatório mensal\n" +
		"Exemplo: /relatorio agosto\n\n" +
		"✏️ Use /editar para editar suas últimas transações\n\n" +
		"📥 Use /exportar (mês) para exportar em Excel\n" +
		"Exemplo: /exportar agosto\n\n" +
		"🌐 Use /site para acessar seu dashboard web"
}

func siteText(url string) string {
	return "🌐 *Seu Dashboard LazzyFinance*\n\n" +
		"📊 Acesse seu painel com gráficos e relatórios:\n\n" +
		md(url) + "\n\n" +
		"⚠️ *Atenção:* Este link é pessoal e expira em 7 dias.\n" +
		"Não compartilhe com outras pessoas."
}

func recurringListText(rules []model.RecurringRule) string {
	var b strings.Builder
	b.WriteString("📌 *Seus Gastos Fixos:*\n\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "💰 %s - %s\n", textparse.FormatMoney(r.Amount), r.Category)
		fmt.Fprintf(&b, "   📝 %s\n", md(r.Description))
		fmt.Fprintf(&b, "   📅 Todo dia %d\n", r.DayOfMonth)
		fmt.Fprintf(&b, "   🆔 ID: `%s`\n\n", r.ID)
	}
	b.WriteString("\n*Gerenciar:*\n")
	b.WriteString("• /fixo\\_cancelar <ID> - Desativar")
	return b.String()
}

func recentListText(transactions []model.Transaction) string {
	var b strings.Builder
	b.WriteString("📝 *Suas últimas transações:*\n\n")
	for i, t := range transactions {
		_, emoji := kindOf(t.Category)
		fmt.Fprintf(&b, "%s %s %s - %s\n", digitEmoji[i], emoji, textparse.FormatMoney(t.Amount), t.Category)
		fmt.Fprintf(&b, "   📝 %s\n", md(t.Description))
		fmt.Fprintf(&b, "   📅 %s\n\n", textparse.FormatDate(t.Date))
	}
	b.WriteString("*Para editar:*\n")
	fmt.Fprintf(&b, "/editar <número 1-%d> <campo> <novo valor>\n", len(transactions))
	b.WriteString("Campos: valor, categoria, descricao, data, nota\n")
	b.WriteString("Exemplo: /editar 1 valor 45,90\n\n")
	b.WriteString("*Para apagar:*\n")
	b.WriteString("/editar <número> apagar")
	return b.String()
}

func transactionUpdatedText(t *model.Transaction) string {
	_, emoji := kindOf(t.Category)
	var b strings.Builder
	b.WriteString("✅ *Transação atualizada!*\n\n")
	fmt.Fprintf(&b, "%s %s - %s\n", emoji, textparse.FormatMoney(t.Amount), t.Category)
	fmt.Fprintf(&b, "📝 %s\n", md(t.Description))
	fmt.Fprintf(&b, "📅 %s", textparse.FormatDate(t.Date))
	if t.Note != "" {
		fmt.Fprintf(&b, "\n📌 %s", md(t.Note))
	}
	return b.String()
}

func monthUsage(command string) string {
	return fmt.Sprintf("⚠️ Use o formato: /%s <mês>\nExemplo: /%s agosto\nExemplo: /%s agosto 2025", command, command, command)
}

func noTransactionsText(month time.Month, year int) string {
	return fmt.Sprintf("📊 Nenhuma transação encontrada para %s de %d.", textparse.MonthName(month), year)
}
