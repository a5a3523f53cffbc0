package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

// CategorySummary aggregates one category of a month.
type CategorySummary struct {
	Category model.Category  `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Count    int             `json:"count"`
	// Share is the percentage of income plus expenses held by the category.
	Share float64 `json:"share"`
}

// MonthlyReport is the income versus spending picture of one month.
type MonthlyReport struct {
	Month         time.Month          `json:"month"`
	Year          int                 `json:"year"`
	TotalIncome   decimal.Decimal     `json:"total_income"`
	TotalExpenses decimal.Decimal     `json:"total_expenses"`
	Balance       decimal.Decimal     `json:"balance"`
	IncomeCount   int                 `json:"income_count"`
	ExpenseCount  int                 `json:"expense_count"`
	Categories    []CategorySummary   `json:"categories"`
	Transactions  []model.Transaction `json:"transactions"`
}

func (r *MonthlyReport) TransactionCount() int {
	return len(r.Transactions)
}

// BuildMonthlyReport aggregates transactions. Income comes first in
// Categories, the rest by descending total.
func BuildMonthlyReport(month time.Month, year int, transactions []model.Transaction) *MonthlyReport {
	report := &MonthlyReport{
		Month:         month,
		Year:          year,
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
		Transactions:  transactions,
	}

	byCategory := make(map[model.Category]*CategorySummary)
	for _, t := range transactions {
		if t.Category.IsIncome() {
			report.TotalIncome = report.TotalIncome.Add(t.Amount)
			report.IncomeCount++
		} else {
			report.TotalExpenses = report.TotalExpenses.Add(t.Amount)
			report.ExpenseCount++
		}

		summary, ok := byCategory[t.Category]
		if !ok {
			summary = &CategorySummary{Category: t.Category, Total: decimal.Zero}
			byCategory[t.Category] = summary
		}
		summary.Total = summary.Total.Add(t.Amount)
		summary.Count++
	}
	report.Balance = report.TotalIncome.Sub(report.TotalExpenses)

	grand := report.TotalIncome.Add(report.TotalExpenses)
	for _, summary := range byCategory {
		if grand.IsPositive() {
			summary.Share = summary.Total.Div(grand).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		report.Categories = append(report.Categories, *summary)
	}

	sort.Slice(report.Categories, func(i, j int) bool {
		a, b := report.Categories[i], report.Categories[j]
		if a.Category.IsIncome() != b.Category.IsIncome() {
			return a.Category.IsIncome()
		}
		if !a.Total.Equal(b.Total) {
			return a.Total.GreaterThan(b.Total)
		}
		return a.Category < b.Category
	})

	return report
}

func (s *ExpenseTracker) GetMonthlyReport(ctx context.Context, userID string, month time.Month, year int) (*MonthlyReport, error) {
	transactions, err := s.GetMonthTransactions(ctx, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("failed to get month transactions: %w", err)
	}
	return BuildMonthlyReport(month, year, transactions), nil
}

// Text renders the report as a chat message.
func (r *MonthlyReport) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 Relatório de %s de %d\n\n", textparse.MonthName(r.Month), r.Year)
	fmt.Fprintf(&b, "💰 Ganhos: %s (%dx)\n", textparse.FormatMoney(r.TotalIncome), r.IncomeCount)
	fmt.Fprintf(&b, "💸 Gastos: %s (%dx)\n", textparse.FormatMoney(r.TotalExpenses), r.ExpenseCount)
	b.WriteString("━━━━━━━━━━━━━━━━━━\n")

	balanceEmoji := "✅"
	if r.Balance.IsNegative() {
		balanceEmoji = "⚠️"
	}
	fmt.Fprintf(&b, "%s Saldo Líquido: %s\n\n", balanceEmoji, textparse.FormatMoney(r.Balance))
	fmt.Fprintf(&b, "📝 Total de Transações: %d\n\n", r.TransactionCount())
	b.WriteString("Por Categoria:\n")

	for _, c := range r.Categories {
		emoji := "💸"
		if c.Category.IsIncome() {
			emoji = "💰"
		}
		fmt.Fprintf(&b, "\n%s %s: %s (%dx) - %.1f%%", emoji, c.Category.Label(), textparse.FormatMoney(c.Total), c.Count, c.Share)
	}

	return b.String()
}
