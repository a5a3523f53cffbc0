package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/repository"
	"github.com/ivanoskov/lazzyfinance/internal/service"
)

// The dashboard speaks Portuguese field names.

type userJSON struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName,omitempty"`
	Username  string `json:"username,omitempty"`
}

type transactionJSON struct {
	ID           string  `json:"id"`
	Valor        float64 `json:"valor"`
	Categoria    string  `json:"categoria"`
	Descricao    string  `json:"descricao"`
	DataGasto    string  `json:"dataGasto"`
	Nota         string  `json:"nota,omitempty"`
	CriadoEm     string  `json:"criadoEm,omitempty"`
	AtualizadoEm string  `json:"atualizadoEm,omitempty"`
}

func newTransactionJSON(t model.Transaction, withTimestamps bool) transactionJSON {
	out := transactionJSON{
		ID:        t.ID,
		Valor:     t.Amount.InexactFloat64(),
		Categoria: string(t.Category),
		Descricao: t.Description,
		DataGasto: t.Date.Format(time.RFC3339),
		Nota:      t.Note,
	}
	if withTimestamps {
		out.CriadoEm = t.CreatedAt.Format(time.RFC3339)
		out.AtualizadoEm = t.UpdatedAt.Format(time.RFC3339)
	}
	return out
}

func transactionsJSON(list []model.Transaction, withTimestamps bool) []transactionJSON {
	out := make([]transactionJSON, 0, len(list))
	for _, t := range list {
		out = append(out, newTransactionJSON(t, withTimestamps))
	}
	return out
}

type recurringJSON struct {
	ID        string  `json:"id"`
	Valor     float64 `json:"valor"`
	Categoria string  `json:"categoria"`
	Descricao string  `json:"descricao"`
	DiaDoMes  int     `json:"diaDoMes"`
	Nota      string  `json:"nota,omitempty"`
	Ativo     bool    `json:"ativo"`
	CriadoEm  string  `json:"criadoEm"`
}

type categoryJSON struct {
	Categoria  string  `json:"categoria"`
	Total      float64 `json:"total"`
	Quantidade int     `json:"quantidade"`
}

type statsJSON struct {
	Mes                  int            `json:"mes"`
	Ano                  int            `json:"ano"`
	TotalGanhos          float64        `json:"totalGanhos"`
	TotalGastos          float64        `json:"totalGastos"`
	SaldoLiquido         float64        `json:"saldoLiquido"`
	QuantidadeTransacoes int            `json:"quantidadeTransacoes"`
	QuantidadeGanhos     int            `json:"quantidadeGanhos"`
	QuantidadeGastos     int            `json:"quantidadeGastos"`
	ResumoPorCategoria   []categoryJSON `json:"resumoPorCategoria"`
}

// updateRequest is the body of PUT /api/transactions/{id}. Absent fields are
// left unchanged.
type updateRequest struct {
	Valor     *decimal.Decimal `json:"valor"`
	Categoria *string          `json:"categoria"`
	Descricao *string          `json:"descricao"`
	DataGasto *string          `json:"dataGasto"`
	Nota      *string          `json:"nota"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.ledger.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, _ *http.Request, user *model.User) {
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user": userJSON{
			ID:        user.ID,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Username:  user.Username,
		},
	})
}

func (s *Server) handleMonthTransactions(w http.ResponseWriter, r *http.Request, user *model.User) {
	month, year, ok := s.monthQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Mês ou ano inválido")
		return
	}

	list, err := s.ledger.GetMonthTransactions(r.Context(), user.ID, month, year)
	if err != nil {
		s.logger.Error("loading transactions failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao buscar transações")
		return
	}

	items := transactionsJSON(list, true)
	writeJSON(w, http.StatusOK, map[string]any{
		"mes":        int(month),
		"ano":        year,
		"transacoes": items,
		"total":      len(items),
	})
}

func (s *Server) handleAllTransactions(w http.ResponseWriter, r *http.Request, user *model.User) {
	list, err := s.ledger.GetAllTransactions(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("loading transactions failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao buscar transações")
		return
	}

	items := transactionsJSON(list, false)
	writeJSON(w, http.StatusOK, map[string]any{
		"transacoes": items,
		"total":      len(items),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, user *model.User) {
	month, year, ok := s.monthQuery(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Mês ou ano inválido")
		return
	}

	report, err := s.ledger.GetMonthlyReport(r.Context(), user.ID, month, year)
	if err != nil {
		s.logger.Error("building stats failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao gerar estatísticas")
		return
	}

	out := statsJSON{
		Mes:                  int(month),
		Ano:                  year,
		TotalGanhos:          report.TotalIncome.InexactFloat64(),
		TotalGastos:          report.TotalExpenses.InexactFloat64(),
		SaldoLiquido:         report.Balance.InexactFloat64(),
		QuantidadeTransacoes: report.TransactionCount(),
		QuantidadeGanhos:     report.IncomeCount,
		QuantidadeGastos:     report.ExpenseCount,
		ResumoPorCategoria:   make([]categoryJSON, 0, len(report.Categories)),
	}
	for _, c := range report.Categories {
		out.ResumoPorCategoria = append(out.ResumoPorCategoria, categoryJSON{
			Categoria:  string(c.Category),
			Total:      c.Total.InexactFloat64(),
			Quantidade: c.Count,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, user *model.User) {
	id := r.PathValue("id")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido")
		return
	}

	update, msg := s.buildUpdate(req)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	_, err := s.ledger.UpdateTransaction(r.Context(), id, user.ID, update)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Transação não encontrada ou não pertence ao usuário")
		return
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidCategory):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("updating transaction failed", "user_id", user.ID, "transaction_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao atualizar transação")
		return
	}

	s.logger.Info("transaction updated from dashboard", "user_id", user.ID, "transaction_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Transação atualizada com sucesso"})
}

// buildUpdate converts the request into a ledger update. A non-empty string
// is the message for a bad request. Empty category and description are
// ignored, as the dashboard sends them blank when untouched.
func (s *Server) buildUpdate(req updateRequest) (model.TransactionUpdate, string) {
	var update model.TransactionUpdate

	update.Amount = req.Valor
	if req.Categoria != nil && *req.Categoria != "" {
		category, ok := model.ParseCategory(*req.Categoria)
		if !ok {
			return update, "Categoria inválida"
		}
		update.Category = &category
	}
	if req.Descricao != nil && *req.Descricao != "" {
		update.Description = req.Descricao
	}
	if req.DataGasto != nil && *req.DataGasto != "" {
		date, ok := parseDate(*req.DataGasto, s.ledger.Now().Location())
		if !ok {
			return update, "Data inválida"
		}
		update.Date = &date
	}
	update.Note = req.Nota
	return update, ""
}

// parseDate accepts RFC 3339 timestamps and plain yyyy-mm-dd dates.
func parseDate(v string, loc *time.Location) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(loc), true
	}
	if t, err := time.ParseInLocation(time.DateOnly, v, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, user *model.User) {
	id := r.PathValue("id")

	err := s.ledger.DeleteTransaction(r.Context(), id, user.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Transação não encontrada ou não pertence ao usuário")
		return
	case err != nil:
		s.logger.Error("deleting transaction failed", "user_id", user.ID, "transaction_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao deletar transação")
		return
	}

	s.logger.Info("transaction deleted from dashboard", "user_id", user.ID, "transaction_id", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Transação deletada com sucesso"})
}

func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request, user *model.User) {
	rules, err := s.ledger.ListRecurringRules(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("loading recurring rules failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro ao buscar gastos fixos")
		return
	}

	items := make([]recurringJSON, 0, len(rules))
	for _, rule := range rules {
		items = append(items, recurringJSON{
			ID:        rule.ID,
			Valor:     rule.Amount.InexactFloat64(),
			Categoria: string(rule.Category),
			Descricao: rule.Description,
			DiaDoMes:  rule.DayOfMonth,
			Nota:      rule.Note,
			Ativo:     rule.Active,
			CriadoEm:  rule.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gastosFixos": items,
		"total":       len(items),
	})
}
