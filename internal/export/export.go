// Package export writes monthly transaction spreadsheets and keeps the export
// directory from growing without bound.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/service"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

const (
	DefaultMaxFileSize = 50 * 1024 * 1024

	transactionsSheet = "Transações"
	lastColumn        = "I"
)

var (
	ErrNoTransactions = errors.New("no transactions in period")
	ErrFileTooLarge   = errors.New("export file too large")
)

var columns = []struct {
	header string
	width  float64
}{
	{"Nº", 8},
	{"Data", 15},
	{"Valor", 15},
	{"Categoria", 15},
	{"Tipo", 12},
	{"Descrição", 30},
	{"Nota", 30},
	{"Criado em", 18},
	{"Atualizado em", 18},
}

// File is a written export.
type File struct {
	// Path is where the workbook lives on disk.
	Path string
	// Name is what the user sees, e.g. LazzyFinance_marco_2025.xlsx.
	Name string
	Size int64
}

type Exporter struct {
	dir     string
	maxSize int64
	loc     *time.Location
	logger  *slog.Logger
}

func NewExporter(dir string, loc *time.Location, logger *slog.Logger) *Exporter {
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{
		dir:     dir,
		maxSize: DefaultMaxFileSize,
		loc:     loc,
		logger:  logger,
	}
}

// FileName is the user facing workbook name for a month.
func FileName(month time.Month, year int) string {
	name := strings.ReplaceAll(textparse.MonthName(month), "ç", "c")
	return fmt.Sprintf("LazzyFinance_%s_%d.xlsx", name, year)
}

// Export writes the report's transactions plus a summary block. Files are
// prefixed with the owner id so that two users exporting the same month never
// collide.
func (e *Exporter) Export(userID string, report *service.MonthlyReport) (*File, error) {
	if len(report.Transactions) == 0 {
		return nil, ErrNoTransactions
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.fill(f, report); err != nil {
		return nil, fmt.Errorf("building workbook: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	if int64(buf.Len()) > e.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, buf.Len())
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}

	name := FileName(report.Month, report.Year)
	path := filepath.Join(e.dir, userID+"_"+name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing export: %w", err)
	}

	e.logger.Info("export written", "path", path, "transactions", len(report.Transactions), "bytes", buf.Len())
	return &File{Path: path, Name: name, Size: int64(buf.Len())}, nil
}

type styles struct {
	header, stripe, border, income, expense, title, bold, categoryHeader int
}

func newStyles(f *excelize.File) (*styles, error) {
	thin := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	solid := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}

	s := &styles{}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
			Fill:      solid("4472C4"),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border:    thin,
		}},
		{&s.stripe, &excelize.Style{Fill: solid("F2F2F2"), Border: thin}},
		{&s.border, &excelize.Style{Border: thin}},
		{&s.income, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Color: "00AA00"},
			Alignment: &excelize.Alignment{Horizontal: "right"},
			Border:    thin,
		}},
		{&s.expense, &excelize.Style{
			Font:      &excelize.Font{Color: "AA0000"},
			Alignment: &excelize.Alignment{Horizontal: "right"},
			Border:    thin,
		}},
		{&s.title, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 14, Color: "4472C4"},
			Fill:      solid("E7E6E6"),
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&s.bold, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&s.categoryHeader, &excelize.Style{
			Font:   &excelize.Font{Bold: true},
			Fill:   solid("D9E1F2"),
			Border: thin,
		}},
	}

	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, err
		}
		*d.dst = id
	}
	return s, nil
}

func (e *Exporter) fill(f *excelize.File, report *service.MonthlyReport) error {
	sheet := transactionsSheet
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, c.width); err != nil {
			return err
		}
		header[i] = c.header
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastColumn+"1", st.header); err != nil {
		return err
	}
	if err := f.SetRowHeight(sheet, 1, 20); err != nil {
		return err
	}

	row := 2
	for i, t := range report.Transactions {
		values := []any{
			i + 1,
			textparse.FormatDate(t.Date),
			textparse.FormatMoney(t.Amount),
			string(t.Category),
			CategoryKind(t.Category),
			t.Description,
			t.Note,
			textparse.FormatDate(t.CreatedAt.In(e.loc)),
			textparse.FormatDate(t.UpdatedAt.In(e.loc)),
		}
		if err := e.setRow(f, row, values); err != nil {
			return err
		}

		rowStyle := st.border
		if i%2 == 0 {
			rowStyle = st.stripe
		}
		if err := f.SetCellStyle(sheet, cell("A", row), cell(lastColumn, row), rowStyle); err != nil {
			return err
		}
		valueStyle := st.expense
		if t.Category.IsIncome() {
			valueStyle = st.income
		}
		if err := f.SetCellStyle(sheet, cell("C", row), cell("C", row), valueStyle); err != nil {
			return err
		}
		row++
	}

	return e.fillSummary(f, st, row+1, report)
}

func (e *Exporter) fillSummary(f *excelize.File, st *styles, row int, report *service.MonthlyReport) error {
	sheet := transactionsSheet
	title := func(text string) error {
		if err := f.SetCellValue(sheet, cell("A", row), text); err != nil {
			return err
		}
		if err := f.MergeCell(sheet, cell("A", row), cell(lastColumn, row)); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell("A", row), cell(lastColumn, row), st.title); err != nil {
			return err
		}
		row += 2
		return nil
	}

	if err := title("RESUMO DO MÊS"); err != nil {
		return err
	}

	period := cases.Title(language.BrazilianPortuguese).String(textparse.MonthName(report.Month))
	if err := e.setRow(f, row, []any{"Período:", fmt.Sprintf("%s de %d", period, report.Year)}); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, cell("B", row), cell(lastColumn, row)); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell("A", row), cell(lastColumn, row), st.bold); err != nil {
		return err
	}
	row += 2

	totals := [][]any{
		{"Total de Ganhos:", textparse.FormatMoney(report.TotalIncome)},
		{"Total de Gastos:", textparse.FormatMoney(report.TotalExpenses)},
		{"Saldo Líquido:", textparse.FormatMoney(report.Balance)},
	}
	for _, values := range totals {
		if err := e.setRow(f, row, values); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell("A", row), cell("B", row), st.border); err != nil {
			return err
		}
		row++
	}
	row++

	if err := title("RESUMO POR CATEGORIA"); err != nil {
		return err
	}

	if err := e.setRow(f, row, []any{"Categoria", "Tipo", "Total", "Quantidade"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, cell("A", row), cell("D", row), st.categoryHeader); err != nil {
		return err
	}
	row++

	for _, c := range report.Categories {
		style := st.expense
		if c.Category.IsIncome() {
			style = st.income
		}
		if err := e.setRow(f, row, []any{string(c.Category), CategoryKind(c.Category), textparse.FormatMoney(c.Total), c.Count}); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell("A", row), cell("D", row), st.border); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell("C", row), cell("C", row), style); err != nil {
			return err
		}
		row++
	}
	return nil
}

func (e *Exporter) setRow(f *excelize.File, row int, values []any) error {
	return f.SetSheetRow(transactionsSheet, cell("A", row), &values)
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// CategoryKind names a category's side of the ledger as shown in exports.
func CategoryKind(c model.Category) string {
	if c.IsIncome() {
		return "Ganho"
	}
	return "Gasto"
}
