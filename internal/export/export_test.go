package export

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ivanoskov/lazzyfinance/internal/model"
	"github.com/ivanoskov/lazzyfinance/internal/service"
)

func testExporter(t *testing.T) *Exporter {
	t.Helper()
	return NewExporter(filepath.Join(t.TempDir(), "exports"), time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleReport() *service.MonthlyReport {
	created := time.Date(2025, time.March, 2, 10, 0, 0, 0, time.UTC)
	return service.BuildMonthlyReport(time.March, 2025, []model.Transaction{
		{
			Amount: decimal.NewFromInt(3000), Category: model.CategoryIncome, Description: "salário",
			Date: time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), CreatedAt: created, UpdatedAt: created,
		},
		{
			Amount: decimal.RequireFromString("1500.5"), Category: model.CategoryHousing, Description: "aluguel", Note: "março",
			Date: time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC), CreatedAt: created, UpdatedAt: created,
		},
	})
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "LazzyFinance_marco_2025.xlsx", FileName(time.March, 2025))
	assert.Equal(t, "LazzyFinance_dezembro_2024.xlsx", FileName(time.December, 2024))
}

func TestExport(t *testing.T) {
	e := testExporter(t)

	file, err := e.Export("user-1", sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "LazzyFinance_marco_2025.xlsx", file.Name)
	assert.Equal(t, "user-1_LazzyFinance_marco_2025.xlsx", filepath.Base(file.Path))
	assert.Positive(t, file.Size)

	f, err := excelize.OpenFile(file.Path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{transactionsSheet}, f.GetSheetList())

	get := func(c string) string {
		v, err := f.GetCellValue(transactionsSheet, c)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Nº", get("A1"))
	assert.Equal(t, "Atualizado em", get("I1"))
	assert.Equal(t, "01/03/2025", get("B2"))
	assert.Equal(t, "R$ 3.000,00", get("C2"))
	assert.Equal(t, "Ganho", get("E2"))
	assert.Equal(t, "R$ 1.500,50", get("C3"))
	assert.Equal(t, "Gasto", get("E3"))
	assert.Equal(t, "março", get("G3"))
	assert.Equal(t, "RESUMO DO MÊS", get("A5"))
	assert.Equal(t, "Março de 2025", get("B7"))
	assert.Equal(t, "R$ 1.499,50", get("B11"))
	assert.Equal(t, "RESUMO POR CATEGORIA", get("A13"))
	assert.Equal(t, "LUCROS", get("A16"))
	assert.Equal(t, "MORADIA", get("A17"))
}

func TestExport_NoTransactions(t *testing.T) {
	e := testExporter(t)
	_, err := e.Export("user-1", service.BuildMonthlyReport(time.March, 2025, nil))
	assert.ErrorIs(t, err, ErrNoTransactions)
}

func TestExport_TooLarge(t *testing.T) {
	e := testExporter(t)
	e.maxSize = 10

	_, err := e.Export("user-1", sampleReport())
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, statErr := os.Stat(e.dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCleanup(t *testing.T) {
	e := testExporter(t)
	now := time.Now()

	removed, err := e.Cleanup(now, DefaultMaxAge)
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, os.MkdirAll(e.dir, 0o755))
	oldPath := filepath.Join(e.dir, "old.xlsx")
	freshPath := filepath.Join(e.dir, "fresh.xlsx")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(freshPath, []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(e.dir, "nested"), 0o755))

	old := now.Add(-13 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, old, old))

	removed, err = e.Cleanup(now, DefaultMaxAge)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, oldPath)
	assert.FileExists(t, freshPath)
	assert.DirExists(t, filepath.Join(e.dir, "nested"))
}
