package charts

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/ivanoskov/lazzyfinance/internal/service"
	"github.com/ivanoskov/lazzyfinance/internal/textparse"
)

// minSliceShare hides pie slices too small to read.
const minSliceShare = 1.0

// ChartGenerator renders report charts as PNG images.
type ChartGenerator struct {
	Width  int
	Height int
}

func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{Width: 1200, Height: 600}
}

func (g *ChartGenerator) background() chart.Style {
	return chart.Style{
		Padding: chart.Box{
			Top:    50,
			Left:   50,
			Right:  50,
			Bottom: 50,
		},
		FillColor: chart.ColorWhite,
	}
}

// GenerateCategoryPieChart draws the month's spending per category. It
// returns nil when there is nothing to draw.
func (g *ChartGenerator) GenerateCategoryPieChart(report *service.MonthlyReport) ([]byte, error) {
	if !report.TotalExpenses.IsPositive() {
		return nil, nil
	}

	total := report.TotalExpenses.InexactFloat64()
	values := make([]chart.Value, 0, len(report.Categories))
	for _, c := range report.Categories {
		if c.Category.IsIncome() {
			continue
		}
		amount := c.Total.InexactFloat64()
		percentage := amount / total * 100
		if percentage <= minSliceShare {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s (%.1f%%)", c.Category, textparse.FormatMoney(c.Total), percentage),
			Value: amount,
		})
	}
	if len(values) == 0 {
		return nil, nil
	}

	pie := chart.PieChart{
		Width:      g.Width,
		Height:     g.Height,
		Values:     values,
		Background: g.background(),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := pie.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render category pie chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// GenerateBalanceChart draws the running balance across the days of the month
// that have transactions. A single day is not enough for a line.
func (g *ChartGenerator) GenerateBalanceChart(report *service.MonthlyReport) ([]byte, error) {
	daily := make(map[time.Time]float64)
	for _, t := range report.Transactions {
		day := textparse.StartOfDay(t.Date)
		amount := t.Amount.InexactFloat64()
		if t.Category.IsIncome() {
			daily[day] += amount
		} else {
			daily[day] -= amount
		}
	}
	if len(daily) < 2 {
		return nil, nil
	}

	days := make([]time.Time, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	balances := make([]float64, len(days))
	running := 0.0
	for i, day := range days {
		running += daily[day]
		balances[i] = running
	}

	graph := chart.Chart{
		Width:      g.Width,
		Height:     g.Height,
		Background: g.background(),
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02/01"),
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("R$ %.0f", v.(float64))
			},
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Saldo",
				XValues: days,
				YValues: balances,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 3,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{
			FontSize:  12,
			FontColor: chart.ColorBlack,
		}),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render balance chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// trendWindow is the moving-average width, in days.
const trendWindow = 7

// GenerateSpendingTrendChart draws daily spending from the first to the last
// day with expenses, with its moving average. It needs two such days.
func (g *ChartGenerator) GenerateSpendingTrendChart(report *service.MonthlyReport) ([]byte, error) {
	spent := make(map[time.Time]float64)
	var first, last time.Time
	for _, t := range report.Transactions {
		if t.Category.IsIncome() {
			continue
		}
		day := textparse.StartOfDay(t.Date)
		spent[day] += t.Amount.InexactFloat64()
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if day.After(last) {
			last = day
		}
	}
	if len(spent) < 2 {
		return nil, nil
	}

	var days []time.Time
	var values []float64
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
		values = append(values, spent[day])
	}

	graph := chart.Chart{
		Width:      g.Width,
		Height:     g.Height,
		Background: g.background(),
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat("02/01"),
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("R$ %.0f", v.(float64))
			},
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Gastos do dia",
				XValues: days,
				YValues: values,
				Style: chart.Style{
					StrokeColor: chart.ColorRed,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    fmt.Sprintf("Média de %d dias", trendWindow),
				XValues: days,
				YValues: movingAverage(values, trendWindow),
				Style: chart.Style{
					StrokeColor:     chart.ColorBlue,
					StrokeWidth:     3,
					StrokeDashArray: []float64{5, 5},
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{
			FontSize:  12,
			FontColor: chart.ColorBlack,
		}),
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render spending trend chart: %w", err)
	}
	return buffer.Bytes(), nil
}

// movingAverage averages each value with up to window-1 values before it.
func movingAverage(values []float64, window int) []float64 {
	result := make([]float64, len(values))
	for i := range values {
		sum := 0.0
		start := max(0, i-window+1)
		for _, v := range values[start : i+1] {
			sum += v
		}
		result[i] = sum / float64(i+1-start)
	}
	return result
}
