// Package textparse extracts dates, months and amounts from Portuguese chat
// messages and formats values the way the bot shows them.
package textparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	dateRe   = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})[/\-](\d{4}|\d{2})`)
	amountRe = regexp.MustCompile(`\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?\b|\d+[.,]\d{1,2}\b|\d+`)
)

var months = map[string]time.Month{
	"janeiro":   time.January,
	"fevereiro": time.February,
	"marco":     time.March,
	"março":     time.March,
	"abril":     time.April,
	"maio":      time.May,
	"junho":     time.June,
	"julho":     time.July,
	"agosto":    time.August,
	"setembro":  time.September,
	"outubro":   time.October,
	"novembro":  time.November,
	"dezembro":  time.December,
}

var monthNames = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// ParseDate finds the transaction date mentioned in text: "hoje", "ontem" or
// a d/m/y date (two digit years belong to the 2000s). Anything else,
// including impossible dates such as 31/02, yields today. The result is
// midnight in now's location.
func ParseDate(text string, now time.Time) time.Time {
	today := StartOfDay(now)
	lower := strings.ToLower(text)

	if strings.Contains(lower, "hoje") {
		return today
	}
	if strings.Contains(lower, "ontem") {
		return today.AddDate(0, 0, -1)
	}

	m := dateRe.FindStringSubmatch(lower)
	if m == nil {
		return today
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	yearText := m[3]
	if len(yearText) == 2 {
		yearText = "20" + yearText
	}
	year, _ := strconv.Atoi(yearText)

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if d.Day() != day || int(d.Month()) != month {
		return today
	}
	return d
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseMonth resolves a Portuguese month name, with or without cedilla.
func ParseMonth(name string) (time.Month, bool) {
	m, ok := months[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// MonthName returns the lower case Portuguese name of m.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// ParseAmount extracts the first positive amount in text. Dates are ignored;
// "1.500,90", "45.90" and "45,90" are all understood.
func ParseAmount(text string) (decimal.Decimal, bool) {
	cleaned := dateRe.ReplaceAllString(text, " ")

	for _, raw := range amountRe.FindAllString(cleaned, -1) {
		normalized := raw
		switch {
		case strings.Contains(raw, ","):
			normalized = strings.ReplaceAll(raw, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		case strings.Count(raw, ".") > 1 || (strings.Contains(raw, ".") && len(raw)-strings.LastIndex(raw, ".") == 4):
			normalized = strings.ReplaceAll(raw, ".", "")
		}

		amount, err := decimal.NewFromString(normalized)
		if err != nil || !amount.IsPositive() {
			continue
		}
		return amount, true
	}
	return decimal.Zero, false
}

// FormatMoney renders an amount in Brazilian reais, e.g. "R$ 1.500,00".
func FormatMoney(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	fixed := amount.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	return sign + "R$ " + b.String() + "," + fracPart
}

// FormatDate renders t as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
