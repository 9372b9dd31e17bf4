package ingestion

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Day-first layouts are tried before month-first ones.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"01-02-06",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOnly(t), nil
		}
	}
	// Spreadsheet cells without a date format come through as serial numbers.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial < 100000 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return domain.DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// parseAmount accepts thousands separators, currency symbols and parentheses for negatives.
func parseAmount(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		negative = true
		raw = raw[1 : len(raw)-1]
	}

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-':
			negative = !negative
		case r == ',' || r == ' ' || r == '\u00a0' || r == '+':
		default:
			// currency symbols and codes
			if r > 127 || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r == '$' {
				continue
			}
			return decimal.Zero, fmt.Errorf("invalid amount %q", s)
		}
	}
	if b.Len() == 0 {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return parseAmount(s)
}

var strictPolicy = bluemonday.StrictPolicy()

// sanitizeText strips markup from free text taken out of an uploaded file.
// The policy entity-encodes what it keeps, so the result is unescaped back to plain text.
func sanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}
