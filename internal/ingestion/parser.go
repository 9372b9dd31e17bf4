// Package ingestion turns uploaded bank, vendor and customer statements into normalized records.
package ingestion

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Supported statement formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ParseResult is the outcome of parsing one statement file.
type ParseResult struct {
	Records     []domain.StatementRecord
	SkippedRows int
	Format      string
	AccountType domain.ReconciliationAccountType
}

// DetectFormat picks the format from the file extension. Anything that is not .xlsx is read as CSV.
func DetectFormat(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Parse reads a statement and normalizes every data row.
// Amounts are signed from the reconciled account's perspective: money in is positive.
// Malformed rows are skipped and counted; a file that cannot be read at all returns ErrParse.
func Parse(r io.Reader, filename string, accountType domain.ReconciliationAccountType) (*ParseResult, error) {
	format := DetectFormat(filename)

	var (
		rows    [][]string
		skipped int
		err     error
	)
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r)
	default:
		rows, skipped, err = readCSV(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrParse, filename, err)
	}

	headerIdx, cols, ok := findHeader(rows)
	if !ok {
		return nil, fmt.Errorf("%w: %s: no header row with date and amount columns", apperrors.ErrParse, filename)
	}

	result := &ParseResult{
		Records:     []domain.StatementRecord{},
		SkippedRows: skipped,
		Format:      format,
		AccountType: accountType,
	}
	for _, row := range rows[headerIdx+1:] {
		if isBlank(row) {
			continue
		}
		rec, err := cols.record(row)
		if err != nil {
			result.SkippedRows++
			continue
		}
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

// Column aliases, compared after lower-casing and trimming.
var (
	dateAliases        = []string{"date", "transaction date", "value date", "posting date", "txn date"}
	referenceAliases   = []string{"reference", "ref", "ref no", "reference no", "cheque no", "check no", "transaction id"}
	descriptionAliases = []string{"description", "narration", "details", "memo", "particulars"}
	amountAliases      = []string{"amount"}
	debitAliases       = []string{"debit", "withdrawal", "withdrawals", "money out"}
	creditAliases      = []string{"credit", "deposit", "deposits", "money in"}
	balanceAliases     = []string{"balance", "running balance", "closing balance"}
	typeAliases        = []string{"type", "transaction type", "dr/cr", "cr/dr"}
)

// columns holds the index of each recognised column, -1 when absent.
type columns struct {
	date, reference, description, amount, debit, credit, balance, txType int
}

func findHeader(rows [][]string) (int, columns, bool) {
	for i, row := range rows {
		c := columns{date: -1, reference: -1, description: -1, amount: -1, debit: -1, credit: -1, balance: -1, txType: -1}
		for j, cell := range row {
			name := normalizeHeader(cell)
			switch {
			case c.date < 0 && contains(dateAliases, name):
				c.date = j
			case c.reference < 0 && contains(referenceAliases, name):
				c.reference = j
			case c.description < 0 && contains(descriptionAliases, name):
				c.description = j
			case c.amount < 0 && contains(amountAliases, name):
				c.amount = j
			case c.debit < 0 && contains(debitAliases, name):
				c.debit = j
			case c.credit < 0 && contains(creditAliases, name):
				c.credit = j
			case c.balance < 0 && contains(balanceAliases, name):
				c.balance = j
			case c.txType < 0 && contains(typeAliases, name):
				c.txType = j
			}
		}
		if c.date >= 0 && (c.amount >= 0 || c.debit >= 0 || c.credit >= 0) {
			return i, c, true
		}
	}
	return 0, columns{}, false
}

func (c columns) record(row []string) (domain.StatementRecord, error) {
	date, err := parseDate(cell(row, c.date))
	if err != nil {
		return domain.StatementRecord{}, err
	}

	var amount decimal.Decimal
	if c.amount >= 0 {
		raw := cell(row, c.amount)
		if raw == "" {
			return domain.StatementRecord{}, fmt.Errorf("empty amount")
		}
		if amount, err = parseAmount(raw); err != nil {
			return domain.StatementRecord{}, err
		}
		if isDebitMarker(cell(row, c.txType)) && amount.IsPositive() {
			amount = amount.Neg()
		}
	} else {
		debitRaw, creditRaw := cell(row, c.debit), cell(row, c.credit)
		if debitRaw == "" && creditRaw == "" {
			return domain.StatementRecord{}, fmt.Errorf("empty debit and credit")
		}
		debit, err := parseOptionalAmount(debitRaw)
		if err != nil {
			return domain.StatementRecord{}, err
		}
		credit, err := parseOptionalAmount(creditRaw)
		if err != nil {
			return domain.StatementRecord{}, err
		}
		amount = credit.Abs().Sub(debit.Abs())
	}

	balance, err := parseOptionalAmount(cell(row, c.balance))
	if err != nil {
		return domain.StatementRecord{}, err
	}

	txType := domain.StatementCredit
	if amount.IsNegative() {
		txType = domain.StatementDebit
	}

	return domain.StatementRecord{
		Date:            date,
		Reference:       sanitizeText(cell(row, c.reference)),
		Description:     sanitizeText(cell(row, c.description)),
		Amount:          amount,
		Balance:         balance,
		TransactionType: txType,
	}, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func isDebitMarker(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "dr", "debit", "d", "withdrawal":
		return true
	}
	return false
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ":")
	return strings.Join(strings.Fields(s), " ")
}

func contains(list []string, v string) bool {
	for _, a := range list {
		if a == v {
			return true
		}
	}
	return false
}
