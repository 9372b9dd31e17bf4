package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/shopspring/decimal"
)

// BalanceTolerance absorbs rounding when comparing debit and credit totals.
var BalanceTolerance = decimal.NewFromFloat(0.01)

// MinEntriesPerTransaction is the smallest number of legs a transaction can have.
const MinEntriesPerTransaction = 2

// Period is the fiscal bucket a ledger entry is reported under.
type Period string

const (
	PeriodQuarterly  Period = "quarterly"
	PeriodHalfYearly Period = "half_yearly"
	PeriodYearly     Period = "yearly"
)

// IsValid reports whether p is a known bucket.
func (p Period) IsValid() bool {
	switch p {
	case PeriodQuarterly, PeriodHalfYearly, PeriodYearly:
		return true
	}
	return false
}

// PeriodForMonth maps a calendar month onto its reporting bucket.
// Months 1-3 are "quarterly", 4-6 "half_yearly" and 7-12 "yearly". The mapping is
// inherited from the existing ledger data and must not change without a data migration.
func PeriodForMonth(m time.Month) Period {
	switch {
	case m <= time.March:
		return PeriodQuarterly
	case m <= time.June:
		return PeriodHalfYearly
	default:
		return PeriodYearly
	}
}

// Reference types and module sources produced by the engine itself.
const (
	ReferenceTypeReversal       = "reversal"
	ReferenceTypeReconciliation = "reconciliation_adjustment"
	ModuleSourceReconciliation  = "reconciliation"
)

// EntryLine is one requested leg of a transaction before it is posted.
type EntryLine struct {
	AccountCode string          `json:"accountCode" validate:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description,omitempty"`
}

// Validate enforces the one-sided leg rule: amounts are never negative and
// exactly one of debit or credit is positive.
func (l EntryLine) Validate() error {
	if l.AccountCode == "" {
		return fmt.Errorf("%w: account code is required", apperrors.ErrInvalidEntry)
	}
	if l.Debit.IsNegative() || l.Credit.IsNegative() {
		return fmt.Errorf("%w: negative amount on account %s", apperrors.ErrInvalidEntry, l.AccountCode)
	}
	if l.Debit.IsPositive() == l.Credit.IsPositive() {
		return fmt.Errorf("%w: account %s must carry exactly one of debit or credit", apperrors.ErrInvalidEntry, l.AccountCode)
	}
	return nil
}

// LedgerEntry is one posted leg of a transaction.
type LedgerEntry struct {
	EntryID                 string          `json:"entryID"`
	TransactionID           string          `json:"transactionID"`
	TransactionDate         time.Time       `json:"transactionDate"`
	ModuleSource            string          `json:"moduleSource"`
	ReferenceType           string          `json:"referenceType"`
	ReferenceID             string          `json:"referenceID"`
	AccountCode             string          `json:"accountCode"`
	Description             string          `json:"description"`
	Debit                   decimal.Decimal `json:"debit"`
	Credit                  decimal.Decimal `json:"credit"`
	Currency                string          `json:"currency"`
	Period                  Period          `json:"period"`
	FiscalYear              int             `json:"fiscalYear"`
	IsReversed              bool            `json:"isReversed"`
	ReversedByTransactionID *string         `json:"reversedByTransactionID,omitempty"`
	ReversesTransactionID   *string         `json:"reversesTransactionID,omitempty"`
	CreatedAt               time.Time       `json:"createdAt"`
	CreatedBy               string          `json:"createdBy"`
}

// Line returns the entry as an EntryLine.
func (e LedgerEntry) Line() EntryLine {
	return EntryLine{AccountCode: e.AccountCode, Debit: e.Debit, Credit: e.Credit, Description: e.Description}
}

// IsReversal reports whether the entry belongs to a reversing transaction.
func (e LedgerEntry) IsReversal() bool {
	return e.ReversesTransactionID != nil
}

// Net returns debit minus credit.
func (e LedgerEntry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// LedgerTransaction is the header shared by all legs of one posting.
type LedgerTransaction struct {
	TransactionID         string    `json:"transactionID"`
	TransactionDate       time.Time `json:"transactionDate"`
	ModuleSource          string    `json:"moduleSource"`
	ReferenceType         string    `json:"referenceType"`
	ReferenceID           string    `json:"referenceID"`
	Description           string    `json:"description"`
	Currency              string    `json:"currency"`
	Period                Period    `json:"period"`
	FiscalYear            int       `json:"fiscalYear"`
	ReversesTransactionID *string   `json:"reversesTransactionID,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	CreatedBy             string    `json:"createdBy"`
}

// PostedTransaction is a header together with its entries.
type PostedTransaction struct {
	LedgerTransaction
	Entries []LedgerEntry `json:"entries"`
}

// SumLines totals the debit and credit sides of the given lines.
func SumLines(lines []EntryLine) (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	return debits, credits
}

// CheckBalance returns an *apperrors.UnbalancedTransactionError when the
// debit and credit totals differ by more than BalanceTolerance.
func CheckBalance(lines []EntryLine) error {
	debits, credits := SumLines(lines)
	diff := debits.Sub(credits).Abs()
	if diff.GreaterThan(BalanceTolerance) {
		return &apperrors.UnbalancedTransactionError{Debits: debits, Credits: credits, Difference: diff}
	}
	return nil
}

// ValidateLines runs the structural checks that do not need the chart of accounts.
func ValidateLines(lines []EntryLine) error {
	if len(lines) < MinEntriesPerTransaction {
		return fmt.Errorf("%w: a transaction needs at least %d entries, got %d", apperrors.ErrInvalidEntry, MinEntriesPerTransaction, len(lines))
	}
	for _, l := range lines {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ReversedLines swaps the debit and credit side of every entry.
func ReversedLines(entries []LedgerEntry) []EntryLine {
	lines := make([]EntryLine, len(entries))
	for i, e := range entries {
		lines[i] = EntryLine{
			AccountCode: e.AccountCode,
			Debit:       e.Credit,
			Credit:      e.Debit,
			Description: e.Description,
		}
	}
	return lines
}
