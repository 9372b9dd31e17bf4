package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrialBalanceRow represents a single row in a trial balance report
type TrialBalanceRow struct {
	AccountCode string          `json:"accountCode"`
	AccountName string          `json:"accountName"`
	AccountType AccountType     `json:"accountType"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"` // Signed by the account's normal side
}

// TrialBalance is the per-account summary of one period bucket and fiscal year.
type TrialBalance struct {
	Period      Period            `json:"period"`
	FiscalYear  int               `json:"fiscalYear"`
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"totalDebit"`
	TotalCredit decimal.Decimal   `json:"totalCredit"`
	IsBalanced  bool              `json:"isBalanced"`
}

// AccountLedgerLine is an entry with the account balance after it.
type AccountLedgerLine struct {
	Entry          LedgerEntry     `json:"entry"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

// AccountLedger lists an account's entries over a date range.
type AccountLedger struct {
	Account        Account             `json:"account"`
	From           time.Time           `json:"from"`
	To             time.Time           `json:"to"`
	Lines          []AccountLedgerLine `json:"lines"`
	ClosingBalance decimal.Decimal     `json:"closingBalance"`
}

// AccountTotal is the raw debit and credit sum of one account over a bucket.
type AccountTotal struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}
