package services

import (
	"context"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/shopspring/decimal"
)

// LedgerPostingSvc defines the write side of the general ledger
type LedgerPostingSvc interface {
	// Post validates and atomically records a balanced transaction.
	Post(ctx context.Context, req dto.PostTransactionRequest, actor string) (*domain.PostedTransaction, error)

	// Reverse records the debit/credit swap of an existing transaction and flags its entries as reversed.
	Reverse(ctx context.Context, transactionID string, reason string, actor string) (*domain.PostedTransaction, error)
}

// LedgerReaderSvc defines read operations on posted data
type LedgerReaderSvc interface {
	GetTransaction(ctx context.Context, transactionID string) (*domain.PostedTransaction, error)

	// GetTrialBalance summarizes every account for one period bucket and fiscal year.
	GetTrialBalance(ctx context.Context, period domain.Period, fiscalYear int) (*domain.TrialBalance, error)

	// GetEntriesByAccount lists an account's entries over [from, to] with a running balance.
	GetEntriesByAccount(ctx context.Context, accountID string, from, to time.Time) (*domain.AccountLedger, error)

	// AccountBalance is the signed sum of an account's entries over [from, to].
	AccountBalance(ctx context.Context, accountCode string, accountType domain.AccountType, from, to time.Time) (decimal.Decimal, error)

	// OutstandingEntries returns entries over [from, to] that are neither reversed nor reversals.
	OutstandingEntries(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error)
}

// LedgerSvcFacade combines all ledger service interfaces
type LedgerSvcFacade interface {
	LedgerPostingSvc
	LedgerReaderSvc
}
