package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
)

// ReversalBuilder receives the locked entries of the transaction being reversed
// and returns the reversing transaction to persist. Returning an error aborts the reversal.
type ReversalBuilder func(original []domain.LedgerEntry) (domain.LedgerTransaction, []domain.LedgerEntry, error)

// LedgerReader defines read operations for posted ledger data
type LedgerReader interface {
	// FindTransactionByID returns the header and entries of a transaction, or ErrTransactionNotFound.
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.PostedTransaction, error)

	// ListEntriesByAccount returns the entries for an account code dated within [from, to], in any order.
	ListEntriesByAccount(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error)

	// AccountTotalsByPeriod aggregates debit and credit per account code for one period bucket.
	AccountTotalsByPeriod(ctx context.Context, period domain.Period, fiscalYear int) ([]domain.AccountTotal, error)
}

// LedgerWriter defines write operations for posted ledger data
type LedgerWriter interface {
	// SaveTransaction persists the header and all entries atomically.
	// It returns ErrDuplicate when the transaction id is already taken.
	SaveTransaction(ctx context.Context, txn domain.LedgerTransaction, entries []domain.LedgerEntry) error

	// ReverseTransaction locks the original entries, asks build for the reversing
	// transaction, persists it and flags every original entry as reversed, atomically.
	// It returns ErrTransactionNotFound when the original has no entries.
	ReverseTransaction(ctx context.Context, transactionID string, build ReversalBuilder) (*domain.PostedTransaction, error)
}

// LedgerRepositoryFacade combines all ledger repository interfaces
type LedgerRepositoryFacade interface {
	LedgerReader
	LedgerWriter
}
