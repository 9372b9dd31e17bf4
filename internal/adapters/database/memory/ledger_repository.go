package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// LedgerRepository is the in-memory ledger store. Entries are append-only.
type LedgerRepository struct {
	*store
}

var _ portsrepo.LedgerRepositoryFacade = (*LedgerRepository)(nil)

// insertTransaction appends a header and its entries. Caller holds the write lock.
func (s *store) insertTransaction(txn domain.LedgerTransaction, entries []domain.LedgerEntry) error {
	if _, ok := s.transactions[txn.TransactionID]; ok {
		return fmt.Errorf("%w: transaction id %s", apperrors.ErrDuplicate, txn.TransactionID)
	}
	txn.ReversesTransactionID = cloneString(txn.ReversesTransactionID)
	s.transactions[txn.TransactionID] = txn
	for _, e := range entries {
		s.entries = append(s.entries, cloneEntry(e))
	}
	return nil
}

// SaveTransaction persists the header and every entry.
func (r *LedgerRepository) SaveTransaction(ctx context.Context, txn domain.LedgerTransaction, entries []domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertTransaction(txn, entries)
}

// ReverseTransaction builds and stores the reversal while holding the write lock,
// so no other posting can interleave with it.
func (r *LedgerRepository) ReverseTransaction(ctx context.Context, transactionID string, build portsrepo.ReversalBuilder) (*domain.PostedTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		original []domain.LedgerEntry
		indexes  []int
	)
	for i, e := range r.entries {
		if e.TransactionID == transactionID {
			original = append(original, cloneEntry(e))
			indexes = append(indexes, i)
		}
	}
	if len(original) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTransactionNotFound, transactionID)
	}
	sort.Slice(original, func(i, j int) bool { return original[i].EntryID < original[j].EntryID })

	header, entries, err := build(original)
	if err != nil {
		return nil, err
	}
	if err := r.insertTransaction(header, entries); err != nil {
		return nil, err
	}
	for _, i := range indexes {
		r.entries[i].IsReversed = true
		r.entries[i].ReversedByTransactionID = cloneString(&header.TransactionID)
	}
	return &domain.PostedTransaction{LedgerTransaction: header, Entries: entries}, nil
}

// FindTransactionByID loads a header and its entries.
func (r *LedgerRepository) FindTransactionByID(ctx context.Context, transactionID string) (*domain.PostedTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	txn, ok := r.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTransactionNotFound, transactionID)
	}
	posted := &domain.PostedTransaction{LedgerTransaction: txn, Entries: []domain.LedgerEntry{}}
	for _, e := range r.entries {
		if e.TransactionID == transactionID {
			posted.Entries = append(posted.Entries, cloneEntry(e))
		}
	}
	sort.Slice(posted.Entries, func(i, j int) bool { return posted.Entries[i].EntryID < posted.Entries[j].EntryID })
	return posted, nil
}

// ListEntriesByAccount returns entries for the code dated within [from, to].
func (r *LedgerRepository) ListEntriesByAccount(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start, end := domain.DateOnly(from), domain.DateOnly(to)
	entries := []domain.LedgerEntry{}
	for _, e := range r.entries {
		if e.AccountCode != accountCode {
			continue
		}
		d := domain.DateOnly(e.TransactionDate)
		if d.Before(start) || d.After(end) {
			continue
		}
		entries = append(entries, cloneEntry(e))
	}
	return entries, nil
}

// AccountTotalsByPeriod aggregates debit and credit per account code for one bucket.
func (r *LedgerRepository) AccountTotalsByPeriod(ctx context.Context, period domain.Period, fiscalYear int) ([]domain.AccountTotal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byCode := make(map[string]*domain.AccountTotal)
	for _, e := range r.entries {
		if e.Period != period || e.FiscalYear != fiscalYear {
			continue
		}
		t, ok := byCode[e.AccountCode]
		if !ok {
			t = &domain.AccountTotal{AccountCode: e.AccountCode, Debit: decimal.Zero, Credit: decimal.Zero}
			byCode[e.AccountCode] = t
		}
		t.Debit = t.Debit.Add(e.Debit)
		t.Credit = t.Credit.Add(e.Credit)
	}

	totals := make([]domain.AccountTotal, 0, len(byCode))
	for _, t := range byCode {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].AccountCode < totals[j].AccountCode })
	return totals, nil
}
