package accounting

import (
	"fmt"
	"sort"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/shopspring/decimal"
)

// SignedAmount applies the account's normal side to a debit/credit pair.
// This is used in both services and repositories to ensure consistent accounting logic.
//
//	ASSET/EXPENSE             -> debit - credit
//	LIABILITY/EQUITY/REVENUE  -> credit - debit
func SignedAmount(accountType domain.AccountType, debit, credit decimal.Decimal) (decimal.Decimal, error) {
	switch accountType {
	case domain.Asset, domain.Expense:
		return debit.Sub(credit), nil
	case domain.Liability, domain.Equity, domain.Revenue:
		return credit.Sub(debit), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown account type '%s'", accountType)
	}
}

// SignedEntryAmount is SignedAmount for a posted entry.
func SignedEntryAmount(e domain.LedgerEntry, accountType domain.AccountType) (decimal.Decimal, error) {
	amt, err := SignedAmount(accountType, e.Debit, e.Credit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("entry %s: %w", e.EntryID, err)
	}
	return amt, nil
}

// SortEntries orders entries by transaction date, then creation time, then entry id.
func SortEntries(entries []domain.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.EntryID < b.EntryID
	})
}

// RunningBalance sorts the entries and accumulates their signed amounts starting from opening.
// It returns one line per entry and the closing balance.
func RunningBalance(entries []domain.LedgerEntry, accountType domain.AccountType, opening decimal.Decimal) ([]domain.AccountLedgerLine, decimal.Decimal, error) {
	SortEntries(entries)

	balance := opening
	lines := make([]domain.AccountLedgerLine, 0, len(entries))
	for _, e := range entries {
		amt, err := SignedEntryAmount(e, accountType)
		if err != nil {
			return nil, decimal.Zero, err
		}
		balance = balance.Add(amt)
		lines = append(lines, domain.AccountLedgerLine{Entry: e, RunningBalance: balance})
	}
	return lines, balance, nil
}

// SumSigned totals the signed amounts of the given entries.
func SumSigned(entries []domain.LedgerEntry, accountType domain.AccountType) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range entries {
		amt, err := SignedEntryAmount(e, accountType)
		if err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(amt)
	}
	return sum, nil
}
