package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	"github.com/SscSPs/erp_reconciliation/internal/utils/accounting"
	"github.com/shopspring/decimal"
)

// AccountRepository is the in-memory chart of accounts and account registry.
type AccountRepository struct {
	*store
}

var _ portsrepo.AccountRepositoryFacade = (*AccountRepository)(nil)

// withBalance sets CurrentBalance from the posted entries. Caller holds the lock.
func (s *store) withBalance(acc domain.Account) domain.Account {
	debit, credit := decimal.Zero, decimal.Zero
	for _, e := range s.entries {
		if e.AccountCode == acc.Code {
			debit = debit.Add(e.Debit)
			credit = credit.Add(e.Credit)
		}
	}
	if bal, err := accounting.SignedAmount(acc.AccountType, debit, credit); err == nil {
		acc.CurrentBalance = bal
	}
	return acc
}

// FindAccountByCode returns ErrAccountNotFound for unknown codes.
func (r *AccountRepository) FindAccountByCode(ctx context.Context, code string) (*domain.ChartAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.accountCodes[code]
	if !ok {
		return nil, fmt.Errorf("%w: code %s", apperrors.ErrAccountNotFound, code)
	}
	chart := r.accounts[id].ChartAccount()
	return &chart, nil
}

// FindAccountByID returns the account with its ledger balance.
func (r *AccountRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrAccountNotFound, accountID)
	}
	acc = r.withBalance(acc)
	return &acc, nil
}

// ListAccounts returns every account ordered by code.
func (r *AccountRepository) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		accounts = append(accounts, r.withBalance(acc))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

// SaveAccount registers an account. The actor is not tracked in memory.
func (r *AccountRepository) SaveAccount(ctx context.Context, account domain.Account, actor string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.AccountID]; ok {
		return fmt.Errorf("%w: account %s", apperrors.ErrDuplicate, account.AccountID)
	}
	if _, ok := r.accountCodes[account.Code]; ok {
		return fmt.Errorf("%w: account code %s", apperrors.ErrDuplicate, account.Code)
	}
	account.CurrentBalance = decimal.Zero
	r.accounts[account.AccountID] = account
	r.accountCodes[account.Code] = account.AccountID
	return nil
}
