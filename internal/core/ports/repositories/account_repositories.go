package repositories

import (
	"context"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
)

// ChartReader resolves account codes against the chart of accounts.
type ChartReader interface {
	// FindAccountByCode returns ErrAccountNotFound for unknown codes.
	FindAccountByCode(ctx context.Context, code string) (*domain.ChartAccount, error)
}

// AccountRegistryReader resolves reconciliation targets.
type AccountRegistryReader interface {
	// FindAccountByID returns the account with its current ledger balance, or ErrAccountNotFound.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// ListAccounts returns every account ordered by code.
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// AccountWriter registers accounts. The engine itself never modifies them.
type AccountWriter interface {
	// SaveAccount returns ErrDuplicate when the id or code already exists.
	SaveAccount(ctx context.Context, account domain.Account, actor string) error
}

// AccountRepositoryFacade combines all account-related repository interfaces
type AccountRepositoryFacade interface {
	ChartReader
	AccountRegistryReader
	AccountWriter
}
