package services

import (
	"context"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
)

// ChartOfAccountsSvc resolves account codes for posting.
type ChartOfAccountsSvc interface {
	// Lookup returns the chart entry for a code, or ErrAccountNotFound.
	Lookup(ctx context.Context, accountCode string) (*domain.ChartAccount, error)
}

// AccountRegistrySvc resolves reconciliation targets.
type AccountRegistrySvc interface {
	// GetAccount returns the account with its current balance, or ErrAccountNotFound.
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)

	// ListAccounts returns every registered account.
	ListAccounts(ctx context.Context) ([]domain.Account, error)
}

// AccountWriterSvc registers accounts.
type AccountWriterSvc interface {
	CreateAccount(ctx context.Context, req dto.CreateAccountRequest, actor string) (*domain.Account, error)
}

// AccountSvcFacade combines all account-related service interfaces
type AccountSvcFacade interface {
	ChartOfAccountsSvc
	AccountRegistrySvc
	AccountWriterSvc
}
