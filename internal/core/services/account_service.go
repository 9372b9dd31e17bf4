package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// DefaultChartCacheTTL applies when no TTL option is given.
const DefaultChartCacheTTL = 5 * time.Minute

// accountService implements the AccountSvcFacade interface
type accountService struct {
	BaseService
	accountRepo portsrepo.AccountRepositoryFacade
	chartCache  *cache.Cache
}

// AccountServiceOption is a functional option for configuring the account service
type AccountServiceOption func(*accountService)

// WithChartCacheTTL sets how long positive chart lookups are cached. Zero or less disables the cache.
func WithChartCacheTTL(ttl time.Duration) AccountServiceOption {
	return func(s *accountService) {
		if ttl <= 0 {
			s.chartCache = nil
			return
		}
		s.chartCache = cache.New(ttl, 2*ttl)
	}
}

// NewAccountService creates a new account service with the provided options
func NewAccountService(repo portsrepo.AccountRepositoryFacade, options ...AccountServiceOption) portssvc.AccountSvcFacade {
	svc := &accountService{
		accountRepo: repo,
		chartCache:  cache.New(DefaultChartCacheTTL, 2*DefaultChartCacheTTL),
	}

	// Apply all options
	for _, option := range options {
		option(svc)
	}

	return svc
}

// Ensure accountService implements the AccountSvcFacade interface
var _ portssvc.AccountSvcFacade = (*accountService)(nil)

// Lookup resolves an account code. Unknown codes are never cached.
func (s *accountService) Lookup(ctx context.Context, accountCode string) (*domain.ChartAccount, error) {
	if s.chartCache != nil {
		if v, found := s.chartCache.Get(accountCode); found {
			chart := v.(domain.ChartAccount)
			return &chart, nil
		}
	}

	chart, err := s.accountRepo.FindAccountByCode(ctx, accountCode)
	if err != nil {
		s.LogFailure(ctx, err, "Chart lookup failed", slog.String("account_code", accountCode))
		return nil, err
	}
	if s.chartCache != nil {
		s.chartCache.SetDefault(accountCode, *chart)
	}
	return chart, nil
}

func (s *accountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	acc, err := s.accountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to get account", slog.String("account_id", accountID))
		return nil, err
	}
	return acc, nil
}

func (s *accountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.accountRepo.ListAccounts(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list accounts")
		return nil, err
	}
	return accounts, nil
}

// CreateAccount registers a new active account.
func (s *accountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest, actor string) (*domain.Account, error) {
	if err := validateStruct(req); err != nil {
		s.LogWarn(ctx, err, "Invalid create account request")
		return nil, err
	}

	account := domain.Account{
		AccountID:   uuid.NewString(),
		Code:        req.Code,
		Name:        req.Name,
		AccountType: req.AccountType,
		IsActive:    true,
	}

	if err := s.accountRepo.SaveAccount(ctx, account, actor); err != nil {
		s.LogFailure(ctx, err, "Failed to save account",
			slog.String("account_id", account.AccountID),
			slog.String("account_code", account.Code))
		return nil, err
	}

	if s.chartCache != nil {
		s.chartCache.Delete(account.Code)
	}
	s.LogInfo(ctx, "Account created successfully",
		slog.String("account_id", account.AccountID),
		slog.String("account_code", account.Code))
	return &account, nil
}
