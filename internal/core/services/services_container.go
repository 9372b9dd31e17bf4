package services

import (
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	// The chart lookup is shared by posting and session creation.
	container.Account = NewAccountService(
		repos.AccountRepo,
		WithChartCacheTTL(cfg.ChartCacheTTL),
	)

	container.Ledger = NewLedgerService(
		repos.LedgerRepo,
		container.Account,
		WithDefaultCurrency(cfg.DefaultCurrency),
		WithRejectReReversal(cfg.RejectReReversal),
	)

	container.Session = NewSessionService(
		repos.ReconciliationRepo,
		container.Account,
		container.Ledger,
		WithDefaultMatchingRules(domain.MatchingRules{
			DateToleranceDays:  cfg.MatchDateToleranceDays,
			AmountTolerancePct: cfg.MatchAmountTolerance,
			AutoMatchEnabled:   cfg.MatchAutoEnabled,
		}),
	)
	container.Matching = NewMatchingService(repos.ReconciliationRepo)
	container.Adjustment = NewAdjustmentService(repos.ReconciliationRepo, container.Ledger)

	return container
}
