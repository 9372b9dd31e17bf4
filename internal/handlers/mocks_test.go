package handlers_test

import (
	"context"
	"io"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/SscSPs/erp_reconciliation/internal/utils/pagination"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Mock AccountService ---
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Lookup(ctx context.Context, accountCode string) (*domain.ChartAccount, error) {
	args := m.Called(ctx, accountCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChartAccount), args.Error(1)
}

func (m *MockAccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

func (m *MockAccountService) CreateAccount(ctx context.Context, req dto.CreateAccountRequest, actor string) (*domain.Account, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

var _ portssvc.AccountSvcFacade = (*MockAccountService)(nil)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Post(ctx context.Context, req dto.PostTransactionRequest, actor string) (*domain.PostedTransaction, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostedTransaction), args.Error(1)
}

func (m *MockLedgerService) Reverse(ctx context.Context, transactionID string, reason string, actor string) (*domain.PostedTransaction, error) {
	args := m.Called(ctx, transactionID, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostedTransaction), args.Error(1)
}

func (m *MockLedgerService) GetTransaction(ctx context.Context, transactionID string) (*domain.PostedTransaction, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostedTransaction), args.Error(1)
}

func (m *MockLedgerService) GetTrialBalance(ctx context.Context, period domain.Period, fiscalYear int) (*domain.TrialBalance, error) {
	args := m.Called(ctx, period, fiscalYear)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TrialBalance), args.Error(1)
}

func (m *MockLedgerService) GetEntriesByAccount(ctx context.Context, accountID string, from, to time.Time) (*domain.AccountLedger, error) {
	args := m.Called(ctx, accountID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountLedger), args.Error(1)
}

func (m *MockLedgerService) AccountBalance(ctx context.Context, accountCode string, accountType domain.AccountType, from, to time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, accountCode, accountType, from, to)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerService) OutstandingEntries(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error) {
	args := m.Called(ctx, accountCode, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LedgerEntry), args.Error(1)
}

var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

// --- Mock SessionService ---
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) CreateSession(ctx context.Context, req dto.CreateSessionRequest, actor string) (*domain.ReconciliationSession, error) {
	args := m.Called(ctx, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Error(1)
}

func (m *MockSessionService) UploadStatement(ctx context.Context, sessionID string, file io.Reader, filename string, actor string) (*dto.UploadResult, error) {
	args := m.Called(ctx, sessionID, file, filename, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.UploadResult), args.Error(1)
}

func (m *MockSessionService) GetSessionDetails(ctx context.Context, sessionID string, filter domain.ItemFilter, page pagination.Page) (*dto.SessionDetails, error) {
	args := m.Called(ctx, sessionID, filter, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SessionDetails), args.Error(1)
}

func (m *MockSessionService) ListSessions(ctx context.Context, filter domain.SessionFilter, limit int) ([]domain.ReconciliationSession, error) {
	args := m.Called(ctx, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ReconciliationSession), args.Error(1)
}

func (m *MockSessionService) CompleteSession(ctx context.Context, sessionID string, actor string) (*domain.ReconciliationSession, error) {
	args := m.Called(ctx, sessionID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Error(1)
}

func (m *MockSessionService) ReviewSession(ctx context.Context, sessionID string, notes string, actor string) (*domain.ReconciliationSession, error) {
	args := m.Called(ctx, sessionID, notes, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationSession), args.Error(1)
}

func (m *MockSessionService) AddNote(ctx context.Context, sessionID string, note string, actor string) error {
	args := m.Called(ctx, sessionID, note, actor)
	return args.Error(0)
}

var _ portssvc.SessionSvc = (*MockSessionService)(nil)

// --- Mock MatchingService ---
type MockMatchingService struct {
	mock.Mock
}

func (m *MockMatchingService) AutoMatch(ctx context.Context, sessionID string, actor string) (*dto.AutoMatchResult, error) {
	args := m.Called(ctx, sessionID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.AutoMatchResult), args.Error(1)
}

func (m *MockMatchingService) ManualMatch(ctx context.Context, sessionID string, req dto.ManualMatchRequest, actor string) (*dto.MatchPair, error) {
	args := m.Called(ctx, sessionID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.MatchPair), args.Error(1)
}

func (m *MockMatchingService) Exclude(ctx context.Context, itemID string, reason string, actor string) (*domain.ReconciliationItem, error) {
	args := m.Called(ctx, itemID, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationItem), args.Error(1)
}

func (m *MockMatchingService) Unmatch(ctx context.Context, itemID string, actor string) (*dto.MatchPair, error) {
	args := m.Called(ctx, itemID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.MatchPair), args.Error(1)
}

func (m *MockMatchingService) MarkForReview(ctx context.Context, itemID string, reason string, actor string) (*domain.ReconciliationItem, error) {
	args := m.Called(ctx, itemID, reason, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReconciliationItem), args.Error(1)
}

var _ portssvc.MatchingSvc = (*MockMatchingService)(nil)

// --- Mock AdjustmentService ---
type MockAdjustmentService struct {
	mock.Mock
}

func (m *MockAdjustmentService) CreateAdjustment(ctx context.Context, sessionID string, req dto.CreateAdjustmentRequest, actor string) (*dto.AdjustmentResult, error) {
	args := m.Called(ctx, sessionID, req, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.AdjustmentResult), args.Error(1)
}

var _ portssvc.AdjustmentSvc = (*MockAdjustmentService)(nil)
