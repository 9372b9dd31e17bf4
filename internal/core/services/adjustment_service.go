package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// compensationReason is recorded on reversals of adjustments whose session could not be saved.
const compensationReason = "adjustment rolled back, session update failed"

// adjustmentService implements the AdjustmentSvc interface
type adjustmentService struct {
	BaseService
	reconRepo portsrepo.ReconciliationRepositoryFacade
	ledger    portssvc.LedgerPostingSvc
	sessions  sessionWriter
}

// AdjustmentServiceOption is a functional option for configuring the adjustment service
type AdjustmentServiceOption func(*adjustmentService)

// WithAdjustmentClock overrides the clock used for adjustment stamps.
func WithAdjustmentClock(now func() time.Time) AdjustmentServiceOption {
	return func(s *adjustmentService) {
		s.now = now
	}
}

// NewAdjustmentService creates the service posting balancing entries for sessions.
func NewAdjustmentService(reconRepo portsrepo.ReconciliationRepositoryFacade, ledger portssvc.LedgerPostingSvc, options ...AdjustmentServiceOption) portssvc.AdjustmentSvc {
	svc := &adjustmentService{
		reconRepo: reconRepo,
		ledger:    ledger,
		sessions:  sessionWriter{repo: reconRepo},
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.AdjustmentSvc = (*adjustmentService)(nil)

// adjustmentLines builds the two legs. A positive amount raises the session account's
// balance on its normal side; the offset account takes the mirrored leg.
func adjustmentLines(session *domain.ReconciliationSession, amount decimal.Decimal, offsetCode, description string) []domain.EntryLine {
	abs := amount.Abs()
	own := domain.EntryLine{AccountCode: session.AccountCode, Debit: decimal.Zero, Credit: decimal.Zero, Description: description}
	offset := domain.EntryLine{AccountCode: offsetCode, Debit: decimal.Zero, Credit: decimal.Zero, Description: description}

	increase := amount.IsPositive()
	if session.LedgerAccountType.IsDebitNormal() == increase {
		own.Debit, offset.Credit = abs, abs
	} else {
		own.Credit, offset.Debit = abs, abs
	}
	return []domain.EntryLine{own, offset}
}

// CreateAdjustment posts a balancing transaction and links it to the session.
// When the session cannot be saved afterwards the transaction is reversed again.
func (s *adjustmentService) CreateAdjustment(ctx context.Context, sessionID string, req dto.CreateAdjustmentRequest, actor string) (*dto.AdjustmentResult, error) {
	if err := validateStruct(req); err != nil {
		s.LogWarn(ctx, err, "Invalid adjustment request", slog.String("session_id", sessionID))
		return nil, err
	}
	if req.Amount.IsZero() {
		err := fmt.Errorf("%w: adjustment amount must not be zero", apperrors.ErrValidation)
		s.LogWarn(ctx, err, "Invalid adjustment request", slog.String("session_id", sessionID))
		return nil, err
	}

	session, err := s.reconRepo.FindSessionByID(ctx, sessionID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to load session for adjustment", slog.String("session_id", sessionID))
		return nil, err
	}
	if err := session.EnsureOpen(); err != nil {
		s.LogWarn(ctx, err, "Adjustment rejected", slog.String("session_id", sessionID))
		return nil, err
	}

	posted, err := s.ledger.Post(ctx, dto.PostTransactionRequest{
		Entries:         adjustmentLines(session, req.Amount, req.OffsetAccountCode, req.Description),
		ModuleSource:    domain.ModuleSourceReconciliation,
		ReferenceType:   domain.ReferenceTypeReconciliation,
		ReferenceID:     session.SessionID,
		TransactionDate: session.PeriodEnd,
		Description:     req.Description,
	}, actor)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to post adjustment", slog.String("session_id", sessionID))
		return nil, err
	}

	now := s.Now()
	adjustment := domain.Adjustment{
		AdjustmentID:         uuid.NewString(),
		Description:          req.Description,
		Amount:               req.Amount,
		OffsetAccountCode:    req.OffsetAccountCode,
		JournalTransactionID: posted.TransactionID,
		CreatedAt:            now,
		CreatedBy:            actor,
	}
	audit := domain.NewAuditEntry(domain.AuditAdjustmentCreated, req.Description, actor, now,
		map[string]any{
			"adjustmentID":      adjustment.AdjustmentID,
			"amount":            req.Amount.StringFixed(2),
			"offsetAccountCode": req.OffsetAccountCode,
			"transactionID":     posted.TransactionID,
		})

	updated, err := s.sessions.update(ctx, sessionID, actor, now, func(session *domain.ReconciliationSession, _ []domain.ReconciliationItem) error {
		if err := session.EnsureOpen(); err != nil {
			return err
		}
		session.Adjustments = append(session.Adjustments, adjustment)
		session.GLBalance = session.GLBalance.Add(req.Amount)
		return nil
	}, audit)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to link adjustment to session, reversing it",
			slog.String("session_id", sessionID),
			slog.String("transaction_id", posted.TransactionID))
		s.compensate(ctx, posted.TransactionID, actor)
		return nil, err
	}

	s.LogInfo(ctx, "Adjustment created",
		slog.String("session_id", sessionID),
		slog.String("adjustment_id", adjustment.AdjustmentID),
		slog.String("transaction_id", posted.TransactionID))
	return &dto.AdjustmentResult{
		TransactionID: posted.TransactionID,
		AdjustmentID:  adjustment.AdjustmentID,
		Session:       updated,
	}, nil
}

// compensate reverses an orphaned adjustment transaction. Failure here needs manual cleanup.
func (s *adjustmentService) compensate(ctx context.Context, transactionID, actor string) {
	reversal, err := s.ledger.Reverse(ctx, transactionID, compensationReason, actor)
	if err != nil {
		s.LogError(ctx, err, "Compensating reversal failed, ledger holds an unlinked adjustment",
			slog.String("transaction_id", transactionID))
		return
	}
	s.GetLogger(ctx).Warn("Adjustment compensated",
		slog.String("transaction_id", transactionID),
		slog.String("reversal_id", reversal.TransactionID))
}
