package services

import (
	"context"
	"io"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/SscSPs/erp_reconciliation/internal/utils/pagination"
)

// SessionSvc drives the lifecycle of reconciliation sessions.
type SessionSvc interface {
	CreateSession(ctx context.Context, req dto.CreateSessionRequest, actor string) (*domain.ReconciliationSession, error)

	// UploadStatement ingests a statement file and mirrors outstanding ledger entries into the session.
	// A file that cannot be parsed yields zero records, not an error.
	UploadStatement(ctx context.Context, sessionID string, file io.Reader, filename string, actor string) (*dto.UploadResult, error)

	GetSessionDetails(ctx context.Context, sessionID string, filter domain.ItemFilter, page pagination.Page) (*dto.SessionDetails, error)
	ListSessions(ctx context.Context, filter domain.SessionFilter, limit int) ([]domain.ReconciliationSession, error)

	// CompleteSession fails with *apperrors.UnmatchedItemsRemainError while any item is unmatched.
	CompleteSession(ctx context.Context, sessionID string, actor string) (*domain.ReconciliationSession, error)
	ReviewSession(ctx context.Context, sessionID string, notes string, actor string) (*domain.ReconciliationSession, error)

	// AddNote appends to the audit log; allowed in every status.
	AddNote(ctx context.Context, sessionID string, note string, actor string) error
}

// MatchingSvc pairs statement items with ledger items.
type MatchingSvc interface {
	AutoMatch(ctx context.Context, sessionID string, actor string) (*dto.AutoMatchResult, error)
	ManualMatch(ctx context.Context, sessionID string, req dto.ManualMatchRequest, actor string) (*dto.MatchPair, error)
	Exclude(ctx context.Context, itemID string, reason string, actor string) (*domain.ReconciliationItem, error)
	Unmatch(ctx context.Context, itemID string, actor string) (*dto.MatchPair, error)
	MarkForReview(ctx context.Context, itemID string, reason string, actor string) (*domain.ReconciliationItem, error)
}

// AdjustmentSvc posts balancing entries for a session's residual difference.
type AdjustmentSvc interface {
	CreateAdjustment(ctx context.Context, sessionID string, req dto.CreateAdjustmentRequest, actor string) (*dto.AdjustmentResult, error)
}
