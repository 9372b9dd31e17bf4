package repositories

import (
	"context"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/SscSPs/erp_reconciliation/internal/utils/pagination"
)

// SessionReader defines read operations for reconciliation sessions
type SessionReader interface {
	// FindSessionByID returns ErrSessionNotFound when absent.
	FindSessionByID(ctx context.Context, sessionID string) (*domain.ReconciliationSession, error)

	// ListSessions returns sessions newest first.
	ListSessions(ctx context.Context, filter domain.SessionFilter, limit int) ([]domain.ReconciliationSession, error)
}

// SessionWriter defines write operations for reconciliation sessions.
// Updates compare-and-swap on Version; on success the stored and passed Version are incremented.
type SessionWriter interface {
	SaveSession(ctx context.Context, session domain.ReconciliationSession) error

	// UpdateSession writes the mutable session fields and appends audit records.
	// It returns ErrConflict when the stored version differs.
	UpdateSession(ctx context.Context, session *domain.ReconciliationSession, audit ...domain.AuditLogEntry) error

	// AppendAudit appends audit records without touching anything else, regardless of status.
	AppendAudit(ctx context.Context, sessionID string, audit ...domain.AuditLogEntry) error
}

// ItemReader defines read operations for reconciliation items
type ItemReader interface {
	// FindItemByID returns ErrItemNotFound when absent.
	FindItemByID(ctx context.Context, itemID string) (*domain.ReconciliationItem, error)

	// ListItemsBySession returns every item of a session ordered by date then id.
	ListItemsBySession(ctx context.Context, sessionID string) ([]domain.ReconciliationItem, error)

	// ListItemsPage returns one filtered page of items ordered by date then id, with the next token.
	ListItemsPage(ctx context.Context, sessionID string, filter domain.ItemFilter, page pagination.Page) ([]domain.ReconciliationItem, *string, error)
}

// ItemWriter defines write operations for reconciliation items.
// Both methods compare-and-swap on Version and return ErrConflict on a stale version.
// They return ErrSessionClosed once the owning session is completed or reviewed, and
// bump the session's Version so a concurrent session write re-reads the items.
type ItemWriter interface {
	UpdateItem(ctx context.Context, item *domain.ReconciliationItem) error

	// UpdateItemPair updates both items of a pair, or neither.
	UpdateItemPair(ctx context.Context, a, b *domain.ReconciliationItem) error
}

// ReconciliationRepositoryFacade combines all reconciliation repository interfaces
type ReconciliationRepositoryFacade interface {
	SessionReader
	SessionWriter
	ItemReader
	ItemWriter

	// SaveStatementUpload inserts the new items and updates the session in one unit.
	SaveStatementUpload(ctx context.Context, session *domain.ReconciliationSession, items []domain.ReconciliationItem, audit domain.AuditLogEntry) error
}
