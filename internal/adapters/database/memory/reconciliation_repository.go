package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	"github.com/SscSPs/erp_reconciliation/internal/utils/pagination"
)

// ReconciliationRepository keeps sessions and items in memory.
type ReconciliationRepository struct {
	*store
}

var _ portsrepo.ReconciliationRepositoryFacade = (*ReconciliationRepository)(nil)

// SaveSession inserts a new session.
func (r *ReconciliationRepository) SaveSession(ctx context.Context, session domain.ReconciliationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.SessionID]; ok {
		return fmt.Errorf("%w: session %s", apperrors.ErrDuplicate, session.SessionID)
	}
	r.sessions[session.SessionID] = cloneSession(session)
	return nil
}

// FindSessionByID loads one session.
func (r *ReconciliationRepository) FindSessionByID(ctx context.Context, sessionID string) (*domain.ReconciliationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, sessionID)
	}
	s = cloneSession(s)
	return &s, nil
}

// ListSessions returns sessions newest first.
func (r *ReconciliationRepository) ListSessions(ctx context.Context, filter domain.SessionFilter, limit int) ([]domain.ReconciliationSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := []domain.ReconciliationSession{}
	for _, s := range r.sessions {
		if filter.AccountID != "" && s.AccountID != filter.AccountID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		sessions = append(sessions, cloneSession(s))
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].SessionID > sessions[j].SessionID
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// updateSession applies the CAS. Caller holds the write lock.
func (s *store) updateSession(session *domain.ReconciliationSession, audit []domain.AuditLogEntry) error {
	stored, ok := s.sessions[session.SessionID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, session.SessionID)
	}
	if stored.Version != session.Version {
		return fmt.Errorf("%w: %s was modified concurrently", apperrors.ErrConflict, session.SessionID)
	}

	next := cloneSession(*session)
	// The stored log is authoritative; the caller's copy may be stale.
	next.AuditLog = append(append([]domain.AuditLogEntry{}, stored.AuditLog...), audit...)
	next.Version = stored.Version + 1
	next.AuditFields.CreatedAt, next.AuditFields.CreatedBy = stored.CreatedAt, stored.CreatedBy
	s.sessions[session.SessionID] = next

	session.Version = next.Version
	session.AuditLog = append([]domain.AuditLogEntry{}, next.AuditLog...)
	return nil
}

// UpdateSession compare-and-swaps the session on its version and appends audit records.
func (r *ReconciliationRepository) UpdateSession(ctx context.Context, session *domain.ReconciliationSession, audit ...domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateSession(session, audit)
}

// AppendAudit appends audit records regardless of the session status.
func (r *ReconciliationRepository) AppendAudit(ctx context.Context, sessionID string, audit ...domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, sessionID)
	}
	s.AuditLog = append(s.AuditLog, audit...)
	r.sessions[sessionID] = s
	return nil
}

// FindItemByID loads one item.
func (r *ReconciliationRepository) FindItemByID(ctx context.Context, itemID string) (*domain.ReconciliationItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrItemNotFound, itemID)
	}
	it = cloneItem(it)
	return &it, nil
}

// sessionItems returns the items of one session ordered by date then id. Caller holds a lock.
func (s *store) sessionItems(sessionID string, filter domain.ItemFilter) []domain.ReconciliationItem {
	items := []domain.ReconciliationItem{}
	for _, it := range s.items {
		if it.SessionID == sessionID && filter.Matches(it) {
			items = append(items, cloneItem(it))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		di, dj := domain.DateOnly(items[i].Date()), domain.DateOnly(items[j].Date())
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return items[i].ItemID < items[j].ItemID
	})
	return items
}

// ListItemsBySession returns every item of the session.
func (r *ReconciliationRepository) ListItemsBySession(ctx context.Context, sessionID string) ([]domain.ReconciliationItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionItems(sessionID, domain.ItemFilter{}), nil
}

// ListItemsPage returns one keyset page of items.
func (r *ReconciliationRepository) ListItemsPage(ctx context.Context, sessionID string, filter domain.ItemFilter, page pagination.Page) ([]domain.ReconciliationItem, *string, error) {
	page = page.Normalize()

	var cursor *pagination.Cursor
	if page.NextToken != "" {
		c, err := pagination.DecodeToken(page.NextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
		}
		cursor = &c
	}

	r.mu.RLock()
	all := r.sessionItems(sessionID, filter)
	r.mu.RUnlock()

	items := []domain.ReconciliationItem{}
	for _, it := range all {
		if cursor != nil && !cursor.After(domain.DateOnly(it.Date()), it.ItemID) {
			continue
		}
		items = append(items, it)
	}

	var next *string
	if len(items) > page.Limit {
		items = items[:page.Limit]
		last := items[len(items)-1]
		token := pagination.EncodeToken(domain.DateOnly(last.Date()), last.ItemID)
		next = &token
	}
	return items, next, nil
}

// checkItem verifies existence and version. Caller holds the write lock.
func (s *store) checkItem(it *domain.ReconciliationItem) error {
	stored, ok := s.items[it.ItemID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrItemNotFound, it.ItemID)
	}
	if stored.Version != it.Version {
		return fmt.Errorf("%w: %s was modified concurrently", apperrors.ErrConflict, it.ItemID)
	}
	return nil
}

// putItem stores the mutable fields of the item and bumps its version. Caller holds the write lock.
func (s *store) putItem(it *domain.ReconciliationItem) {
	stored := s.items[it.ItemID]
	next := cloneItem(*it)
	// Side data and creation stamps never change after insert.
	next.StatementEntry, next.GLEntry = stored.StatementEntry, stored.GLEntry
	next.SessionID = stored.SessionID
	next.CreatedAt, next.CreatedBy = stored.CreatedAt, stored.CreatedBy
	next.Version = stored.Version + 1
	s.items[it.ItemID] = next
	it.Version = next.Version
}

// claimOpenSession fails unless the session owning the stored item is open, then bumps
// the session version so a session write based on older items loses its CAS.
// Caller holds the write lock and has checked the item exists.
func (s *store) claimOpenSession(itemID string) error {
	sessionID := s.items[itemID].SessionID
	session, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, sessionID)
	}
	if err := session.EnsureOpen(); err != nil {
		return err
	}
	session.Version++
	s.sessions[sessionID] = session
	return nil
}

// UpdateItem compare-and-swaps one item on its version. The owning session must be open.
func (r *ReconciliationRepository) UpdateItem(ctx context.Context, item *domain.ReconciliationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkItem(item); err != nil {
		return err
	}
	if err := r.claimOpenSession(item.ItemID); err != nil {
		return err
	}
	r.putItem(item)
	return nil
}

// UpdateItemPair updates both items or neither.
func (r *ReconciliationRepository) UpdateItemPair(ctx context.Context, a, b *domain.ReconciliationItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkItem(a); err != nil {
		return err
	}
	if err := r.checkItem(b); err != nil {
		return err
	}
	if err := r.claimOpenSession(a.ItemID); err != nil {
		return err
	}
	r.putItem(a)
	r.putItem(b)
	return nil
}

// SaveStatementUpload inserts the items and updates the session as one unit.
func (r *ReconciliationRepository) SaveStatementUpload(ctx context.Context, session *domain.ReconciliationSession, items []domain.ReconciliationItem, audit domain.AuditLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.sessions[session.SessionID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, session.SessionID)
	}
	if stored.Version != session.Version {
		return fmt.Errorf("%w: %s was modified concurrently", apperrors.ErrConflict, session.SessionID)
	}

	mirrored := make(map[string]bool)
	for _, it := range r.items {
		if it.SessionID == session.SessionID && it.GLEntry != nil {
			mirrored[it.GLEntry.LedgerEntryID] = true
		}
	}
	for _, it := range items {
		if _, ok := r.items[it.ItemID]; ok {
			return fmt.Errorf("%w: item %s", apperrors.ErrDuplicate, it.ItemID)
		}
		if it.GLEntry != nil {
			if mirrored[it.GLEntry.LedgerEntryID] {
				return fmt.Errorf("%w: ledger entry %s already mirrored into session %s", apperrors.ErrConflict, it.GLEntry.LedgerEntryID, session.SessionID)
			}
			mirrored[it.GLEntry.LedgerEntryID] = true
		}
	}

	for _, it := range items {
		r.items[it.ItemID] = cloneItem(it)
	}
	return r.updateSession(session, []domain.AuditLogEntry{audit})
}
