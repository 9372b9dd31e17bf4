package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	"github.com/SscSPs/erp_reconciliation/internal/utils/pagination"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxReconciliationRepository stores sessions and their items.
// The audit log, adjustments and matching rules live as JSONB on the session row.
type PgxReconciliationRepository struct {
	BaseRepository
}

func newPgxReconciliationRepository(pool *pgxpool.Pool) portsrepo.ReconciliationRepositoryFacade {
	return &PgxReconciliationRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ReconciliationRepositoryFacade = (*PgxReconciliationRepository)(nil)

const sessionColumns = `
	session_id, account_id, account_code, account_name, account_type, ledger_account_type,
	period_start, period_end, statement_balance, gl_balance, difference, status,
	matching_rules, summary, adjustments, audit_log, completed_at, reviewed_at, reviewed_by, review_notes,
	version, created_at, created_by, last_updated_at, last_updated_by`

const itemColumns = `
	item_id, session_id, statement_entry, gl_entry, match_status, match_type, match_confidence,
	matched_item_id, matching_details, reason, version, created_at, created_by, last_updated_at, last_updated_by`

func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode json: %w", apperrors.ErrInternal, err)
	}
	return b, nil
}

func scanSession(row pgx.Row) (*domain.ReconciliationSession, error) {
	var (
		s                                   domain.ReconciliationSession
		accountType, ledgerType, status     string
		rules, summary, adjustments, audits []byte
	)
	err := row.Scan(
		&s.SessionID, &s.AccountID, &s.AccountCode, &s.AccountName, &accountType, &ledgerType,
		&s.PeriodStart, &s.PeriodEnd, &s.StatementBalance, &s.GLBalance, &s.Difference, &status,
		&rules, &summary, &adjustments, &audits, &s.CompletedAt, &s.ReviewedAt, &s.ReviewedBy, &s.ReviewNotes,
		&s.Version, &s.CreatedAt, &s.CreatedBy, &s.LastUpdatedAt, &s.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	s.AccountType = domain.ReconciliationAccountType(accountType)
	s.LedgerAccountType = domain.AccountType(ledgerType)
	s.Status = domain.SessionStatus(status)
	for _, f := range []struct {
		raw []byte
		dst any
	}{{rules, &s.MatchingRules}, {summary, &s.Summary}, {adjustments, &s.Adjustments}, {audits, &s.AuditLog}} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", s.SessionID, err)
		}
	}
	return &s, nil
}

func scanItem(row pgx.Row) (*domain.ReconciliationItem, error) {
	var (
		it                     domain.ReconciliationItem
		stmt, gl, details      []byte
		matchStatus, matchType string
	)
	err := row.Scan(
		&it.ItemID, &it.SessionID, &stmt, &gl, &matchStatus, &matchType, &it.MatchConfidence,
		&it.MatchedItemID, &details, &it.Reason, &it.Version, &it.CreatedAt, &it.CreatedBy, &it.LastUpdatedAt, &it.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	it.MatchStatus = domain.MatchStatus(matchStatus)
	it.MatchType = domain.MatchType(matchType)
	if len(stmt) > 0 {
		it.StatementEntry = &domain.StatementEntry{}
		if err := json.Unmarshal(stmt, it.StatementEntry); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", it.ItemID, err)
		}
	}
	if len(gl) > 0 {
		it.GLEntry = &domain.GLEntry{}
		if err := json.Unmarshal(gl, it.GLEntry); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", it.ItemID, err)
		}
	}
	if len(details) > 0 {
		it.MatchingDetails = &domain.MatchingDetails{}
		if err := json.Unmarshal(details, it.MatchingDetails); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", it.ItemID, err)
		}
	}
	return &it, nil
}

// SaveSession inserts a new session.
func (r *PgxReconciliationRepository) SaveSession(ctx context.Context, s domain.ReconciliationSession) error {
	rules, err := marshalJSON(s.MatchingRules)
	if err != nil {
		return err
	}
	summary, err := marshalJSON(s.Summary)
	if err != nil {
		return err
	}
	adjustments, err := marshalJSON(nonNil(s.Adjustments))
	if err != nil {
		return err
	}
	audit, err := marshalJSON(nonNil(s.AuditLog))
	if err != nil {
		return err
	}

	query := `
		INSERT INTO reconciliation_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`
	_, err = r.Pool.Exec(ctx, query,
		s.SessionID, s.AccountID, s.AccountCode, s.AccountName, string(s.AccountType), string(s.LedgerAccountType),
		s.PeriodStart, s.PeriodEnd, s.StatementBalance, s.GLBalance, s.Difference, string(s.Status),
		rules, summary, adjustments, audit, s.CompletedAt, s.ReviewedAt, s.ReviewedBy, s.ReviewNotes,
		s.Version, s.CreatedAt, s.CreatedBy, s.LastUpdatedAt, s.LastUpdatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: session %s", apperrors.ErrDuplicate, s.SessionID)
		}
		return storeError("failed to save session "+s.SessionID, err)
	}
	return nil
}

// FindSessionByID loads one session.
func (r *PgxReconciliationRepository) FindSessionByID(ctx context.Context, sessionID string) (*domain.ReconciliationSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM reconciliation_sessions WHERE session_id = $1`
	s, err := scanSession(r.Pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, sessionID)
		}
		return nil, storeError("failed to find session "+sessionID, err)
	}
	return s, nil
}

// ListSessions returns sessions newest first.
func (r *PgxReconciliationRepository) ListSessions(ctx context.Context, filter domain.SessionFilter, limit int) ([]domain.ReconciliationSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM reconciliation_sessions
		WHERE ($1 = '' OR account_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, session_id DESC
		LIMIT $3
	`
	rows, err := r.Pool.Query(ctx, query, filter.AccountID, string(filter.Status), limit)
	if err != nil {
		return nil, storeError("failed to list sessions", err)
	}
	defer rows.Close()

	sessions := []domain.ReconciliationSession{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, storeError("failed to scan session", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate sessions", err)
	}
	return sessions, nil
}

// UpdateSession compare-and-swaps the session on its version and appends audit records.
func (r *PgxReconciliationRepository) UpdateSession(ctx context.Context, s *domain.ReconciliationSession, audit ...domain.AuditLogEntry) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return updateSessionTx(ctx, tx, s, audit)
	})
}

func updateSessionTx(ctx context.Context, tx pgx.Tx, s *domain.ReconciliationSession, audit []domain.AuditLogEntry) error {
	rules, err := marshalJSON(s.MatchingRules)
	if err != nil {
		return err
	}
	summary, err := marshalJSON(s.Summary)
	if err != nil {
		return err
	}
	adjustments, err := marshalJSON(nonNil(s.Adjustments))
	if err != nil {
		return err
	}
	appended, err := marshalJSON(nonNil(audit))
	if err != nil {
		return err
	}

	query := `
		UPDATE reconciliation_sessions
		SET statement_balance = $3, gl_balance = $4, difference = $5, status = $6,
		    matching_rules = $7, summary = $8, adjustments = $9, audit_log = audit_log || $10::jsonb,
		    completed_at = $11, reviewed_at = $12, reviewed_by = $13, review_notes = $14,
		    last_updated_at = $15, last_updated_by = $16, version = version + 1
		WHERE session_id = $1 AND version = $2
	`
	tag, err := tx.Exec(ctx, query,
		s.SessionID, s.Version, s.StatementBalance, s.GLBalance, s.Difference, string(s.Status),
		rules, summary, adjustments, appended,
		s.CompletedAt, s.ReviewedAt, s.ReviewedBy, s.ReviewNotes,
		s.LastUpdatedAt, s.LastUpdatedBy,
	)
	if err != nil {
		return storeError("failed to update session "+s.SessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return missingOrStale(ctx, tx, "reconciliation_sessions", "session_id", s.SessionID, apperrors.ErrSessionNotFound)
	}
	s.Version++
	s.AuditLog = append(s.AuditLog, audit...)
	return nil
}

// AppendAudit appends audit records regardless of the session status.
func (r *PgxReconciliationRepository) AppendAudit(ctx context.Context, sessionID string, audit ...domain.AuditLogEntry) error {
	appended, err := marshalJSON(nonNil(audit))
	if err != nil {
		return err
	}
	query := `UPDATE reconciliation_sessions SET audit_log = audit_log || $2::jsonb WHERE session_id = $1`
	tag, err := r.Pool.Exec(ctx, query, sessionID, appended)
	if err != nil {
		return storeError("failed to append audit to session "+sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrSessionNotFound, sessionID)
	}
	return nil
}

// FindItemByID loads one item.
func (r *PgxReconciliationRepository) FindItemByID(ctx context.Context, itemID string) (*domain.ReconciliationItem, error) {
	query := `SELECT ` + itemColumns + ` FROM reconciliation_items WHERE item_id = $1`
	it, err := scanItem(r.Pool.QueryRow(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrItemNotFound, itemID)
		}
		return nil, storeError("failed to find item "+itemID, err)
	}
	return it, nil
}

// ListItemsBySession returns every item of the session.
func (r *PgxReconciliationRepository) ListItemsBySession(ctx context.Context, sessionID string) ([]domain.ReconciliationItem, error) {
	query := `SELECT ` + itemColumns + ` FROM reconciliation_items WHERE session_id = $1 ORDER BY item_date, item_id`
	return r.queryItems(ctx, query, sessionID)
}

// ListItemsPage returns one keyset page of items.
func (r *PgxReconciliationRepository) ListItemsPage(ctx context.Context, sessionID string, filter domain.ItemFilter, page pagination.Page) ([]domain.ReconciliationItem, *string, error) {
	page = page.Normalize()

	var (
		cursorDate *time.Time
		cursorID   string
	)
	if page.NextToken != "" {
		c, err := pagination.DecodeToken(page.NextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
		}
		cursorDate, cursorID = &c.At, c.ID
	}

	query := `
		SELECT ` + itemColumns + `
		FROM reconciliation_items
		WHERE session_id = $1
		  AND ($2 = '' OR match_status = $2)
		  AND ($3 = '' OR side = $3)
		  AND ($4::date IS NULL OR (item_date, item_id) > ($4::date, $5))
		ORDER BY item_date, item_id
		LIMIT $6
	`
	// One extra row tells whether another page exists.
	items, err := r.queryItems(ctx, query, sessionID, string(filter.MatchStatus), string(filter.Side), cursorDate, cursorID, page.Limit+1)
	if err != nil {
		return nil, nil, err
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

func (r *PgxReconciliationRepository) queryItems(ctx context.Context, query string, args ...any) ([]domain.ReconciliationItem, error) {
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("failed to query items", err)
	}
	defer rows.Close()

	items := []domain.ReconciliationItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storeError("failed to scan item", err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate items", err)
	}
	return items, nil
}

// UpdateItem compare-and-swaps one item on its version. The owning session must be open.
func (r *PgxReconciliationRepository) UpdateItem(ctx context.Context, item *domain.ReconciliationItem) error {
	orig := item.Version
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockOpenSessionTx(ctx, tx, item.ItemID); err != nil {
			return err
		}
		return updateItemTx(ctx, tx, item)
	})
	if err != nil {
		item.Version = orig
	}
	return err
}

// UpdateItemPair updates both items in one transaction; a stale version on either rolls back both.
func (r *PgxReconciliationRepository) UpdateItemPair(ctx context.Context, a, b *domain.ReconciliationItem) error {
	origA, origB := a.Version, b.Version
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockOpenSessionTx(ctx, tx, a.ItemID); err != nil {
			return err
		}
		if err := updateItemTx(ctx, tx, a); err != nil {
			return err
		}
		return updateItemTx(ctx, tx, b)
	})
	if err != nil {
		a.Version, b.Version = origA, origB
	}
	return err
}

// lockOpenSessionTx row-locks the session owning the item, fails with ErrSessionClosed
// unless it is open, and bumps its version so a session write based on older items
// loses its compare-and-swap.
func lockOpenSessionTx(ctx context.Context, tx pgx.Tx, itemID string) error {
	var session domain.ReconciliationSession
	var status string
	query := `
		SELECT s.session_id, s.status
		FROM reconciliation_sessions s
		JOIN reconciliation_items i ON i.session_id = s.session_id
		WHERE i.item_id = $1
		FOR UPDATE OF s
	`
	err := tx.QueryRow(ctx, query, itemID).Scan(&session.SessionID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", apperrors.ErrItemNotFound, itemID)
	}
	if err != nil {
		return storeError("failed to lock session of item "+itemID, err)
	}
	session.Status = domain.SessionStatus(status)
	if err := session.EnsureOpen(); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE reconciliation_sessions SET version = version + 1 WHERE session_id = $1`, session.SessionID); err != nil {
		return storeError("failed to bump session "+session.SessionID, err)
	}
	return nil
}

func updateItemTx(ctx context.Context, tx pgx.Tx, it *domain.ReconciliationItem) error {
	var details []byte
	if it.MatchingDetails != nil {
		var err error
		if details, err = marshalJSON(it.MatchingDetails); err != nil {
			return err
		}
	}

	query := `
		UPDATE reconciliation_items
		SET match_status = $3, match_type = $4, match_confidence = $5, matched_item_id = $6,
		    matching_details = $7, reason = $8, last_updated_at = $9, last_updated_by = $10,
		    version = version + 1
		WHERE item_id = $1 AND version = $2
	`
	tag, err := tx.Exec(ctx, query,
		it.ItemID, it.Version, string(it.MatchStatus), string(it.MatchType), it.MatchConfidence, it.MatchedItemID,
		details, it.Reason, it.LastUpdatedAt, it.LastUpdatedBy,
	)
	if err != nil {
		return storeError("failed to update item "+it.ItemID, err)
	}
	if tag.RowsAffected() == 0 {
		return missingOrStale(ctx, tx, "reconciliation_items", "item_id", it.ItemID, apperrors.ErrItemNotFound)
	}
	it.Version++
	return nil
}

// SaveStatementUpload inserts the items and updates the session in one transaction.
func (r *PgxReconciliationRepository) SaveStatementUpload(ctx context.Context, s *domain.ReconciliationSession, items []domain.ReconciliationItem, audit domain.AuditLogEntry) error {
	origVersion := s.Version
	origAudit := len(s.AuditLog)
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO reconciliation_items (
				item_id, session_id, side, item_date, statement_entry, gl_entry, ledger_entry_id,
				match_status, match_type, match_confidence, reason, version,
				created_at, created_by, last_updated_at, last_updated_by
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`
		batch := &pgx.Batch{}
		for _, it := range items {
			var (
				stmt, gl      []byte
				ledgerEntryID *string
				err           error
			)
			if it.StatementEntry != nil {
				if stmt, err = marshalJSON(it.StatementEntry); err != nil {
					return err
				}
			}
			if it.GLEntry != nil {
				if gl, err = marshalJSON(it.GLEntry); err != nil {
					return err
				}
				id := it.GLEntry.LedgerEntryID
				ledgerEntryID = &id
			}
			batch.Queue(query,
				it.ItemID, it.SessionID, string(it.Side()), domain.DateOnly(it.Date()), stmt, gl, ledgerEntryID,
				string(it.MatchStatus), string(it.MatchType), it.MatchConfidence, it.Reason, it.Version,
				it.CreatedAt, it.CreatedBy, it.LastUpdatedAt, it.LastUpdatedBy,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: ledger entry already mirrored into session %s", apperrors.ErrConflict, s.SessionID)
			}
			return storeError("failed to insert statement items", err)
		}
		return updateSessionTx(ctx, tx, s, []domain.AuditLogEntry{audit})
	})
	if err != nil {
		s.Version = origVersion
		s.AuditLog = s.AuditLog[:origAudit]
	}
	return err
}

// missingOrStale distinguishes a vanished row from a concurrent modification after a CAS miss.
func missingOrStale(ctx context.Context, tx pgx.Tx, table, column, id string, notFound error) error {
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, table, column)
	if err := tx.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return storeError("failed to check "+id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return fmt.Errorf("%w: %s was modified concurrently", apperrors.ErrConflict, id)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
