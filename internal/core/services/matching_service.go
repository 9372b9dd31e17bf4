package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/SscSPs/erp_reconciliation/internal/core/matching"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
)

// matchingService implements the MatchingSvc interface
type matchingService struct {
	BaseService
	reconRepo portsrepo.ReconciliationRepositoryFacade
	sessions  sessionWriter
}

// MatchingServiceOption is a functional option for configuring the matching service
type MatchingServiceOption func(*matchingService)

// WithMatchingClock overrides the clock stamped into matching details.
func WithMatchingClock(now func() time.Time) MatchingServiceOption {
	return func(s *matchingService) {
		s.now = now
	}
}

// NewMatchingService creates the service that pairs statement and ledger items.
func NewMatchingService(reconRepo portsrepo.ReconciliationRepositoryFacade, options ...MatchingServiceOption) portssvc.MatchingSvc {
	svc := &matchingService{
		reconRepo: reconRepo,
		sessions:  sessionWriter{repo: reconRepo},
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.MatchingSvc = (*matchingService)(nil)

// openSession loads a session and rejects closed ones.
func (s *matchingService) openSession(ctx context.Context, sessionID string) (*domain.ReconciliationSession, error) {
	session, err := s.reconRepo.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.EnsureOpen(); err != nil {
		return nil, err
	}
	return session, nil
}

// AutoMatch pairs every unmatched statement item with its best unmatched ledger candidate.
// Pairs that lose a version race are skipped and counted as conflicts; running it again is safe.
func (s *matchingService) AutoMatch(ctx context.Context, sessionID string, actor string) (*dto.AutoMatchResult, error) {
	session, err := s.openSession(ctx, sessionID)
	if err != nil {
		s.LogFailure(ctx, err, "Auto-match rejected", slog.String("session_id", sessionID))
		return nil, err
	}
	rules := session.MatchingRules
	if !rules.AutoMatchEnabled {
		err := fmt.Errorf("%w: automatic matching is disabled for session %s", apperrors.ErrValidation, sessionID)
		s.LogWarn(ctx, err, "Auto-match rejected", slog.String("session_id", sessionID))
		return nil, err
	}

	items, err := s.reconRepo.ListItemsBySession(ctx, sessionID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list items for auto-match", slog.String("session_id", sessionID))
		return nil, err
	}

	ledgerPool := make([]domain.ReconciliationItem, 0, len(items))
	for _, it := range items {
		if it.Side() == domain.SideLedger && it.MatchStatus == domain.MatchStatusUnmatched {
			ledgerPool = append(ledgerPool, it)
		}
	}
	claim := func(itemID string) {
		for i := range ledgerPool {
			if ledgerPool[i].ItemID == itemID {
				ledgerPool[i].MatchStatus = domain.MatchStatusMatched
				return
			}
		}
	}

	now := s.Now()
	result := &dto.AutoMatchResult{}
	for _, stmt := range matching.StatementQueue(items) {
		best, ok := matching.SelectBest(stmt, ledgerPool, rules)
		if !ok {
			continue
		}

		score := best.Score.Total
		matchType := matching.Classify(score)
		details := best.Score.Details(actor, now)
		stmtItem, glItem := stmt, best.Item
		stmtItem.MarkMatched(glItem.ItemID, matchType, score, details)
		glItem.MarkMatched(stmtItem.ItemID, matchType, score, details)

		err := s.reconRepo.UpdateItemPair(ctx, &stmtItem, &glItem)
		if errors.Is(err, apperrors.ErrSessionClosed) {
			s.LogWarn(ctx, err, "Auto-match stopped, session closed", slog.String("session_id", sessionID))
			return nil, err
		}
		if errors.Is(err, apperrors.ErrConflict) {
			// Someone else touched one side; leave both as they are in the store.
			s.LogDebug(ctx, "Auto-match pair lost a version race",
				slog.String("statement_item_id", stmt.ItemID),
				slog.String("gl_item_id", best.Item.ItemID))
			claim(best.Item.ItemID)
			result.Conflicts++
			continue
		}
		if err != nil {
			s.LogError(ctx, err, "Failed to save auto-match pair", slog.String("session_id", sessionID))
			return nil, err
		}

		claim(glItem.ItemID)
		result.MatchedCount++
		if score <= domain.ExactMatchThreshold {
			result.PendingReviewCount++
		}
	}

	audit := domain.NewAuditEntry(domain.AuditAutoMatch,
		fmt.Sprintf("Auto-match paired %d item(s)", result.MatchedCount), actor, now,
		map[string]any{
			"matchedCount":       result.MatchedCount,
			"pendingReviewCount": result.PendingReviewCount,
			"conflicts":          result.Conflicts,
		})
	if _, err := s.sessions.update(ctx, sessionID, actor, now, nil, audit); err != nil {
		s.LogError(ctx, err, "Failed to update session after auto-match", slog.String("session_id", sessionID))
		return nil, err
	}

	s.LogInfo(ctx, "Auto-match finished",
		slog.String("session_id", sessionID),
		slog.Int("matched", result.MatchedCount),
		slog.Int("pending_review", result.PendingReviewCount),
		slog.Int("conflicts", result.Conflicts))
	return result, nil
}

// sessionItem loads an item and checks it belongs to the session.
func (s *matchingService) sessionItem(ctx context.Context, sessionID, itemID string) (*domain.ReconciliationItem, error) {
	item, err := s.reconRepo.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.SessionID != sessionID {
		return nil, fmt.Errorf("%w: %s is not part of session %s", apperrors.ErrItemNotFound, itemID, sessionID)
	}
	return item, nil
}

// ManualMatch pairs two items chosen by an operator with full confidence.
func (s *matchingService) ManualMatch(ctx context.Context, sessionID string, req dto.ManualMatchRequest, actor string) (*dto.MatchPair, error) {
	if err := validateStruct(req); err != nil {
		s.LogWarn(ctx, err, "Invalid manual match request", slog.String("session_id", sessionID))
		return nil, err
	}
	if _, err := s.openSession(ctx, sessionID); err != nil {
		s.LogFailure(ctx, err, "Manual match rejected", slog.String("session_id", sessionID))
		return nil, err
	}

	stmt, err := s.sessionItem(ctx, sessionID, req.StatementItemID)
	if err != nil {
		s.LogFailure(ctx, err, "Manual match rejected", slog.String("item_id", req.StatementItemID))
		return nil, err
	}
	gl, err := s.sessionItem(ctx, sessionID, req.GLItemID)
	if err != nil {
		s.LogFailure(ctx, err, "Manual match rejected", slog.String("item_id", req.GLItemID))
		return nil, err
	}
	if stmt.Side() != domain.SideStatement || gl.Side() != domain.SideLedger {
		err := fmt.Errorf("%w: a manual match needs one statement item and one ledger item", apperrors.ErrValidation)
		s.LogWarn(ctx, err, "Manual match rejected", slog.String("session_id", sessionID))
		return nil, err
	}
	for _, it := range []*domain.ReconciliationItem{stmt, gl} {
		if !it.IsMatchable() {
			err := fmt.Errorf("%w: item %s is %s", apperrors.ErrValidation, it.ItemID, it.MatchStatus)
			s.LogWarn(ctx, err, "Manual match rejected", slog.String("session_id", sessionID))
			return nil, err
		}
	}

	now := s.Now()
	details := matching.Score(*stmt, *gl).Details(actor, now)
	details.Notes = strings.TrimSpace(req.Notes)
	stmt.MarkMatched(gl.ItemID, domain.MatchTypeManual, domain.ManualMatchConfidence, details)
	gl.MarkMatched(stmt.ItemID, domain.MatchTypeManual, domain.ManualMatchConfidence, details)

	if err := s.reconRepo.UpdateItemPair(ctx, stmt, gl); err != nil {
		s.LogFailure(ctx, err, "Failed to save manual match", slog.String("session_id", sessionID))
		return nil, err
	}

	audit := domain.NewAuditEntry(domain.AuditManualMatch, "Items matched manually", actor, now,
		map[string]any{"statementItemID": stmt.ItemID, "glItemID": gl.ItemID, "notes": details.Notes})
	if _, err := s.sessions.update(ctx, sessionID, actor, now, nil, audit); err != nil {
		s.LogError(ctx, err, "Failed to update session after manual match", slog.String("session_id", sessionID))
		return nil, err
	}

	s.LogInfo(ctx, "Manual match recorded",
		slog.String("session_id", sessionID),
		slog.String("statement_item_id", stmt.ItemID),
		slog.String("gl_item_id", gl.ItemID))
	return &dto.MatchPair{StatementItem: *stmt, GLItem: *gl}, nil
}

// setItemStatus moves a single unpaired item to excluded or pending-review.
func (s *matchingService) setItemStatus(ctx context.Context, itemID string, status domain.MatchStatus, reason, action, actor string) (*domain.ReconciliationItem, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", apperrors.ErrValidation)
	}

	item, err := s.reconRepo.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.openSession(ctx, item.SessionID); err != nil {
		return nil, err
	}
	if item.MatchStatus == domain.MatchStatusMatched {
		return nil, fmt.Errorf("%w: item %s is matched, unmatch it first", apperrors.ErrValidation, itemID)
	}

	now := s.Now()
	item.MatchStatus = status
	item.MatchType = ""
	item.MatchConfidence = 0
	item.Reason = reason
	item.Touch(actor, now)
	if err := s.reconRepo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}

	audit := domain.NewAuditEntry(action, reason, actor, now, map[string]any{"itemID": itemID})
	if _, err := s.sessions.update(ctx, item.SessionID, actor, now, nil, audit); err != nil {
		return nil, err
	}
	return item, nil
}

// Exclude removes an item from matching, e.g. bank fees booked elsewhere.
func (s *matchingService) Exclude(ctx context.Context, itemID string, reason string, actor string) (*domain.ReconciliationItem, error) {
	item, err := s.setItemStatus(ctx, itemID, domain.MatchStatusExcluded, reason, domain.AuditItemExcluded, actor)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to exclude item", slog.String("item_id", itemID))
		return nil, err
	}
	s.LogInfo(ctx, "Item excluded", slog.String("item_id", itemID))
	return item, nil
}

// MarkForReview parks an item for a second look.
func (s *matchingService) MarkForReview(ctx context.Context, itemID string, reason string, actor string) (*domain.ReconciliationItem, error) {
	item, err := s.setItemStatus(ctx, itemID, domain.MatchStatusPendingReview, reason, domain.AuditItemFlagged, actor)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to flag item", slog.String("item_id", itemID))
		return nil, err
	}
	s.LogInfo(ctx, "Item flagged for review", slog.String("item_id", itemID))
	return item, nil
}

// Unmatch returns both items of a pair to unmatched.
func (s *matchingService) Unmatch(ctx context.Context, itemID string, actor string) (*dto.MatchPair, error) {
	item, err := s.reconRepo.FindItemByID(ctx, itemID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to unmatch item", slog.String("item_id", itemID))
		return nil, err
	}
	if _, err := s.openSession(ctx, item.SessionID); err != nil {
		s.LogFailure(ctx, err, "Unmatch rejected", slog.String("item_id", itemID))
		return nil, err
	}
	if item.MatchStatus != domain.MatchStatusMatched || item.MatchedItemID == nil {
		err := fmt.Errorf("%w: item %s is not matched", apperrors.ErrValidation, itemID)
		s.LogWarn(ctx, err, "Unmatch rejected", slog.String("item_id", itemID))
		return nil, err
	}
	counterpart, err := s.sessionItem(ctx, item.SessionID, *item.MatchedItemID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to load matched counterpart", slog.String("item_id", itemID))
		return nil, err
	}

	now := s.Now()
	item.Reset(actor, now)
	counterpart.Reset(actor, now)
	if err := s.reconRepo.UpdateItemPair(ctx, item, counterpart); err != nil {
		s.LogFailure(ctx, err, "Failed to save unmatched pair", slog.String("item_id", itemID))
		return nil, err
	}

	audit := domain.NewAuditEntry(domain.AuditItemUnmatched, "Pair unmatched", actor, now,
		map[string]any{"itemID": item.ItemID, "counterpartID": counterpart.ItemID})
	if _, err := s.sessions.update(ctx, item.SessionID, actor, now, nil, audit); err != nil {
		s.LogError(ctx, err, "Failed to update session after unmatch", slog.String("session_id", item.SessionID))
		return nil, err
	}

	s.LogInfo(ctx, "Pair unmatched", slog.String("item_id", item.ItemID), slog.String("counterpart_id", counterpart.ItemID))
	pair := &dto.MatchPair{StatementItem: *item, GLItem: *counterpart}
	if item.Side() == domain.SideLedger {
		pair.StatementItem, pair.GLItem = *counterpart, *item
	}
	return pair, nil
}
