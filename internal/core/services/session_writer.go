package services

import (
	"context"
	"errors"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// maxSessionAttempts bounds reload-and-retry when a session update loses a version race.
const maxSessionAttempts = 3

// sessionMutation edits a freshly loaded session. items are the session's current items.
type sessionMutation func(session *domain.ReconciliationSession, items []domain.ReconciliationItem) error

// sessionWriter writes sessions back with their summary recomputed from the stored items.
type sessionWriter struct {
	repo portsrepo.ReconciliationRepositoryFacade
}

// update reloads the session, applies mutate, recomputes summary and difference and
// compare-and-swaps the result. A lost race is retried against the newer version.
func (w sessionWriter) update(ctx context.Context, sessionID, actor string, at time.Time, mutate sessionMutation, audit ...domain.AuditLogEntry) (*domain.ReconciliationSession, error) {
	var err error
	for attempt := 1; attempt <= maxSessionAttempts; attempt++ {
		var session *domain.ReconciliationSession
		session, err = w.repo.FindSessionByID(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		var items []domain.ReconciliationItem
		items, err = w.repo.ListItemsBySession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if mutate != nil {
			if err := mutate(session, items); err != nil {
				return nil, err
			}
		}
		session.Summary = domain.ComputeSummary(items, len(session.Adjustments))
		session.RecomputeDifference()
		session.Touch(actor, at)

		err = w.repo.UpdateSession(ctx, session, audit...)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, err
		}
	}
	return nil, err
}

// statementTotal sums the statement side of the given items.
func statementTotal(items []domain.ReconciliationItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.StatementEntry != nil {
			total = total.Add(it.StatementEntry.Amount)
		}
	}
	return total
}
