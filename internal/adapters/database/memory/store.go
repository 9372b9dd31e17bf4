// Package memory keeps every repository in process memory. It backs STORAGE_DRIVER=memory
// and the service tests, and honours the same compare-and-swap rules as the pgsql adapter.
package memory

import (
	"sync"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
)

// store is shared by the three repositories so account balances can be derived from ledger entries.
type store struct {
	mu sync.RWMutex

	accounts     map[string]domain.Account // by id
	accountCodes map[string]string         // code -> id

	transactions map[string]domain.LedgerTransaction
	entries      []domain.LedgerEntry

	sessions map[string]domain.ReconciliationSession
	items    map[string]domain.ReconciliationItem
}

func newStore() *store {
	return &store{
		accounts:     make(map[string]domain.Account),
		accountCodes: make(map[string]string),
		transactions: make(map[string]domain.LedgerTransaction),
		sessions:     make(map[string]domain.ReconciliationSession),
		items:        make(map[string]domain.ReconciliationItem),
	}
}

// NewRepositoryProvider creates a RepositoryProvider whose repositories share one in-memory store.
func NewRepositoryProvider() portsrepo.RepositoryProvider {
	s := newStore()
	return portsrepo.RepositoryProvider{
		AccountRepo:        &AccountRepository{store: s},
		LedgerRepo:         &LedgerRepository{store: s},
		ReconciliationRepo: &ReconciliationRepository{store: s},
	}
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneEntry(e domain.LedgerEntry) domain.LedgerEntry {
	e.ReversedByTransactionID = cloneString(e.ReversedByTransactionID)
	e.ReversesTransactionID = cloneString(e.ReversesTransactionID)
	return e
}

func cloneItem(it domain.ReconciliationItem) domain.ReconciliationItem {
	if it.StatementEntry != nil {
		v := *it.StatementEntry
		it.StatementEntry = &v
	}
	if it.GLEntry != nil {
		v := *it.GLEntry
		it.GLEntry = &v
	}
	if it.MatchingDetails != nil {
		v := *it.MatchingDetails
		it.MatchingDetails = &v
	}
	it.MatchedItemID = cloneString(it.MatchedItemID)
	return it
}

func cloneSession(s domain.ReconciliationSession) domain.ReconciliationSession {
	s.Adjustments = append([]domain.Adjustment{}, s.Adjustments...)
	s.AuditLog = append([]domain.AuditLogEntry{}, s.AuditLog...)
	if s.CompletedAt != nil {
		v := *s.CompletedAt
		s.CompletedAt = &v
	}
	if s.ReviewedAt != nil {
		v := *s.ReviewedAt
		s.ReviewedAt = &v
	}
	return s
}
