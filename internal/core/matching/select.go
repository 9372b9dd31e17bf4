package matching

import (
	"sort"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
)

// Candidate is a ledger item that passed the search window, with its score.
type Candidate struct {
	Item  domain.ReconciliationItem
	Score ScoreBreakdown
}

// WithinWindow reports whether gl falls inside the date and amount window of stmt.
// The amount window is statementAmount × (1 ± tolerance).
func WithinWindow(stmt, gl domain.ReconciliationItem, rules domain.MatchingRules) bool {
	if DaysBetween(stmt.Date(), gl.Date()) > rules.DateToleranceDays {
		return false
	}
	allowed := stmt.Amount().Abs().Mul(rules.AmountTolerancePct)
	return stmt.Amount().Sub(gl.Amount()).Abs().LessThanOrEqual(allowed)
}

// SelectBest returns the highest scoring unmatched ledger item for stmt.
// Ties go to the earliest ledger date, then the lexicographically smallest reference.
func SelectBest(stmt domain.ReconciliationItem, ledgerItems []domain.ReconciliationItem, rules domain.MatchingRules) (Candidate, bool) {
	var (
		best  Candidate
		found bool
	)
	for _, gl := range ledgerItems {
		if gl.Side() != domain.SideLedger || gl.MatchStatus != domain.MatchStatusUnmatched {
			continue
		}
		if !WithinWindow(stmt, gl, rules) {
			continue
		}
		c := Candidate{Item: gl, Score: Score(stmt, gl)}
		if !found || better(c, best) {
			best, found = c, true
		}
	}
	return best, found
}

func better(a, b Candidate) bool {
	if a.Score.Total != b.Score.Total {
		return a.Score.Total > b.Score.Total
	}
	ad, bd := a.Item.Date(), b.Item.Date()
	if !ad.Equal(bd) {
		return ad.Before(bd)
	}
	if a.Item.Reference() != b.Item.Reference() {
		return a.Item.Reference() < b.Item.Reference()
	}
	return a.Item.ItemID < b.Item.ItemID
}

// StatementQueue returns the unmatched statement items in processing order:
// date, then reference, then item id.
func StatementQueue(items []domain.ReconciliationItem) []domain.ReconciliationItem {
	queue := make([]domain.ReconciliationItem, 0, len(items))
	for _, it := range items {
		if it.Side() == domain.SideStatement && it.MatchStatus == domain.MatchStatusUnmatched {
			queue = append(queue, it)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		di, dj := queue[i].Date(), queue[j].Date()
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		if queue[i].Reference() != queue[j].Reference() {
			return queue[i].Reference() < queue[j].Reference()
		}
		return queue[i].ItemID < queue[j].ItemID
	})
	return queue
}
