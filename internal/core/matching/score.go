// Package matching scores statement items against ledger items and picks the
// best counterpart. Everything here is pure; persistence lives in the services.
package matching

import (
	"math"
	"strings"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/shopspring/decimal"
)

// Score weights. They add up to 100.
const (
	MaxDateScore        = 40.0
	MaxAmountScore      = 30.0
	ReferenceScore      = 20.0
	MaxDescriptionScore = 10.0
)

var (
	amountCent     = decimal.NewFromFloat(0.01)
	amountNickel   = decimal.NewFromFloat(0.05)
	amountTenCents = decimal.NewFromFloat(0.1)
)

// ScoreBreakdown is the per-component result of scoring one pair.
type ScoreBreakdown struct {
	DateScore        float64
	AmountScore      float64
	ReferenceScore   float64
	DescriptionScore float64
	Total            float64

	DateDifferenceDays    int
	AmountDifference      decimal.Decimal
	ReferenceMatch        bool
	DescriptionSimilarity float64
}

// Details converts the breakdown into the matching details stored on both items of a pair.
func (b ScoreBreakdown) Details(matchedBy string, at time.Time) domain.MatchingDetails {
	return domain.MatchingDetails{
		DateDifferenceDays:    b.DateDifferenceDays,
		AmountDifference:      b.AmountDifference,
		ReferenceMatch:        b.ReferenceMatch,
		DescriptionSimilarity: b.DescriptionSimilarity,
		MatchedBy:             matchedBy,
		MatchedAt:             at,
	}
}

// Score rates how well a ledger item explains a statement item, from 0 to 100.
func Score(stmt, gl domain.ReconciliationItem) ScoreBreakdown {
	b := ScoreBreakdown{
		DateDifferenceDays: DaysBetween(stmt.Date(), gl.Date()),
		AmountDifference:   stmt.Amount().Sub(gl.Amount()).Abs(),
	}

	b.DateScore = dateScore(b.DateDifferenceDays)
	b.AmountScore = amountScore(b.AmountDifference)

	ref := strings.TrimSpace(stmt.Reference())
	if ref != "" && ref == strings.TrimSpace(gl.Reference()) {
		b.ReferenceMatch = true
		b.ReferenceScore = ReferenceScore
	}

	b.DescriptionSimilarity = DescriptionSimilarity(stmt.Description(), gl.Description())
	b.DescriptionScore = round2(b.DescriptionSimilarity * MaxDescriptionScore / 100)

	b.Total = round2(b.DateScore + b.AmountScore + b.ReferenceScore + b.DescriptionScore)
	return b
}

func dateScore(days int) float64 {
	switch {
	case days == 0:
		return 40
	case days <= 1:
		return 30
	case days <= 3:
		return 20
	case days <= 7:
		return 10
	default:
		return 0
	}
}

func amountScore(diff decimal.Decimal) float64 {
	switch {
	case diff.IsZero():
		return 30
	case diff.LessThanOrEqual(amountCent):
		return 25
	case diff.LessThanOrEqual(amountNickel):
		return 20
	case diff.LessThanOrEqual(amountTenCents):
		return 10
	default:
		return 0
	}
}

// DescriptionSimilarity returns the share of lower-cased words of the longer description
// that also occur in the other one, as a percentage. Repeated words count each time.
// When both have the same word count the lower of the two directions wins.
func DescriptionSimilarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 0
	}
	var share float64
	switch {
	case len(ta) > len(tb):
		share = coverage(ta, tb)
	case len(tb) > len(ta):
		share = coverage(tb, ta)
	default:
		share = min(coverage(ta, tb), coverage(tb, ta))
	}
	return round2(share * 100)
}

func tokens(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// coverage is the fraction of words in long that appear anywhere in short.
func coverage(long, short []string) float64 {
	seen := make(map[string]struct{}, len(short))
	for _, w := range short {
		seen[w] = struct{}{}
	}
	shared := 0
	for _, w := range long {
		if _, ok := seen[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(long))
}

// DaysBetween counts whole calendar days between two dates, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	d := domain.DateOnly(a).Sub(domain.DateOnly(b))
	days := int(math.Round(d.Hours() / 24))
	if days < 0 {
		return -days
	}
	return days
}

// Classify maps a score onto a match type. Exactly 90 is still fuzzy.
func Classify(score float64) domain.MatchType {
	if score > domain.ExactMatchThreshold {
		return domain.MatchTypeExact
	}
	return domain.MatchTypeFuzzy
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
