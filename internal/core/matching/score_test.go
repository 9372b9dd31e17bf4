package matching

import (
	"testing"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func stmtItem(id string, date time.Time, amount, ref, desc string) domain.ReconciliationItem {
	return domain.ReconciliationItem{
		ItemID:      id,
		MatchStatus: domain.MatchStatusUnmatched,
		StatementEntry: &domain.StatementEntry{
			Date: date, Amount: decimal.RequireFromString(amount), Reference: ref, Description: desc,
		},
	}
}

func glItem(id string, date time.Time, amount, ref, desc string) domain.ReconciliationItem {
	return domain.ReconciliationItem{
		ItemID:      id,
		MatchStatus: domain.MatchStatusUnmatched,
		GLEntry: &domain.GLEntry{
			Date: date, Amount: decimal.RequireFromString(amount), Reference: ref, Description: desc,
		},
	}
}

func TestScore_NinetyIsFuzzy(t *testing.T) {
	stmt := stmtItem("s1", day(5), "1000.00", "REF1", "Payment from ACME")
	gl := glItem("g1", day(6), "1000.00", "REF1", "payment from acme")

	b := Score(stmt, gl)

	assert.Equal(t, 30.0, b.DateScore)
	assert.Equal(t, 30.0, b.AmountScore)
	assert.Equal(t, 20.0, b.ReferenceScore)
	assert.Equal(t, 10.0, b.DescriptionScore)
	assert.Equal(t, 90.0, b.Total)
	assert.Equal(t, domain.MatchTypeFuzzy, Classify(b.Total))
}

func TestScore_PerfectIsExact(t *testing.T) {
	stmt := stmtItem("s1", day(5), "250.00", "INV-9", "wire transfer")
	gl := glItem("g1", day(5), "250.00", "INV-9", "wire transfer")

	b := Score(stmt, gl)

	assert.Equal(t, 100.0, b.Total)
	assert.Equal(t, domain.MatchTypeExact, Classify(b.Total))
}

func TestScore_DateBands(t *testing.T) {
	tests := []struct {
		glDay int
		want  float64
	}{
		{10, 40}, {11, 30}, {13, 20}, {17, 10}, {18, 0}, {2, 0}, {7, 20},
	}
	for _, tt := range tests {
		b := Score(stmtItem("s", day(10), "1", "", ""), glItem("g", day(tt.glDay), "1", "", ""))
		assert.Equal(t, tt.want, b.DateScore, "gl day %d", tt.glDay)
	}
}

func TestScore_AmountBands(t *testing.T) {
	tests := []struct {
		gl   string
		want float64
	}{
		{"100.00", 30}, {"100.01", 25}, {"99.96", 20}, {"100.10", 10}, {"100.11", 0},
	}
	for _, tt := range tests {
		b := Score(stmtItem("s", day(1), "100.00", "", ""), glItem("g", day(1), tt.gl, "", ""))
		assert.Equal(t, tt.want, b.AmountScore, "gl amount %s", tt.gl)
	}
}

func TestScore_EmptyReferencesNeverScore(t *testing.T) {
	b := Score(stmtItem("s", day(1), "1", "", ""), glItem("g", day(1), "1", "", ""))
	assert.False(t, b.ReferenceMatch)
	assert.Zero(t, b.ReferenceScore)
}

func TestDescriptionSimilarity(t *testing.T) {
	assert.Equal(t, 100.0, DescriptionSimilarity("Rent March", "rent   MARCH"))
	assert.Equal(t, 50.0, DescriptionSimilarity("rent march", "rent"))
	assert.Equal(t, 0.0, DescriptionSimilarity("", ""))
	assert.Equal(t, 0.0, DescriptionSimilarity("alpha", "beta"))
	assert.Equal(t, 33.33, DescriptionSimilarity("a b c", "a x y"))
}

func TestDescriptionSimilarity_CountsRepeatedWords(t *testing.T) {
	assert.Equal(t, 75.0, DescriptionSimilarity("a a a b", "a c"))
	assert.Equal(t, 75.0, DescriptionSimilarity("a c", "a a a b"))
	assert.Equal(t, 50.0, DescriptionSimilarity("fee fee", "fee charge"), "equal lengths take the lower direction")
	assert.Equal(t, 0.0, DescriptionSimilarity("wire", ""))
}

func TestDaysBetween_IgnoresClock(t *testing.T) {
	a := time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 6, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, 1, DaysBetween(b, a))
}

func TestWithinWindow(t *testing.T) {
	rules := domain.DefaultMatchingRules()
	stmt := stmtItem("s", day(10), "1000", "", "")

	assert.True(t, WithinWindow(stmt, glItem("g", day(13), "1010", "", ""), rules))
	assert.False(t, WithinWindow(stmt, glItem("g", day(14), "1000", "", ""), rules))
	assert.False(t, WithinWindow(stmt, glItem("g", day(10), "1010.01", "", ""), rules))

	neg := stmtItem("s", day(10), "-500", "", "")
	assert.True(t, WithinWindow(neg, glItem("g", day(10), "-504", "", ""), rules))
	assert.False(t, WithinWindow(neg, glItem("g", day(10), "500", "", ""), rules))
}

func TestSelectBest_PicksHighestScore(t *testing.T) {
	rules := domain.DefaultMatchingRules()
	stmt := stmtItem("s", day(10), "100", "R1", "coffee supplies")
	ledger := []domain.ReconciliationItem{
		glItem("g1", day(12), "100", "", ""),
		glItem("g2", day(10), "100", "R1", "coffee supplies"),
		glItem("g3", day(10), "100", "R2", ""),
	}

	c, ok := SelectBest(stmt, ledger, rules)

	require.True(t, ok)
	assert.Equal(t, "g2", c.Item.ItemID)
	assert.Equal(t, 100.0, c.Score.Total)
}

func TestSelectBest_TieBreaks(t *testing.T) {
	rules := domain.DefaultMatchingRules()
	rules.DateToleranceDays = 7
	stmt := stmtItem("s", day(10), "100", "", "")

	t.Run("earliest ledger date wins", func(t *testing.T) {
		ledger := []domain.ReconciliationItem{
			glItem("late", day(11), "100", "B", ""),
			glItem("early", day(9), "100", "Z", ""),
		}
		c, ok := SelectBest(stmt, ledger, rules)
		require.True(t, ok)
		assert.Equal(t, "early", c.Item.ItemID)
	})

	t.Run("then smallest reference", func(t *testing.T) {
		ledger := []domain.ReconciliationItem{
			glItem("b", day(11), "100", "B", ""),
			glItem("a", day(11), "100", "A", ""),
		}
		c, ok := SelectBest(stmt, ledger, rules)
		require.True(t, ok)
		assert.Equal(t, "a", c.Item.ItemID)
	})
}

func TestSelectBest_SkipsMatchedAndStatementItems(t *testing.T) {
	rules := domain.DefaultMatchingRules()
	stmt := stmtItem("s", day(10), "100", "", "")
	matched := glItem("g1", day(10), "100", "", "")
	matched.MatchStatus = domain.MatchStatusMatched
	other := stmtItem("s2", day(10), "100", "", "")

	_, ok := SelectBest(stmt, []domain.ReconciliationItem{matched, other}, rules)

	assert.False(t, ok)
}

func TestStatementQueue_Order(t *testing.T) {
	items := []domain.ReconciliationItem{
		stmtItem("c", day(2), "1", "A", ""),
		stmtItem("b", day(1), "1", "B", ""),
		glItem("g", day(1), "1", "", ""),
		stmtItem("a", day(1), "1", "A", ""),
	}
	done := stmtItem("d", day(1), "1", "", "")
	done.MatchStatus = domain.MatchStatusExcluded
	items = append(items, done)

	q := StatementQueue(items)

	ids := make([]string, len(q))
	for i, it := range q {
		ids[i] = it.ItemID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
