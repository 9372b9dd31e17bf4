package accounting

import (
	"testing"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedAmount(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	tests := []struct {
		name        string
		accountType domain.AccountType
		debit       decimal.Decimal
		credit      decimal.Decimal
		want        decimal.Decimal
		wantErr     bool
	}{
		{"debit to asset", domain.Asset, hundred, decimal.Zero, hundred, false},
		{"credit to asset", domain.Asset, decimal.Zero, hundred, hundred.Neg(), false},
		{"debit to expense", domain.Expense, hundred, decimal.Zero, hundred, false},
		{"credit to liability", domain.Liability, decimal.Zero, hundred, hundred, false},
		{"debit to revenue", domain.Revenue, hundred, decimal.Zero, hundred.Neg(), false},
		{"credit to equity", domain.Equity, decimal.Zero, hundred, hundred, false},
		{"unknown type", domain.AccountType("OTHER"), hundred, decimal.Zero, decimal.Zero, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SignedAmount(tt.accountType, tt.debit, tt.credit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestRunningBalance_StrictOrder(t *testing.T) {
	jan := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	entries := []domain.LedgerEntry{
		{EntryID: "e3", TransactionDate: jan(3), CreatedAt: created, Credit: decimal.NewFromInt(30)},
		{EntryID: "e1", TransactionDate: jan(1), CreatedAt: created, Debit: decimal.NewFromInt(100)},
		{EntryID: "e2b", TransactionDate: jan(2), CreatedAt: created.Add(time.Minute), Debit: decimal.NewFromInt(5)},
		{EntryID: "e2a", TransactionDate: jan(2), CreatedAt: created, Credit: decimal.NewFromInt(20)},
	}

	lines, closing, err := RunningBalance(entries, domain.Asset, decimal.Zero)

	require.NoError(t, err)
	require.Len(t, lines, 4)
	order := []string{lines[0].Entry.EntryID, lines[1].Entry.EntryID, lines[2].Entry.EntryID, lines[3].Entry.EntryID}
	assert.Equal(t, []string{"e1", "e2a", "e2b", "e3"}, order)
	assert.Equal(t, "100", lines[0].RunningBalance.String())
	assert.Equal(t, "80", lines[1].RunningBalance.String())
	assert.Equal(t, "85", lines[2].RunningBalance.String())
	assert.Equal(t, "55", closing.String())
}

func TestRunningBalance_CreditNormal(t *testing.T) {
	entries := []domain.LedgerEntry{
		{EntryID: "a", Credit: decimal.NewFromInt(200)},
		{EntryID: "b", Debit: decimal.NewFromInt(50)},
	}

	_, closing, err := RunningBalance(entries, domain.Liability, decimal.Zero)

	require.NoError(t, err)
	assert.Equal(t, "150", closing.String())
}
