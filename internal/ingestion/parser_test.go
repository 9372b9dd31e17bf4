package ingestion

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParseCSVSingleAmountColumn(t *testing.T) {
	input := strings.Join([]string{
		"Account statement,,,",
		"Date,Reference,Description,Amount,Balance",
		"2024-03-01,INV-1,Customer <b>payment</b>,\"1,250.50\",1250.50",
		"02/03/2024,FEE-9,Bank fee,(12.00),1238.50",
		"not a date,X,Broken,10,",
		",,,,",
		"2024-03-05,,Card,$-40,1198.50",
	}, "\n")

	res, err := Parse(strings.NewReader(input), "statement.csv", domain.ReconcileBank)
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, res.Format)
	assert.Equal(t, domain.ReconcileBank, res.AccountType)
	assert.Equal(t, 1, res.SkippedRows)
	require.Len(t, res.Records, 3)

	first := res.Records[0]
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "INV-1", first.Reference)
	assert.Equal(t, "Customer payment", first.Description)
	assert.True(t, dec("1250.50").Equal(first.Amount))
	assert.Equal(t, domain.StatementCredit, first.TransactionType)

	second := res.Records[1]
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), second.Date, "day-first layout wins")
	assert.True(t, dec("-12").Equal(second.Amount))
	assert.Equal(t, domain.StatementDebit, second.TransactionType)

	assert.True(t, dec("-40").Equal(res.Records[2].Amount))
}

func TestParseCSVKeepsHTMLSignificantCharacters(t *testing.T) {
	input := "Date,Reference,Description,Amount\n" +
		"2024-01-05,R&D-7,O'Brien & Sons payment,100.00\n" +
		"2024-01-06,Q1-FEE,\"<b>Fees</b> \"\"Q1\"\" > 5\",-3\n"

	res, err := Parse(strings.NewReader(input), "s.csv", domain.ReconcileBank)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "R&D-7", res.Records[0].Reference)
	assert.Equal(t, "O'Brien & Sons payment", res.Records[0].Description)
	assert.Equal(t, `Fees "Q1" > 5`, res.Records[1].Description)
}

func TestParseCSVSplitColumns(t *testing.T) {
	input := "Posting Date,Narration,Withdrawal,Deposit\n" +
		"2024-04-01,Rent,500.00,\n" +
		"2024-04-02,Refund,,75.25\n" +
		"2024-04-03,Nothing,,\n"

	res, err := Parse(strings.NewReader(input), "export.txt", domain.ReconcileVendor)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedRows)
	require.Len(t, res.Records, 2)
	assert.True(t, dec("-500").Equal(res.Records[0].Amount))
	assert.True(t, dec("75.25").Equal(res.Records[1].Amount))
}

func TestParseTypeColumnNegatesDebits(t *testing.T) {
	input := "Date,Amount,Dr/Cr\n2024-01-10,100,DR\n2024-01-11,100,CR\n"

	res, err := Parse(strings.NewReader(input), "s.csv", domain.ReconcileCustomer)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.True(t, dec("-100").Equal(res.Records[0].Amount))
	assert.True(t, dec("100").Equal(res.Records[1].Amount))
}

func TestParseFailures(t *testing.T) {
	_, err := Parse(strings.NewReader(""), "empty.csv", domain.ReconcileBank)
	assert.ErrorIs(t, err, apperrors.ErrParse)

	_, err = Parse(strings.NewReader("foo,bar\n1,2\n"), "noheader.csv", domain.ReconcileBank)
	assert.ErrorIs(t, err, apperrors.ErrParse)

	_, err = Parse(strings.NewReader("definitely not a zip"), "broken.xlsx", domain.ReconcileBank)
	assert.ErrorIs(t, err, apperrors.ErrParse)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Transaction Date", "Ref", "Details", "Amount"},
		{"2024-07-15", "CHQ-1", "Supplier", "-300.00"},
		{"2024-07-16", "DEP-2", "Deposit", "120"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cellName, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := Parse(bytes.NewReader(buf.Bytes()), "July.XLSX", domain.ReconcileBank)
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, res.Format)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "CHQ-1", res.Records[0].Reference)
	assert.True(t, dec("-300").Equal(res.Records[0].Amount))
	assert.Equal(t, time.Date(2024, 7, 16, 0, 0, 0, 0, time.UTC), res.Records[1].Date)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1,234.56", "1234.56", false},
		{"(50.00)", "-50", false},
		{"€ 9.99", "9.99", false},
		{"-0.5", "-0.5", false},
		{"USD 10", "10", false},
		{"abc", "", true},
		{"1.2.3", "", true},
		{"10#", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2024-01-31", "31/01/2024", "01/31/2024", "2024/01/31", "31-01-2024", "31-Jan-2024", "Jan 31, 2024", "2024-01-31T10:00:00Z"} {
		got, err := parseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseDate("32/13/2024")
	assert.Error(t, err)
}
