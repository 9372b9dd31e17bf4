package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/adapters/database/memory"
	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/SscSPs/erp_reconciliation/internal/utils/pagination"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func seedTransaction(t *testing.T, ctx context.Context, repo interface {
	SaveTransaction(context.Context, domain.LedgerTransaction, []domain.LedgerEntry) error
}, id string, amount int64) {
	t.Helper()
	txn := domain.LedgerTransaction{TransactionID: id, TransactionDate: day, Period: domain.PeriodQuarterly, FiscalYear: 2024}
	entries := []domain.LedgerEntry{
		{EntryID: id + "-1", TransactionID: id, TransactionDate: day, AccountCode: "1000", Debit: decimal.NewFromInt(amount), Credit: decimal.Zero, Period: domain.PeriodQuarterly, FiscalYear: 2024},
		{EntryID: id + "-2", TransactionID: id, TransactionDate: day, AccountCode: "4000", Debit: decimal.Zero, Credit: decimal.NewFromInt(amount), Period: domain.PeriodQuarterly, FiscalYear: 2024},
	}
	require.NoError(t, repo.SaveTransaction(ctx, txn, entries))
}

func TestAccountBalanceFollowsLedger(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositoryProvider()

	require.NoError(t, repos.AccountRepo.SaveAccount(ctx, domain.Account{AccountID: "acc-1", Code: "1000", Name: "Bank", AccountType: domain.Asset, IsActive: true}, "tester"))
	err := repos.AccountRepo.SaveAccount(ctx, domain.Account{AccountID: "acc-2", Code: "1000", Name: "Dup", AccountType: domain.Asset}, "tester")
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	seedTransaction(t, ctx, repos.LedgerRepo, "T1", 250)

	acc, err := repos.AccountRepo.FindAccountByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(250).Equal(acc.CurrentBalance))

	_, err = repos.AccountRepo.FindAccountByCode(ctx, "9999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLedgerDuplicateAndReverse(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositoryProvider()
	seedTransaction(t, ctx, repos.LedgerRepo, "T1", 100)

	err := repos.LedgerRepo.SaveTransaction(ctx, domain.LedgerTransaction{TransactionID: "T1"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	posted, err := repos.LedgerRepo.ReverseTransaction(ctx, "T1", func(original []domain.LedgerEntry) (domain.LedgerTransaction, []domain.LedgerEntry, error) {
		require.Len(t, original, 2)
		orig := "T1"
		header := domain.LedgerTransaction{TransactionID: "R1", TransactionDate: day, Period: domain.PeriodQuarterly, FiscalYear: 2024, ReversesTransactionID: &orig}
		out := make([]domain.LedgerEntry, len(original))
		for i, e := range original {
			e.EntryID = "R1-" + e.EntryID
			e.TransactionID = "R1"
			e.Debit, e.Credit = e.Credit, e.Debit
			e.ReversesTransactionID = &orig
			out[i] = e
		}
		return header, out, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "R1", posted.TransactionID)

	original, err := repos.LedgerRepo.FindTransactionByID(ctx, "T1")
	require.NoError(t, err)
	for _, e := range original.Entries {
		assert.True(t, e.IsReversed)
		require.NotNil(t, e.ReversedByTransactionID)
		assert.Equal(t, "R1", *e.ReversedByTransactionID)
	}

	totals, err := repos.LedgerRepo.AccountTotalsByPeriod(ctx, domain.PeriodQuarterly, 2024)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	for _, tot := range totals {
		assert.True(t, tot.Debit.Equal(tot.Credit), "account %s nets to zero after reversal", tot.AccountCode)
	}

	_, err = repos.LedgerRepo.ReverseTransaction(ctx, "missing", nil)
	assert.ErrorIs(t, err, apperrors.ErrTransactionNotFound)
}

func newSession(id string) domain.ReconciliationSession {
	return domain.ReconciliationSession{
		SessionID:   id,
		AccountID:   "acc-1",
		PeriodStart: day,
		PeriodEnd:   day.AddDate(0, 0, 30),
		Status:      domain.SessionDraft,
		Version:     1,
		AuditFields: domain.NewAuditFields("tester", day),
	}
}

func statementItem(id, sessionID string, date time.Time) domain.ReconciliationItem {
	return domain.ReconciliationItem{
		ItemID:         id,
		SessionID:      sessionID,
		StatementEntry: &domain.StatementEntry{Date: date, Amount: decimal.NewFromInt(10)},
		MatchStatus:    domain.MatchStatusUnmatched,
		Version:        1,
	}
}

func TestSessionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepositoryProvider().ReconciliationRepo

	require.NoError(t, repo.SaveSession(ctx, newSession("S1")))

	a, err := repo.FindSessionByID(ctx, "S1")
	require.NoError(t, err)
	b, err := repo.FindSessionByID(ctx, "S1")
	require.NoError(t, err)

	a.Status = domain.SessionInProgress
	require.NoError(t, repo.UpdateSession(ctx, a, domain.NewAuditEntry("x", "first", "tester", day, nil)))
	assert.Equal(t, 2, a.Version)

	b.Status = domain.SessionCompleted
	err = repo.UpdateSession(ctx, b)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	require.NoError(t, repo.AppendAudit(ctx, "S1", domain.NewAuditEntry("note", "later", "tester", day, nil)))
	stored, err := repo.FindSessionByID(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionInProgress, stored.Status)
	assert.Len(t, stored.AuditLog, 2)

	_, err = repo.FindSessionByID(ctx, "nope")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestItemPairIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepositoryProvider().ReconciliationRepo
	s := newSession("S1")
	require.NoError(t, repo.SaveSession(ctx, s))
	require.NoError(t, repo.SaveStatementUpload(ctx, &s, []domain.ReconciliationItem{
		statementItem("I1", "S1", day),
		statementItem("I2", "S1", day),
	}, domain.NewAuditEntry(domain.AuditStatementUploaded, "upload", "tester", day, nil)))
	assert.Equal(t, 2, s.Version)

	a, err := repo.FindItemByID(ctx, "I1")
	require.NoError(t, err)
	b, err := repo.FindItemByID(ctx, "I2")
	require.NoError(t, err)
	stale := *b
	stale.Version = 0

	a.MatchStatus = domain.MatchStatusExcluded
	err = repo.UpdateItemPair(ctx, a, &stale)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	reloaded, err := repo.FindItemByID(ctx, "I1")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusUnmatched, reloaded.MatchStatus)
	assert.Equal(t, 1, reloaded.Version)

	require.NoError(t, repo.UpdateItemPair(ctx, a, b))
	assert.Equal(t, 2, a.Version)
	assert.Equal(t, 2, b.Version)
}

func TestItemWritesRequireOpenSession(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepositoryProvider().ReconciliationRepo
	s := newSession("S1")
	require.NoError(t, repo.SaveSession(ctx, s))
	require.NoError(t, repo.SaveStatementUpload(ctx, &s, []domain.ReconciliationItem{
		statementItem("I1", "S1", day),
		statementItem("I2", "S1", day),
	}, domain.NewAuditEntry(domain.AuditStatementUploaded, "upload", "tester", day, nil)))

	a, err := repo.FindItemByID(ctx, "I1")
	require.NoError(t, err)
	a.MatchStatus = domain.MatchStatusExcluded
	require.NoError(t, repo.UpdateItem(ctx, a))

	err = repo.UpdateSession(ctx, &s)
	assert.ErrorIs(t, err, apperrors.ErrConflict, "an item write moves the session version on")

	current, err := repo.FindSessionByID(ctx, "S1")
	require.NoError(t, err)
	current.Status = domain.SessionCompleted
	require.NoError(t, repo.UpdateSession(ctx, current))

	b, err := repo.FindItemByID(ctx, "I2")
	require.NoError(t, err)
	b.MatchStatus = domain.MatchStatusExcluded
	assert.ErrorIs(t, repo.UpdateItem(ctx, b), apperrors.ErrSessionClosed)
	a.MatchStatus = domain.MatchStatusUnmatched
	assert.ErrorIs(t, repo.UpdateItemPair(ctx, a, b), apperrors.ErrSessionClosed)

	stored, err := repo.FindItemByID(ctx, "I2")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusUnmatched, stored.MatchStatus)
	assert.Equal(t, 1, stored.Version)
}

func TestListItemsPage(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepositoryProvider().ReconciliationRepo
	s := newSession("S1")
	require.NoError(t, repo.SaveSession(ctx, s))

	items := []domain.ReconciliationItem{
		statementItem("I3", "S1", day.AddDate(0, 0, 1)),
		statementItem("I1", "S1", day),
		statementItem("I2", "S1", day),
	}
	require.NoError(t, repo.SaveStatementUpload(ctx, &s, items, domain.NewAuditEntry(domain.AuditStatementUploaded, "upload", "tester", day, nil)))

	first, next, err := repo.ListItemsPage(ctx, "S1", domain.ItemFilter{}, pagination.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "I1", first[0].ItemID)
	assert.Equal(t, "I2", first[1].ItemID)
	require.NotNil(t, next)

	second, next, err := repo.ListItemsPage(ctx, "S1", domain.ItemFilter{}, pagination.Page{Limit: 2, NextToken: *next})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "I3", second[0].ItemID)
	assert.Nil(t, next)

	_, _, err = repo.ListItemsPage(ctx, "S1", domain.ItemFilter{}, pagination.Page{NextToken: "%%%"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestStatementUploadRejectsDoubleMirror(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepositoryProvider().ReconciliationRepo
	s := newSession("S1")
	require.NoError(t, repo.SaveSession(ctx, s))

	gl := func(id string) domain.ReconciliationItem {
		return domain.ReconciliationItem{
			ItemID:      id,
			SessionID:   "S1",
			GLEntry:     &domain.GLEntry{Date: day, LedgerEntryID: "E1"},
			MatchStatus: domain.MatchStatusUnmatched,
			Version:     1,
		}
	}
	audit := domain.NewAuditEntry(domain.AuditStatementUploaded, "upload", "tester", day, nil)
	require.NoError(t, repo.SaveStatementUpload(ctx, &s, []domain.ReconciliationItem{gl("G1")}, audit))

	err := repo.SaveStatementUpload(ctx, &s, []domain.ReconciliationItem{gl("G2")}, audit)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	all, err := repo.ListItemsBySession(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
