package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/SscSPs/erp_reconciliation/internal/utils/accounting"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// maxIDAttempts bounds retries when a generated transaction id collides.
const maxIDAttempts = 3

// maxIDReferenceLen keeps generated ids within the transaction_id column.
const maxIDReferenceLen = 64

// ledgerService implements the LedgerSvcFacade interface
type ledgerService struct {
	BaseService
	ledgerRepo       portsrepo.LedgerRepositoryFacade
	accounts         portssvc.AccountSvcFacade
	defaultCurrency  string
	rejectReReversal bool
	newUUID          func() string
}

// LedgerServiceOption is a functional option for configuring the ledger service
type LedgerServiceOption func(*ledgerService)

// WithDefaultCurrency sets the currency used when a request carries none.
func WithDefaultCurrency(code string) LedgerServiceOption {
	return func(s *ledgerService) {
		if code != "" {
			s.defaultCurrency = strings.ToUpper(code)
		}
	}
}

// WithRejectReReversal makes Reverse fail with ErrAlreadyReversed for transactions already reversed.
func WithRejectReReversal(reject bool) LedgerServiceOption {
	return func(s *ledgerService) {
		s.rejectReReversal = reject
	}
}

// WithLedgerClock overrides the clock used for created-at stamps and generated ids.
func WithLedgerClock(now func() time.Time) LedgerServiceOption {
	return func(s *ledgerService) {
		s.now = now
	}
}

// WithUUIDGenerator overrides the suffix generator of transaction ids.
func WithUUIDGenerator(gen func() string) LedgerServiceOption {
	return func(s *ledgerService) {
		s.newUUID = gen
	}
}

// NewLedgerService creates the posting engine and ledger reader.
func NewLedgerService(ledgerRepo portsrepo.LedgerRepositoryFacade, accounts portssvc.AccountSvcFacade, options ...LedgerServiceOption) portssvc.LedgerSvcFacade {
	svc := &ledgerService{
		ledgerRepo:      ledgerRepo,
		accounts:        accounts,
		defaultCurrency: "USD",
		newUUID:         uuid.NewString,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

// transactionID builds TXN-<MODULE>-<REFERENCE>-<yyyymmddhhmmss>-<uuid>.
func (s *ledgerService) transactionID(module, reference string, at time.Time) string {
	if len(reference) > maxIDReferenceLen {
		// Cut at a rune boundary so the id stays valid UTF-8.
		n := maxIDReferenceLen
		for n > 0 && !utf8.RuneStart(reference[n]) {
			n--
		}
		reference = reference[:n]
	}
	return fmt.Sprintf("TXN-%s-%s-%s-%s", strings.ToUpper(module), reference, at.Format("20060102150405"), s.newUUID())
}

// checkAccounts resolves every code against the chart and rejects unknown or inactive accounts.
func (s *ledgerService) checkAccounts(ctx context.Context, lines []domain.EntryLine) error {
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if seen[l.AccountCode] {
			continue
		}
		seen[l.AccountCode] = true

		chart, err := s.accounts.Lookup(ctx, l.AccountCode)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("%w: unknown account %s", apperrors.ErrInvalidEntry, l.AccountCode)
			}
			return fmt.Errorf("failed to resolve account %s: %w", l.AccountCode, err)
		}
		if !chart.IsActive {
			return fmt.Errorf("%w: account %s is inactive", apperrors.ErrInvalidEntry, l.AccountCode)
		}
	}
	return nil
}

func (s *ledgerService) buildEntries(header domain.LedgerTransaction, lines []domain.EntryLine, at time.Time) []domain.LedgerEntry {
	entries := make([]domain.LedgerEntry, len(lines))
	for i, l := range lines {
		desc := l.Description
		if desc == "" {
			desc = header.Description
		}
		entries[i] = domain.LedgerEntry{
			EntryID:               uuid.NewString(),
			TransactionID:         header.TransactionID,
			TransactionDate:       header.TransactionDate,
			ModuleSource:          header.ModuleSource,
			ReferenceType:         header.ReferenceType,
			ReferenceID:           header.ReferenceID,
			AccountCode:           l.AccountCode,
			Description:           desc,
			Debit:                 l.Debit,
			Credit:                l.Credit,
			Currency:              header.Currency,
			Period:                header.Period,
			FiscalYear:            header.FiscalYear,
			ReversesTransactionID: header.ReversesTransactionID,
			CreatedAt:             at,
			CreatedBy:             header.CreatedBy,
		}
	}
	return entries
}

// Post validates and atomically records a balanced transaction.
func (s *ledgerService) Post(ctx context.Context, req dto.PostTransactionRequest, actor string) (*domain.PostedTransaction, error) {
	if err := domain.ValidateLines(req.Entries); err != nil {
		s.LogWarn(ctx, err, "Rejected ledger posting", slog.String("reference_id", req.ReferenceID))
		return nil, err
	}
	if err := validateStruct(req); err != nil {
		s.LogWarn(ctx, err, "Invalid ledger posting request", slog.String("reference_id", req.ReferenceID))
		return nil, err
	}
	if err := s.checkAccounts(ctx, req.Entries); err != nil {
		s.LogFailure(ctx, err, "Rejected ledger posting", slog.String("reference_id", req.ReferenceID))
		return nil, err
	}
	if err := domain.CheckBalance(req.Entries); err != nil {
		s.LogWarn(ctx, err, "Rejected unbalanced ledger posting", slog.String("reference_id", req.ReferenceID))
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}
	date := domain.DateOnly(req.TransactionDate)

	var (
		posted *domain.PostedTransaction
		err    error
	)
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		now := s.Now()
		header := domain.LedgerTransaction{
			TransactionID:   s.transactionID(req.ModuleSource, req.ReferenceID, now),
			TransactionDate: date,
			ModuleSource:    req.ModuleSource,
			ReferenceType:   req.ReferenceType,
			ReferenceID:     req.ReferenceID,
			Description:     req.Description,
			Currency:        currency,
			Period:          domain.PeriodForMonth(date.Month()),
			FiscalYear:      date.Year(),
			CreatedAt:       now,
			CreatedBy:       actor,
		}
		entries := s.buildEntries(header, req.Entries, now)

		err = s.ledgerRepo.SaveTransaction(ctx, header, entries)
		if err == nil {
			posted = &domain.PostedTransaction{LedgerTransaction: header, Entries: entries}
			break
		}
		if !errors.Is(err, apperrors.ErrDuplicate) {
			break
		}
		s.LogDebug(ctx, "Transaction id collision, retrying", slog.String("transaction_id", header.TransactionID), slog.Int("attempt", attempt))
	}
	if err != nil {
		s.LogError(ctx, err, "Failed to save ledger transaction", slog.String("reference_id", req.ReferenceID))
		return nil, fmt.Errorf("failed to save ledger transaction: %w", err)
	}

	s.LogInfo(ctx, "Ledger transaction posted",
		slog.String("transaction_id", posted.TransactionID),
		slog.String("module_source", posted.ModuleSource),
		slog.Int("entries", len(posted.Entries)))
	return posted, nil
}

// Reverse records the swapped-side copy of a transaction. The original entries are locked
// by the repository for the duration so concurrent reversals serialize.
func (s *ledgerService) Reverse(ctx context.Context, transactionID string, reason string, actor string) (*domain.PostedTransaction, error) {
	build := func(original []domain.LedgerEntry) (domain.LedgerTransaction, []domain.LedgerEntry, error) {
		if s.rejectReReversal {
			for _, e := range original {
				if e.IsReversed {
					return domain.LedgerTransaction{}, nil, fmt.Errorf("%w: %s", apperrors.ErrAlreadyReversed, transactionID)
				}
			}
		}

		lines := domain.ReversedLines(original)
		if err := domain.CheckBalance(lines); err != nil {
			return domain.LedgerTransaction{}, nil, err
		}

		first := original[0]
		description := "Reversal of " + transactionID
		if reason != "" {
			description += ": " + reason
		}
		now := s.Now()
		origID := transactionID
		header := domain.LedgerTransaction{
			TransactionID:         s.transactionID(first.ModuleSource, domain.ReferenceTypeReversal, now),
			TransactionDate:       first.TransactionDate,
			ModuleSource:          first.ModuleSource,
			ReferenceType:         domain.ReferenceTypeReversal,
			ReferenceID:           transactionID,
			Description:           description,
			Currency:              first.Currency,
			Period:                first.Period,
			FiscalYear:            first.FiscalYear,
			ReversesTransactionID: &origID,
			CreatedAt:             now,
			CreatedBy:             actor,
		}
		// Every leg carries the reversal description so it is readable on account statements.
		for i := range lines {
			lines[i].Description = description
		}
		return header, s.buildEntries(header, lines, now), nil
	}

	var (
		posted *domain.PostedTransaction
		err    error
	)
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		posted, err = s.ledgerRepo.ReverseTransaction(ctx, transactionID, build)
		if err == nil || !errors.Is(err, apperrors.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		s.LogFailure(ctx, err, "Failed to reverse ledger transaction", slog.String("transaction_id", transactionID))
		return nil, err
	}

	s.LogInfo(ctx, "Ledger transaction reversed",
		slog.String("transaction_id", transactionID),
		slog.String("reversal_id", posted.TransactionID))
	return posted, nil
}

func (s *ledgerService) GetTransaction(ctx context.Context, transactionID string) (*domain.PostedTransaction, error) {
	txn, err := s.ledgerRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to get ledger transaction", slog.String("transaction_id", transactionID))
		return nil, err
	}
	return txn, nil
}

// GetTrialBalance summarizes every account for one period bucket and fiscal year.
// Reversed transactions and their reversals are both included, so they net to zero.
func (s *ledgerService) GetTrialBalance(ctx context.Context, period domain.Period, fiscalYear int) (*domain.TrialBalance, error) {
	if !period.IsValid() {
		return nil, fmt.Errorf("%w: unknown period %q", apperrors.ErrValidation, period)
	}

	totals, err := s.ledgerRepo.AccountTotalsByPeriod(ctx, period, fiscalYear)
	if err != nil {
		s.LogError(ctx, err, "Failed to load trial balance totals",
			slog.String("period", string(period)),
			slog.Int("fiscal_year", fiscalYear))
		return nil, err
	}

	tb := &domain.TrialBalance{
		Period:      period,
		FiscalYear:  fiscalYear,
		Rows:        make([]domain.TrialBalanceRow, 0, len(totals)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, t := range totals {
		row := domain.TrialBalanceRow{
			AccountCode: t.AccountCode,
			AccountName: t.AccountCode,
			Debit:       t.Debit,
			Credit:      t.Credit,
			Balance:     t.Debit.Sub(t.Credit),
		}
		chart, err := s.accounts.Lookup(ctx, t.AccountCode)
		switch {
		case err == nil:
			row.AccountName = chart.Name
			row.AccountType = chart.AccountType
			if bal, err := accounting.SignedAmount(chart.AccountType, t.Debit, t.Credit); err == nil {
				row.Balance = bal
			}
		case errors.Is(err, apperrors.ErrNotFound):
			s.LogDebug(ctx, "Trial balance row for account missing from chart", slog.String("account_code", t.AccountCode))
		default:
			return nil, err
		}

		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(t.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(t.Credit)
	}
	tb.IsBalanced = tb.TotalDebit.Sub(tb.TotalCredit).Abs().LessThanOrEqual(domain.BalanceTolerance)
	return tb, nil
}

// GetEntriesByAccount lists an account's entries over [from, to] with a running balance starting at zero.
func (s *ledgerService) GetEntriesByAccount(ctx context.Context, accountID string, from, to time.Time) (*domain.AccountLedger, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: 'to' is before 'from'", apperrors.ErrValidation)
	}

	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	entries, err := s.ledgerRepo.ListEntriesByAccount(ctx, account.Code, from, to)
	if err != nil {
		s.LogError(ctx, err, "Failed to list entries for account", slog.String("account_id", accountID))
		return nil, err
	}

	lines, closing, err := accounting.RunningBalance(entries, account.AccountType, decimal.Zero)
	if err != nil {
		s.LogError(ctx, err, "Failed to compute running balance", slog.String("account_id", accountID))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInternal, err)
	}

	return &domain.AccountLedger{
		Account:        *account,
		From:           domain.DateOnly(from),
		To:             domain.DateOnly(to),
		Lines:          lines,
		ClosingBalance: closing,
	}, nil
}

// AccountBalance is the signed sum of an account's entries over [from, to].
func (s *ledgerService) AccountBalance(ctx context.Context, accountCode string, accountType domain.AccountType, from, to time.Time) (decimal.Decimal, error) {
	entries, err := s.ledgerRepo.ListEntriesByAccount(ctx, accountCode, from, to)
	if err != nil {
		s.LogError(ctx, err, "Failed to list entries for balance", slog.String("account_code", accountCode))
		return decimal.Zero, err
	}
	sum, err := accounting.SumSigned(entries, accountType)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
	}
	return sum, nil
}

// OutstandingEntries returns entries over [from, to] that are neither reversed nor reversals.
func (s *ledgerService) OutstandingEntries(ctx context.Context, accountCode string, from, to time.Time) ([]domain.LedgerEntry, error) {
	entries, err := s.ledgerRepo.ListEntriesByAccount(ctx, accountCode, from, to)
	if err != nil {
		s.LogError(ctx, err, "Failed to list outstanding entries", slog.String("account_code", accountCode))
		return nil, err
	}
	outstanding := make([]domain.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsReversed || e.IsReversal() {
			continue
		}
		outstanding = append(outstanding, e)
	}
	accounting.SortEntries(outstanding)
	return outstanding, nil
}
