package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portsrepo "github.com/SscSPs/erp_reconciliation/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/SscSPs/erp_reconciliation/internal/ingestion"
	"github.com/SscSPs/erp_reconciliation/internal/utils/accounting"
	"github.com/SscSPs/erp_reconciliation/internal/utils/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session listing bounds.
const (
	defaultSessionListLimit = 20
	maxSessionListLimit     = 200
)

// sessionService implements the SessionSvc interface
type sessionService struct {
	BaseService
	reconRepo    portsrepo.ReconciliationRepositoryFacade
	accounts     portssvc.AccountRegistrySvc
	ledger       portssvc.LedgerReaderSvc
	sessions     sessionWriter
	defaultRules domain.MatchingRules
}

// SessionServiceOption is a functional option for configuring the session service
type SessionServiceOption func(*sessionService)

// WithDefaultMatchingRules sets the rules used by sessions created without their own.
func WithDefaultMatchingRules(rules domain.MatchingRules) SessionServiceOption {
	return func(s *sessionService) {
		s.defaultRules = rules
	}
}

// WithSessionClock overrides the clock used for audit and lifecycle stamps.
func WithSessionClock(now func() time.Time) SessionServiceOption {
	return func(s *sessionService) {
		s.now = now
	}
}

// NewSessionService creates the reconciliation session service.
func NewSessionService(reconRepo portsrepo.ReconciliationRepositoryFacade, accounts portssvc.AccountRegistrySvc, ledger portssvc.LedgerReaderSvc, options ...SessionServiceOption) portssvc.SessionSvc {
	svc := &sessionService{
		reconRepo:    reconRepo,
		accounts:     accounts,
		ledger:       ledger,
		sessions:     sessionWriter{repo: reconRepo},
		defaultRules: domain.DefaultMatchingRules(),
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.SessionSvc = (*sessionService)(nil)

// CreateSession opens a draft session with the GL balance of the account over the period.
func (s *sessionService) CreateSession(ctx context.Context, req dto.CreateSessionRequest, actor string) (*domain.ReconciliationSession, error) {
	if err := validateStruct(req); err != nil {
		s.LogWarn(ctx, err, "Invalid create session request", slog.String("account_id", req.AccountID))
		return nil, err
	}
	rules := s.defaultRules
	if req.MatchingRules != nil {
		rules = *req.MatchingRules
	}
	if err := rules.Validate(); err != nil {
		s.LogWarn(ctx, err, "Invalid matching rules", slog.String("account_id", req.AccountID))
		return nil, err
	}

	account, err := s.accounts.GetAccount(ctx, req.AccountID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to resolve session account", slog.String("account_id", req.AccountID))
		return nil, err
	}

	start, end := domain.DateOnly(req.PeriodStart), domain.DateOnly(req.PeriodEnd)
	glBalance, err := s.ledger.AccountBalance(ctx, account.Code, account.AccountType, start, end)
	if err != nil {
		s.LogError(ctx, err, "Failed to compute GL balance for session", slog.String("account_id", account.AccountID))
		return nil, err
	}

	now := s.Now()
	session := domain.ReconciliationSession{
		SessionID:         uuid.NewString(),
		AccountID:         account.AccountID,
		AccountCode:       account.Code,
		AccountName:       account.Name,
		AccountType:       req.AccountType,
		LedgerAccountType: account.AccountType,
		PeriodStart:       start,
		PeriodEnd:         end,
		StatementBalance:  decimal.Zero,
		GLBalance:         glBalance,
		Status:            domain.SessionDraft,
		MatchingRules:     rules,
		Summary:           domain.ComputeSummary(nil, 0),
		Adjustments:       []domain.Adjustment{},
		Version:           1,
		AuditFields:       domain.NewAuditFields(actor, now),
	}
	session.RecomputeDifference()
	session.AuditLog = []domain.AuditLogEntry{domain.NewAuditEntry(domain.AuditSessionCreated,
		fmt.Sprintf("Session created for account %s", account.Code), actor, now,
		map[string]any{
			"periodStart": start.Format(time.DateOnly),
			"periodEnd":   end.Format(time.DateOnly),
			"glBalance":   glBalance.StringFixed(2),
		})}

	if err := s.reconRepo.SaveSession(ctx, session); err != nil {
		s.LogError(ctx, err, "Failed to save reconciliation session", slog.String("session_id", session.SessionID))
		return nil, err
	}

	s.LogInfo(ctx, "Reconciliation session created",
		slog.String("session_id", session.SessionID),
		slog.String("account_code", session.AccountCode))
	return &session, nil
}

// UploadStatement parses the file into statement items and mirrors the account's outstanding
// ledger entries for the period. An unreadable file counts as zero records.
func (s *sessionService) UploadStatement(ctx context.Context, sessionID string, file io.Reader, filename string, actor string) (*dto.UploadResult, error) {
	session, err := s.reconRepo.FindSessionByID(ctx, sessionID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to load session for upload", slog.String("session_id", sessionID))
		return nil, err
	}
	if err := session.EnsureOpen(); err != nil {
		s.LogWarn(ctx, err, "Upload rejected", slog.String("session_id", sessionID))
		return nil, err
	}

	result := &dto.UploadResult{Format: ingestion.DetectFormat(filename)}
	parsed, err := ingestion.Parse(file, filename, session.AccountType)
	switch {
	case err == nil:
		result.Format = parsed.Format
		result.RowsSkipped = parsed.SkippedRows
	case errors.Is(err, apperrors.ErrParse):
		s.LogWarn(ctx, err, "Statement unreadable, continuing with zero records",
			slog.String("session_id", sessionID),
			slog.String("filename", filename))
		result.ParseError = err.Error()
		parsed = &ingestion.ParseResult{}
	default:
		return nil, err
	}

	existing, err := s.reconRepo.ListItemsBySession(ctx, sessionID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list session items", slog.String("session_id", sessionID))
		return nil, err
	}

	now := s.Now()
	newItems := make([]domain.ReconciliationItem, 0, len(parsed.Records))
	for _, rec := range parsed.Records {
		newItems = append(newItems, domain.ReconciliationItem{
			ItemID:    uuid.NewString(),
			SessionID: sessionID,
			StatementEntry: &domain.StatementEntry{
				Date:            domain.DateOnly(rec.Date),
				Reference:       rec.Reference,
				Description:     rec.Description,
				Amount:          rec.Amount,
				Balance:         rec.Balance,
				TransactionType: rec.TransactionType,
				Source:          filename,
			},
			MatchStatus: domain.MatchStatusUnmatched,
			Version:     1,
			AuditFields: domain.NewAuditFields(actor, now),
		})
	}
	result.RecordsParsed = len(newItems)

	glItems, err := s.mirrorLedger(ctx, session, existing, actor, now)
	if err != nil {
		return nil, err
	}
	newItems = append(newItems, glItems...)
	result.LedgerItemsMirrored = len(glItems)

	all := append(existing, newItems...)
	session.StatementBalance = statementTotal(all)
	session.RecomputeDifference()
	session.Summary = domain.ComputeSummary(all, len(session.Adjustments))
	if session.Status == domain.SessionDraft {
		session.Status = domain.SessionInProgress
	}
	session.Touch(actor, now)

	details := map[string]any{
		"filename":            filename,
		"format":              result.Format,
		"recordsParsed":       result.RecordsParsed,
		"rowsSkipped":         result.RowsSkipped,
		"ledgerItemsMirrored": result.LedgerItemsMirrored,
		"statementBalance":    session.StatementBalance.StringFixed(2),
	}
	if result.ParseError != "" {
		details["parseError"] = result.ParseError
	}
	audit := domain.NewAuditEntry(domain.AuditStatementUploaded,
		fmt.Sprintf("Statement %s uploaded with %d record(s)", filename, result.RecordsParsed), actor, now, details)

	if err := s.reconRepo.SaveStatementUpload(ctx, session, newItems, audit); err != nil {
		s.LogFailure(ctx, err, "Failed to save statement upload", slog.String("session_id", sessionID))
		return nil, err
	}

	s.LogInfo(ctx, "Statement uploaded",
		slog.String("session_id", sessionID),
		slog.Int("records", result.RecordsParsed),
		slog.Int("skipped", result.RowsSkipped),
		slog.Int("mirrored", result.LedgerItemsMirrored))
	result.Session = session
	return result, nil
}

// mirrorLedger builds GL items for outstanding entries of the period not yet in the session.
func (s *sessionService) mirrorLedger(ctx context.Context, session *domain.ReconciliationSession, existing []domain.ReconciliationItem, actor string, now time.Time) ([]domain.ReconciliationItem, error) {
	entries, err := s.ledger.OutstandingEntries(ctx, session.AccountCode, session.PeriodStart, session.PeriodEnd)
	if err != nil {
		s.LogError(ctx, err, "Failed to load outstanding ledger entries", slog.String("session_id", session.SessionID))
		return nil, err
	}

	mirrored := make(map[string]bool, len(existing))
	for _, it := range existing {
		if it.GLEntry != nil {
			mirrored[it.GLEntry.LedgerEntryID] = true
		}
	}

	items := make([]domain.ReconciliationItem, 0, len(entries))
	for _, e := range entries {
		if mirrored[e.EntryID] {
			continue
		}
		amount, err := accounting.SignedEntryAmount(e, session.LedgerAccountType)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrInternal, err)
		}
		items = append(items, domain.ReconciliationItem{
			ItemID:    uuid.NewString(),
			SessionID: session.SessionID,
			GLEntry: &domain.GLEntry{
				Date:          domain.DateOnly(e.TransactionDate),
				Reference:     e.ReferenceID,
				Description:   e.Description,
				Amount:        amount,
				AccountCode:   e.AccountCode,
				LedgerEntryID: e.EntryID,
				TransactionID: e.TransactionID,
			},
			MatchStatus: domain.MatchStatusUnmatched,
			Version:     1,
			AuditFields: domain.NewAuditFields(actor, now),
		})
	}
	return items, nil
}

func (s *sessionService) GetSessionDetails(ctx context.Context, sessionID string, filter domain.ItemFilter, page pagination.Page) (*dto.SessionDetails, error) {
	session, err := s.reconRepo.FindSessionByID(ctx, sessionID)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to get session", slog.String("session_id", sessionID))
		return nil, err
	}
	items, next, err := s.reconRepo.ListItemsPage(ctx, sessionID, filter, page)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to list session items", slog.String("session_id", sessionID))
		return nil, err
	}
	return &dto.SessionDetails{Session: session, Items: items, NextToken: next}, nil
}

func (s *sessionService) ListSessions(ctx context.Context, filter domain.SessionFilter, limit int) ([]domain.ReconciliationSession, error) {
	if limit <= 0 {
		limit = defaultSessionListLimit
	}
	limit = min(limit, maxSessionListLimit)

	sessions, err := s.reconRepo.ListSessions(ctx, filter, limit)
	if err != nil {
		s.LogError(ctx, err, "Failed to list sessions")
		return nil, err
	}
	return sessions, nil
}

// CompleteSession closes the session once no item is left unmatched.
// Pending-review and excluded items do not block completion.
func (s *sessionService) CompleteSession(ctx context.Context, sessionID string, actor string) (*domain.ReconciliationSession, error) {
	now := s.Now()
	audit := domain.NewAuditEntry(domain.AuditSessionCompleted, "Session completed", actor, now, nil)

	session, err := s.sessions.update(ctx, sessionID, actor, now, func(session *domain.ReconciliationSession, items []domain.ReconciliationItem) error {
		if err := session.EnsureOpen(); err != nil {
			return err
		}
		unmatched := 0
		for _, it := range items {
			if it.MatchStatus == domain.MatchStatusUnmatched {
				unmatched++
			}
		}
		if unmatched > 0 {
			return &apperrors.UnmatchedItemsRemainError{Count: unmatched}
		}
		session.Status = domain.SessionCompleted
		completedAt := now
		session.CompletedAt = &completedAt
		return nil
	}, audit)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to complete session", slog.String("session_id", sessionID))
		return nil, err
	}

	s.LogInfo(ctx, "Reconciliation session completed", slog.String("session_id", sessionID))
	return session, nil
}

// ReviewSession signs off a completed session.
func (s *sessionService) ReviewSession(ctx context.Context, sessionID string, notes string, actor string) (*domain.ReconciliationSession, error) {
	now := s.Now()
	notes = strings.TrimSpace(notes)
	audit := domain.NewAuditEntry(domain.AuditSessionReviewed, "Session reviewed", actor, now,
		map[string]any{"notes": notes})

	session, err := s.sessions.update(ctx, sessionID, actor, now, func(session *domain.ReconciliationSession, _ []domain.ReconciliationItem) error {
		if session.Status != domain.SessionCompleted {
			return fmt.Errorf("%w: session %s is %s, only completed sessions can be reviewed",
				apperrors.ErrConflict, session.SessionID, session.Status)
		}
		session.Status = domain.SessionReviewed
		reviewedAt := now
		session.ReviewedAt = &reviewedAt
		session.ReviewedBy = actor
		session.ReviewNotes = notes
		return nil
	}, audit)
	if err != nil {
		s.LogFailure(ctx, err, "Failed to review session", slog.String("session_id", sessionID))
		return nil, err
	}

	s.LogInfo(ctx, "Reconciliation session reviewed", slog.String("session_id", sessionID))
	return session, nil
}

// AddNote appends a free-text note to the audit log. Closed sessions accept notes too.
func (s *sessionService) AddNote(ctx context.Context, sessionID string, note string, actor string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return fmt.Errorf("%w: note is required", apperrors.ErrValidation)
	}
	entry := domain.NewAuditEntry(domain.AuditNoteAdded, note, actor, s.Now(), nil)
	if err := s.reconRepo.AppendAudit(ctx, sessionID, entry); err != nil {
		s.LogFailure(ctx, err, "Failed to add session note", slog.String("session_id", sessionID))
		return err
	}
	return nil
}
