package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/shopspring/decimal"
)

// ReconciliationAccountType classifies the counterparty whose statement is reconciled.
type ReconciliationAccountType string

const (
	ReconcileBank        ReconciliationAccountType = "bank"
	ReconcileVendor      ReconciliationAccountType = "vendor"
	ReconcileCustomer    ReconciliationAccountType = "customer"
	ReconcileInterModule ReconciliationAccountType = "inter-module"
)

// IsValid reports whether t is a supported reconciliation account type.
func (t ReconciliationAccountType) IsValid() bool {
	switch t {
	case ReconcileBank, ReconcileVendor, ReconcileCustomer, ReconcileInterModule:
		return true
	}
	return false
}

// SessionStatus is the lifecycle state of a reconciliation session.
type SessionStatus string

const (
	SessionDraft      SessionStatus = "draft"
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
	SessionReviewed   SessionStatus = "reviewed"
)

// Audit actions recorded on a session.
const (
	AuditSessionCreated    = "session_created"
	AuditStatementUploaded = "statement_uploaded"
	AuditAutoMatch         = "auto_match"
	AuditManualMatch       = "manual_match"
	AuditItemExcluded      = "item_excluded"
	AuditItemUnmatched     = "item_unmatched"
	AuditItemFlagged       = "item_flagged"
	AuditAdjustmentCreated = "adjustment_created"
	AuditSessionCompleted  = "session_completed"
	AuditSessionReviewed   = "session_reviewed"
	AuditNoteAdded         = "note_added"
)

// MatchingRules tune the automatic matcher for one session.
type MatchingRules struct {
	DateToleranceDays int `json:"dateToleranceDays" validate:"gte=0,lte=365"`
	// AmountTolerancePct is a fraction: 0.01 accepts amounts within 1% of the statement amount.
	AmountTolerancePct decimal.Decimal `json:"amountTolerancePct"`
	AutoMatchEnabled   bool            `json:"autoMatchEnabled"`
}

// DefaultMatchingRules returns the rules applied when a session does not specify any.
func DefaultMatchingRules() MatchingRules {
	return MatchingRules{
		DateToleranceDays:  3,
		AmountTolerancePct: decimal.NewFromFloat(0.01),
		AutoMatchEnabled:   true,
	}
}

// Validate checks rule bounds.
func (r MatchingRules) Validate() error {
	if r.DateToleranceDays < 0 {
		return fmt.Errorf("%w: date tolerance cannot be negative", apperrors.ErrValidation)
	}
	if r.AmountTolerancePct.IsNegative() || r.AmountTolerancePct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: amount tolerance must be between 0 and 1", apperrors.ErrValidation)
	}
	return nil
}

// Summary holds the item counters shown for a session.
type Summary struct {
	TotalItems        int `json:"totalItems"`
	Matched           int `json:"matched"`
	Unmatched         int `json:"unmatched"`
	PendingReview     int `json:"pendingReview"`
	Excluded          int `json:"excluded"`
	AdjustmentEntries int `json:"adjustmentEntries"`
}

// ComputeSummary derives the counters from the items of a session.
// Low-confidence matches are reported as pending review.
func ComputeSummary(items []ReconciliationItem, adjustmentEntries int) Summary {
	s := Summary{TotalItems: len(items), AdjustmentEntries: adjustmentEntries}
	for _, it := range items {
		switch {
		case it.NeedsReview():
			s.PendingReview++
		case it.MatchStatus == MatchStatusMatched:
			s.Matched++
		case it.MatchStatus == MatchStatusExcluded:
			s.Excluded++
		default:
			s.Unmatched++
		}
	}
	return s
}

// Adjustment links a balancing ledger transaction to a session.
type Adjustment struct {
	AdjustmentID         string          `json:"adjustmentID"`
	Description          string          `json:"description"`
	Amount               decimal.Decimal `json:"amount"`
	OffsetAccountCode    string          `json:"offsetAccountCode"`
	JournalTransactionID string          `json:"journalTransactionID"`
	CreatedAt            time.Time       `json:"createdAt"`
	CreatedBy            string          `json:"createdBy"`
}

// AuditLogEntry is one append-only record of a session mutation.
type AuditLogEntry struct {
	Action      string         `json:"action"`
	Description string         `json:"description"`
	PerformedBy string         `json:"performedBy"`
	PerformedAt time.Time      `json:"performedAt"`
	Details     map[string]any `json:"details,omitempty"`
}

// ReconciliationSession reconciles one account's statement against its ledger for a period.
type ReconciliationSession struct {
	SessionID   string                    `json:"sessionID"`
	AccountID   string                    `json:"accountID"`
	AccountCode string                    `json:"accountCode"`
	AccountName string                    `json:"accountName"`
	AccountType ReconciliationAccountType `json:"accountType"`
	// LedgerAccountType decides how ledger amounts are signed for this account.
	LedgerAccountType AccountType     `json:"ledgerAccountType"`
	PeriodStart       time.Time       `json:"periodStart"`
	PeriodEnd         time.Time       `json:"periodEnd"`
	StatementBalance  decimal.Decimal `json:"statementBalance"`
	GLBalance         decimal.Decimal `json:"glBalance"`
	Difference        decimal.Decimal `json:"difference"`
	Status            SessionStatus   `json:"status"`
	MatchingRules     MatchingRules   `json:"matchingRules"`
	Summary           Summary         `json:"summary"`
	Adjustments       []Adjustment    `json:"adjustments"`
	AuditLog          []AuditLogEntry `json:"auditLog"`
	CompletedAt       *time.Time      `json:"completedAt,omitempty"`
	ReviewedAt        *time.Time      `json:"reviewedAt,omitempty"`
	ReviewedBy        string          `json:"reviewedBy,omitempty"`
	ReviewNotes       string          `json:"reviewNotes,omitempty"`
	Version           int             `json:"version"`
	AuditFields
}

// IsOpen reports whether the session still accepts mutations other than audit appends.
func (s *ReconciliationSession) IsOpen() bool {
	return s.Status == SessionDraft || s.Status == SessionInProgress
}

// EnsureOpen returns ErrSessionClosed for completed or reviewed sessions.
func (s *ReconciliationSession) EnsureOpen() error {
	if !s.IsOpen() {
		return fmt.Errorf("%w: session %s is %s", apperrors.ErrSessionClosed, s.SessionID, s.Status)
	}
	return nil
}

// RecomputeDifference sets Difference to statement balance minus GL balance.
func (s *ReconciliationSession) RecomputeDifference() {
	s.Difference = s.StatementBalance.Sub(s.GLBalance)
}

// ContainsDate reports whether t falls inside the session period, inclusive of both days.
func (s *ReconciliationSession) ContainsDate(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(DateOnly(s.PeriodStart)) && !d.After(DateOnly(s.PeriodEnd))
}

// NewAuditEntry builds an audit record; the caller appends it through the repository.
func NewAuditEntry(action, description, actor string, at time.Time, details map[string]any) AuditLogEntry {
	return AuditLogEntry{
		Action:      action,
		Description: description,
		PerformedBy: actor,
		PerformedAt: at,
		Details:     details,
	}
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
