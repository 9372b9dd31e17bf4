package dto

import (
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateSessionRequest opens a reconciliation session for one account and period.
type CreateSessionRequest struct {
	AccountID     string                           `json:"accountID" binding:"required" validate:"required"`
	AccountType   domain.ReconciliationAccountType `json:"accountType" binding:"required" validate:"required,oneof=bank vendor customer inter-module"`
	PeriodStart   time.Time                        `json:"periodStart" binding:"required" validate:"required"`
	PeriodEnd     time.Time                        `json:"periodEnd" binding:"required" validate:"required,gtefield=PeriodStart"`
	MatchingRules *domain.MatchingRules            `json:"matchingRules,omitempty"`
}

// UploadResult reports what a statement upload did.
type UploadResult struct {
	Session             *domain.ReconciliationSession `json:"session"`
	Format              string                        `json:"format"`
	RecordsParsed       int                           `json:"recordsParsed"`
	RowsSkipped         int                           `json:"rowsSkipped"`
	LedgerItemsMirrored int                           `json:"ledgerItemsMirrored"`
	// ParseError is set when the file could not be read at all; the upload then counts zero records.
	ParseError string `json:"parseError,omitempty"`
}

// ListItemsParams are the query parameters of the session details endpoint.
type ListItemsParams struct {
	MatchStatus domain.MatchStatus `form:"matchStatus" binding:"omitempty,oneof=unmatched matched pending-review excluded"`
	Side        domain.ItemSide    `form:"side" binding:"omitempty,oneof=statement ledger"`
	Limit       int                `form:"limit,default=50" binding:"omitempty,min=1,max=500"`
	NextToken   string             `form:"nextToken"`
}

// ListSessionsParams are the query parameters of the session listing endpoint.
type ListSessionsParams struct {
	AccountID string               `form:"accountID"`
	Status    domain.SessionStatus `form:"status" binding:"omitempty,oneof=draft in-progress completed reviewed"`
	Limit     int                  `form:"limit,default=20" binding:"omitempty,min=1,max=200"`
}

// SessionDetails is a session together with one page of its items.
type SessionDetails struct {
	Session   *domain.ReconciliationSession `json:"session"`
	Items     []domain.ReconciliationItem   `json:"items"`
	NextToken *string                       `json:"nextToken,omitempty"`
}

// AutoMatchResult reports the outcome of one automatic matching run.
// MatchedCount counts every pair formed; PendingReviewCount is the subset at or below the exact threshold.
type AutoMatchResult struct {
	MatchedCount       int `json:"matchedCount"`
	PendingReviewCount int `json:"pendingReviewCount"`
	Conflicts          int `json:"conflicts"`
}

// ManualMatchRequest pairs a statement item with a ledger item.
type ManualMatchRequest struct {
	StatementItemID string `json:"statementItemID" binding:"required" validate:"required"`
	GLItemID        string `json:"glItemID" binding:"required" validate:"required"`
	Notes           string `json:"notes" validate:"max=1000"`
}

// MatchPair is the two items of a pair after an update.
type MatchPair struct {
	StatementItem domain.ReconciliationItem `json:"statementItem"`
	GLItem        domain.ReconciliationItem `json:"glItem"`
}

// ItemReasonRequest carries the reason for excluding or flagging an item.
type ItemReasonRequest struct {
	Reason string `json:"reason" binding:"required" validate:"required,max=1000"`
}

// CreateAdjustmentRequest asks for a balancing ledger transaction.
type CreateAdjustmentRequest struct {
	Description       string          `json:"description" binding:"required" validate:"required,max=1000"`
	Amount            decimal.Decimal `json:"amount"`
	OffsetAccountCode string          `json:"offsetAccountCode" binding:"required" validate:"required"`
}

// AdjustmentResult is returned after an adjustment is posted.
type AdjustmentResult struct {
	TransactionID string                        `json:"transactionID"`
	AdjustmentID  string                        `json:"adjustmentID"`
	Session       *domain.ReconciliationSession `json:"session"`
}

// ReviewSessionRequest signs off a completed session.
type ReviewSessionRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// AddNoteRequest appends a free-text note to a session's audit log.
type AddNoteRequest struct {
	Note string `json:"note" binding:"required" validate:"required,max=2000"`
}
