package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the reconciliation state of a single item.
type MatchStatus string

const (
	MatchStatusUnmatched     MatchStatus = "unmatched"
	MatchStatusMatched       MatchStatus = "matched"
	MatchStatusPendingReview MatchStatus = "pending-review"
	MatchStatusExcluded      MatchStatus = "excluded"
)

// IsValid reports whether s is a known status.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusUnmatched, MatchStatusMatched, MatchStatusPendingReview, MatchStatusExcluded:
		return true
	}
	return false
}

// MatchType records how a pair was formed. Only set on matched items.
type MatchType string

const (
	MatchTypeExact  MatchType = "exact"
	MatchTypeFuzzy  MatchType = "fuzzy"
	MatchTypeManual MatchType = "manual"
)

// ExactMatchThreshold is the score a pair must exceed to be classified exact.
const ExactMatchThreshold = 90.0

// ManualMatchConfidence is recorded for every operator-made pair.
const ManualMatchConfidence = 100.0

// ItemSide tells which source an item came from.
type ItemSide string

const (
	SideStatement ItemSide = "statement"
	SideLedger    ItemSide = "ledger"
)

// StatementEntry is the externally sourced side of an item.
type StatementEntry struct {
	Date            time.Time       `json:"date"`
	Reference       string          `json:"reference"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Balance         decimal.Decimal `json:"balance"`
	TransactionType string          `json:"transactionType"`
	Source          string          `json:"source"`
}

// GLEntry is the ledger side of an item, mirrored from a LedgerEntry.
type GLEntry struct {
	Date          time.Time       `json:"date"`
	Reference     string          `json:"reference"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	AccountCode   string          `json:"accountCode"`
	LedgerEntryID string          `json:"ledgerEntryID"`
	TransactionID string          `json:"transactionID"`
}

// MatchingDetails explains how a pair was scored. Both items of a pair carry the same values.
type MatchingDetails struct {
	DateDifferenceDays    int             `json:"dateDifferenceDays"`
	AmountDifference      decimal.Decimal `json:"amountDifference"`
	ReferenceMatch        bool            `json:"referenceMatch"`
	DescriptionSimilarity float64         `json:"descriptionSimilarity"`
	MatchedBy             string          `json:"matchedBy"`
	MatchedAt             time.Time       `json:"matchedAt"`
	Notes                 string          `json:"notes,omitempty"`
}

// ReconciliationItem is one statement row or one ledger row considered by a session.
type ReconciliationItem struct {
	ItemID          string           `json:"itemID"`
	SessionID       string           `json:"sessionID"`
	StatementEntry  *StatementEntry  `json:"statementEntry,omitempty"`
	GLEntry         *GLEntry         `json:"glEntry,omitempty"`
	MatchStatus     MatchStatus      `json:"matchStatus"`
	MatchType       MatchType        `json:"matchType,omitempty"`
	MatchConfidence float64          `json:"matchConfidence"`
	MatchedItemID   *string          `json:"matchedItemID,omitempty"`
	MatchingDetails *MatchingDetails `json:"matchingDetails,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Version         int              `json:"version"`
	AuditFields
}

// Side reports whether the item is a statement row or a ledger row.
func (i ReconciliationItem) Side() ItemSide {
	if i.StatementEntry != nil {
		return SideStatement
	}
	return SideLedger
}

// Date returns the date of whichever side the item carries.
func (i ReconciliationItem) Date() time.Time {
	if i.StatementEntry != nil {
		return i.StatementEntry.Date
	}
	if i.GLEntry != nil {
		return i.GLEntry.Date
	}
	return time.Time{}
}

// Amount returns the signed amount of whichever side the item carries.
func (i ReconciliationItem) Amount() decimal.Decimal {
	if i.StatementEntry != nil {
		return i.StatementEntry.Amount
	}
	if i.GLEntry != nil {
		return i.GLEntry.Amount
	}
	return decimal.Zero
}

// Reference returns the reference of whichever side the item carries.
func (i ReconciliationItem) Reference() string {
	if i.StatementEntry != nil {
		return i.StatementEntry.Reference
	}
	if i.GLEntry != nil {
		return i.GLEntry.Reference
	}
	return ""
}

// Description returns the description of whichever side the item carries.
func (i ReconciliationItem) Description() string {
	if i.StatementEntry != nil {
		return i.StatementEntry.Description
	}
	if i.GLEntry != nil {
		return i.GLEntry.Description
	}
	return ""
}

// IsMatchable reports whether the item may still be paired.
func (i ReconciliationItem) IsMatchable() bool {
	return i.MatchStatus == MatchStatusUnmatched || i.MatchStatus == MatchStatusPendingReview
}

// NeedsReview reports items parked for review and matches whose confidence
// did not clear the exact threshold.
func (i ReconciliationItem) NeedsReview() bool {
	if i.MatchStatus == MatchStatusPendingReview {
		return true
	}
	return i.MatchStatus == MatchStatusMatched && i.MatchConfidence <= ExactMatchThreshold
}

// MarkMatched pairs the item with its counterpart.
func (i *ReconciliationItem) MarkMatched(counterpartID string, matchType MatchType, confidence float64, details MatchingDetails) {
	id := counterpartID
	d := details
	i.MatchStatus = MatchStatusMatched
	i.MatchType = matchType
	i.MatchConfidence = confidence
	i.MatchedItemID = &id
	i.MatchingDetails = &d
	i.Reason = ""
	i.Touch(details.MatchedBy, details.MatchedAt)
}

// Reset returns the item to the unmatched state.
func (i *ReconciliationItem) Reset(actor string, at time.Time) {
	i.MatchStatus = MatchStatusUnmatched
	i.MatchType = ""
	i.MatchConfidence = 0
	i.MatchedItemID = nil
	i.MatchingDetails = nil
	i.Reason = ""
	i.Touch(actor, at)
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	MatchStatus MatchStatus
	Side        ItemSide
}

// Matches reports whether the item passes the filter.
func (f ItemFilter) Matches(i ReconciliationItem) bool {
	if f.MatchStatus != "" && i.MatchStatus != f.MatchStatus {
		return false
	}
	if f.Side != "" && i.Side() != f.Side {
		return false
	}
	return true
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	AccountID string
	Status    SessionStatus
}

// StatementRecord is one normalized row of an uploaded statement.
type StatementRecord struct {
	Date            time.Time       `json:"date"`
	Reference       string          `json:"reference"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Balance         decimal.Decimal `json:"balance"`
	TransactionType string          `json:"transactionType"`
}

// Statement transaction types.
const (
	StatementCredit = "credit"
	StatementDebit  = "debit"
)
