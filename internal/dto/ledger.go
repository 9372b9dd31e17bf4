package dto

import (
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
)

// PostTransactionRequest asks the posting engine to record a balanced transaction.
type PostTransactionRequest struct {
	Entries         []domain.EntryLine `json:"entries" binding:"required" validate:"required,dive"`
	ModuleSource    string             `json:"moduleSource" binding:"required" validate:"required,max=50"`
	ReferenceType   string             `json:"referenceType" binding:"required" validate:"required,max=50"`
	ReferenceID     string             `json:"referenceID" binding:"required" validate:"required,max=255"`
	TransactionDate time.Time          `json:"transactionDate" binding:"required" validate:"required"`
	Description     string             `json:"description" validate:"max=1000"`
	Currency        string             `json:"currency" validate:"omitempty,len=3"`
}

// ReverseTransactionRequest carries the reason recorded on the reversing transaction.
type ReverseTransactionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// TrialBalanceParams are the query parameters of the trial balance endpoint.
type TrialBalanceParams struct {
	Period     domain.Period `form:"period" binding:"required,oneof=quarterly half_yearly yearly"`
	FiscalYear int           `form:"fiscalYear" binding:"required,min=1900,max=9999"`
}

// AccountEntriesParams are the query parameters of the account ledger endpoint.
type AccountEntriesParams struct {
	From time.Time `form:"from" time_format:"2006-01-02" time_utc:"1" binding:"required"`
	To   time.Time `form:"to" time_format:"2006-01-02" time_utc:"1" binding:"required"`
}

// LedgerEntryResponse is the wire shape of one posted leg.
type LedgerEntryResponse struct {
	EntryID                 string    `json:"entryID"`
	AccountCode             string    `json:"accountCode"`
	Description             string    `json:"description,omitempty"`
	Debit                   string    `json:"debit"`
	Credit                  string    `json:"credit"`
	TransactionDate         time.Time `json:"transactionDate"`
	Period                  string    `json:"period"`
	FiscalYear              int       `json:"fiscalYear"`
	IsReversed              bool      `json:"isReversed"`
	ReversedByTransactionID *string   `json:"reversedByTransactionID,omitempty"`
}

// TransactionResponse is the wire shape of a posted transaction.
type TransactionResponse struct {
	TransactionID         string                `json:"transactionID"`
	TransactionDate       time.Time             `json:"transactionDate"`
	ModuleSource          string                `json:"moduleSource"`
	ReferenceType         string                `json:"referenceType"`
	ReferenceID           string                `json:"referenceID"`
	Description           string                `json:"description"`
	Currency              string                `json:"currency"`
	ReversesTransactionID *string               `json:"reversesTransactionID,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
	CreatedBy             string                `json:"createdBy"`
	Entries               []LedgerEntryResponse `json:"entries"`
}

// ToLedgerEntryResponse converts a domain.LedgerEntry to its DTO.
func ToLedgerEntryResponse(e domain.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		EntryID:                 e.EntryID,
		AccountCode:             e.AccountCode,
		Description:             e.Description,
		Debit:                   e.Debit.StringFixed(2),
		Credit:                  e.Credit.StringFixed(2),
		TransactionDate:         e.TransactionDate,
		Period:                  string(e.Period),
		FiscalYear:              e.FiscalYear,
		IsReversed:              e.IsReversed,
		ReversedByTransactionID: e.ReversedByTransactionID,
	}
}

// ToTransactionResponse converts a domain.PostedTransaction to its DTO.
func ToTransactionResponse(t *domain.PostedTransaction) TransactionResponse {
	entries := make([]LedgerEntryResponse, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = ToLedgerEntryResponse(e)
	}
	return TransactionResponse{
		TransactionID:         t.TransactionID,
		TransactionDate:       t.TransactionDate,
		ModuleSource:          t.ModuleSource,
		ReferenceType:         t.ReferenceType,
		ReferenceID:           t.ReferenceID,
		Description:           t.Description,
		Currency:              t.Currency,
		ReversesTransactionID: t.ReversesTransactionID,
		CreatedAt:             t.CreatedAt,
		CreatedBy:             t.CreatedBy,
		Entries:               entries,
	}
}
