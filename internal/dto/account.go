package dto

import (
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/shopspring/decimal"
)

// CreateAccountRequest registers an account in the chart of accounts.
type CreateAccountRequest struct {
	Code        string             `json:"code" binding:"required" validate:"required,max=32"`
	Name        string             `json:"name" binding:"required" validate:"required,max=255"`
	AccountType domain.AccountType `json:"accountType" binding:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
}

// AccountResponse defines the data returned for an account.
// Mirrors domain.Account.
type AccountResponse struct {
	AccountID      string             `json:"accountID"`
	Code           string             `json:"code"`
	Name           string             `json:"name"`
	AccountType    domain.AccountType `json:"accountType"`
	IsActive       bool               `json:"isActive"`
	CurrentBalance decimal.Decimal    `json:"currentBalance"`
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:      acc.AccountID,
		Code:           acc.Code,
		Name:           acc.Name,
		AccountType:    acc.AccountType,
		IsActive:       acc.IsActive,
		CurrentBalance: acc.CurrentBalance,
	}
}

// ToListAccountResponse converts a slice of domain.Account to a slice of AccountResponse DTOs
func ToListAccountResponse(accounts []domain.Account) []AccountResponse {
	res := make([]AccountResponse, len(accounts))
	for i, acc := range accounts {
		res[i] = ToAccountResponse(&acc)
	}
	return res
}
