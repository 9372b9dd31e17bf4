package services_test

import (
	"context"
	"testing"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/SscSPs/erp_reconciliation/internal/core/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAccountService_LookupCachesKnownCodes(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	repo.On("FindAccountByCode", ctx, "1000").
		Return(&domain.ChartAccount{Code: "1000", Name: "Bank", AccountType: domain.Asset, IsActive: true}, nil).Once()
	svc := services.NewAccountService(repo)

	for i := 0; i < 3; i++ {
		chart, err := svc.Lookup(ctx, "1000")
		require.NoError(t, err)
		assert.Equal(t, "Bank", chart.Name)
	}
	repo.AssertNumberOfCalls(t, "FindAccountByCode", 1)
}

func TestAccountService_LookupDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	repo.On("FindAccountByCode", ctx, "9999").Return(nil, apperrors.ErrAccountNotFound).Twice()
	svc := services.NewAccountService(repo)

	_, err := svc.Lookup(ctx, "9999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.Lookup(ctx, "9999")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	repo.AssertExpectations(t)
}

func TestAccountService_CacheDisabled(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	repo.On("FindAccountByCode", ctx, "1000").Return(&domain.ChartAccount{Code: "1000", IsActive: true}, nil)
	svc := services.NewAccountService(repo, services.WithChartCacheTTL(0))

	_, _ = svc.Lookup(ctx, "1000")
	_, _ = svc.Lookup(ctx, "1000")
	repo.AssertNumberOfCalls(t, "FindAccountByCode", 2)
}

func TestAccountService_CreateAccount(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAccountRepository)
	svc := services.NewAccountService(repo)

	t.Run("success", func(t *testing.T) {
		req := dto.CreateAccountRequest{Code: "1100", Name: "Petty cash", AccountType: domain.Asset}
		repo.On("SaveAccount", ctx, mock.MatchedBy(func(a domain.Account) bool {
			return a.Code == "1100" && a.IsActive && a.AccountID != ""
		}), "alice").Return(nil).Once()

		acc, err := svc.CreateAccount(ctx, req, "alice")

		require.NoError(t, err)
		assert.Equal(t, "1100", acc.Code)
		assert.True(t, acc.IsActive)
	})

	t.Run("invalid type", func(t *testing.T) {
		req := dto.CreateAccountRequest{Code: "1200", Name: "Odd", AccountType: domain.AccountType("OTHER")}

		_, err := svc.CreateAccount(ctx, req, "alice")

		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("duplicate code", func(t *testing.T) {
		req := dto.CreateAccountRequest{Code: "1000", Name: "Bank again", AccountType: domain.Asset}
		repo.On("SaveAccount", ctx, mock.MatchedBy(func(a domain.Account) bool { return a.Code == "1000" }), "alice").
			Return(apperrors.ErrDuplicate).Once()

		_, err := svc.CreateAccount(ctx, req, "alice")

		assert.ErrorIs(t, err, apperrors.ErrDuplicate)
	})

	repo.AssertExpectations(t)
}
