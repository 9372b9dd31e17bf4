package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SscSPs/erp_reconciliation/internal/apperrors"
	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/SscSPs/erp_reconciliation/internal/handlers"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type LedgerHandlerTestSuite struct {
	suite.Suite
	router            *gin.Engine
	mockLedgerService *MockLedgerService
	userID            string
	token             string
}

func (suite *LedgerHandlerTestSuite) SetupTest() {
	var v1 *gin.RouterGroup
	suite.router, v1 = newTestRouter()
	suite.mockLedgerService = new(MockLedgerService)
	handlers.RegisterLedgerRoutes(v1, suite.mockLedgerService)

	suite.userID = "clerk-7"
	suite.token = generateTestToken(&suite.Suite, suite.userID)
}

func (suite *LedgerHandlerTestSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func postBody(debit, credit string) map[string]any {
	return map[string]any{
		"moduleSource":    "AP",
		"referenceType":   "invoice",
		"referenceID":     "INV-42",
		"transactionDate": "2024-05-20T00:00:00Z",
		"entries": []map[string]string{
			{"accountCode": "6000", "debit": debit, "credit": "0"},
			{"accountCode": "2000", "debit": "0", "credit": credit},
		},
	}
}

func (suite *LedgerHandlerTestSuite) TestPostTransaction_Created() {
	posted := &domain.PostedTransaction{
		LedgerTransaction: domain.LedgerTransaction{
			TransactionID: "TXN-AP-INV-42-20240520134510-abc",
			ModuleSource:  "AP",
			ReferenceType: "invoice",
			ReferenceID:   "INV-42",
			Currency:      "USD",
			Period:        domain.PeriodHalfYearly,
			FiscalYear:    2024,
		},
		Entries: []domain.LedgerEntry{
			{EntryID: "e1", AccountCode: "6000", Debit: decimal.NewFromInt(100), Credit: decimal.Zero},
			{EntryID: "e2", AccountCode: "2000", Debit: decimal.Zero, Credit: decimal.NewFromInt(100)},
		},
	}
	suite.mockLedgerService.On("Post", mock.Anything,
		mock.MatchedBy(func(req dto.PostTransactionRequest) bool {
			return req.ReferenceID == "INV-42" && len(req.Entries) == 2 && req.Entries[0].Debit.Equal(decimal.NewFromInt(100))
		}), suite.userID).Return(posted, nil).Once()

	w := suite.serve(jsonRequest(http.MethodPost, "/api/v1/ledger/transactions", suite.token, postBody("100", "100")))

	suite.Equal(http.StatusCreated, w.Code)
	var body dto.TransactionResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal(posted.TransactionID, body.TransactionID)
	suite.Require().Len(body.Entries, 2)
	suite.Equal("100.00", body.Entries[0].Debit)
	suite.Equal("half_yearly", body.Entries[0].Period)
	suite.mockLedgerService.AssertExpectations(suite.T())
}

func (suite *LedgerHandlerTestSuite) TestPostTransaction_UnbalancedReportsTotals() {
	unbalanced := &apperrors.UnbalancedTransactionError{
		Debits:     decimal.NewFromInt(100),
		Credits:    decimal.NewFromInt(99),
		Difference: decimal.NewFromInt(1),
	}
	suite.mockLedgerService.On("Post", mock.Anything, mock.Anything, suite.userID).Return(nil, unbalanced).Once()

	w := suite.serve(jsonRequest(http.MethodPost, "/api/v1/ledger/transactions", suite.token, postBody("100", "99")))

	suite.Equal(http.StatusBadRequest, w.Code)
	var body map[string]any
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal("1.00", body["difference"])
	suite.Equal("100.00", body["debits"])
	suite.Equal("99.00", body["credits"])
}

func (suite *LedgerHandlerTestSuite) TestPostTransaction_MissingReference() {
	body := postBody("100", "100")
	delete(body, "referenceID")

	w := suite.serve(jsonRequest(http.MethodPost, "/api/v1/ledger/transactions", suite.token, body))

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockLedgerService.AssertNotCalled(suite.T(), "Post", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *LedgerHandlerTestSuite) TestReverseTransaction_AlreadyReversed() {
	suite.mockLedgerService.On("Reverse", mock.Anything, "TXN-1", "duplicate invoice", suite.userID).
		Return(nil, apperrors.ErrAlreadyReversed).Once()

	w := suite.serve(jsonRequest(http.MethodPost, "/api/v1/ledger/transactions/TXN-1/reverse", suite.token,
		dto.ReverseTransactionRequest{Reason: "duplicate invoice"}))

	suite.Equal(http.StatusConflict, w.Code)
	suite.mockLedgerService.AssertExpectations(suite.T())
}

func (suite *LedgerHandlerTestSuite) TestGetTransaction_NotFound() {
	suite.mockLedgerService.On("GetTransaction", mock.Anything, "TXN-404").Return(nil, apperrors.ErrTransactionNotFound).Once()

	w := suite.serve(jsonRequest(http.MethodGet, "/api/v1/ledger/transactions/TXN-404", suite.token, nil))

	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *LedgerHandlerTestSuite) TestTrialBalance() {
	report := &domain.TrialBalance{
		Period:      domain.PeriodHalfYearly,
		FiscalYear:  2024,
		TotalDebit:  decimal.NewFromInt(100),
		TotalCredit: decimal.NewFromInt(100),
		IsBalanced:  true,
	}
	suite.mockLedgerService.On("GetTrialBalance", mock.Anything, domain.PeriodHalfYearly, 2024).Return(report, nil).Once()

	w := suite.serve(jsonRequest(http.MethodGet, "/api/v1/ledger/trial-balance?period=half_yearly&fiscalYear=2024", suite.token, nil))

	suite.Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"isBalanced":true`)
	suite.mockLedgerService.AssertExpectations(suite.T())
}

func (suite *LedgerHandlerTestSuite) TestTrialBalance_UnknownPeriod() {
	w := suite.serve(jsonRequest(http.MethodGet, "/api/v1/ledger/trial-balance?period=monthly&fiscalYear=2024", suite.token, nil))

	suite.Equal(http.StatusBadRequest, w.Code)
	suite.mockLedgerService.AssertNotCalled(suite.T(), "GetTrialBalance", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *LedgerHandlerTestSuite) TestAccountEntries_ParsesDateRange() {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	ledger := &domain.AccountLedger{
		Account:        domain.Account{AccountID: "acc-1", Code: "1000"},
		From:           from,
		To:             to,
		ClosingBalance: decimal.NewFromInt(250),
	}
	suite.mockLedgerService.On("GetEntriesByAccount", mock.Anything, "acc-1",
		mock.MatchedBy(func(t time.Time) bool { return t.Equal(from) }),
		mock.MatchedBy(func(t time.Time) bool { return t.Equal(to) }),
	).Return(ledger, nil).Once()

	w := suite.serve(jsonRequest(http.MethodGet, "/api/v1/ledger/accounts/acc-1/entries?from=2024-01-01&to=2024-01-31", suite.token, nil))

	suite.Equal(http.StatusOK, w.Code)
	suite.mockLedgerService.AssertExpectations(suite.T())
}

func (suite *LedgerHandlerTestSuite) TestAccountEntries_BadDate() {
	w := suite.serve(jsonRequest(http.MethodGet, "/api/v1/ledger/accounts/acc-1/entries?from=01/01/2024&to=2024-01-31", suite.token, nil))

	suite.Equal(http.StatusBadRequest, w.Code)
}

func TestLedgerHandler(t *testing.T) {
	suite.Run(t, new(LedgerHandlerTestSuite))
}
