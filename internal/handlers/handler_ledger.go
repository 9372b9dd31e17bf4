package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/SscSPs/erp_reconciliation/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ledgerHandler exposes the posting engine and its reports.
type ledgerHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func newLedgerHandler(ls portssvc.LedgerSvcFacade) *ledgerHandler {
	return &ledgerHandler{ledgerService: ls}
}

// RegisterLedgerRoutes registers routes related to the general ledger.
func RegisterLedgerRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newLedgerHandler(ledgerService)

	ledger := rg.Group("/ledger")
	{
		ledger.POST("/transactions", h.postTransaction)
		ledger.GET("/transactions/:transactionID", h.getTransaction)
		ledger.POST("/transactions/:transactionID/reverse", h.reverseTransaction)
		ledger.GET("/trial-balance", h.getTrialBalance)
		ledger.GET("/accounts/:accountID/entries", h.getAccountEntries)
	}
}

// postTransaction godoc
// @Summary Post a ledger transaction
// @Description Validates and records a balanced double-entry transaction
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   transaction body dto.PostTransactionRequest true "Transaction legs and reference"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]interface{} "Invalid, unbalanced or unknown-account entries"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to post transaction"
// @Security BearerAuth
// @Router /ledger/transactions [post]
func (h *ledgerHandler) postTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.PostTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for PostTransaction", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	logger = logger.With(
		slog.String("user_id", userID),
		slog.String("module_source", req.ModuleSource),
		slog.String("reference_id", req.ReferenceID),
	)
	logger.Info("Received request to post transaction", slog.Int("entry_count", len(req.Entries)))

	posted, err := h.ledgerService.Post(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to post transaction")
		return
	}

	logger.Info("Transaction posted", slog.String("transaction_id", posted.TransactionID))
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(posted))
}

// getTransaction godoc
// @Summary Get a ledger transaction
// @Tags ledger
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Success 200 {object} dto.TransactionResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Transaction not found"
// @Failure 500 {object} map[string]string "Failed to retrieve transaction"
// @Security BearerAuth
// @Router /ledger/transactions/{transactionID} [get]
func (h *ledgerHandler) getTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	if _, ok := requireUser(c, logger); !ok {
		return
	}

	transactionID := c.Param("transactionID")
	logger = logger.With(slog.String("transaction_id", transactionID))

	txn, err := h.ledgerService.GetTransaction(c.Request.Context(), transactionID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve transaction")
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponse(txn))
}

// reverseTransaction godoc
// @Summary Reverse a ledger transaction
// @Description Posts the debit/credit swap of a transaction and flags the original entries as reversed
// @Tags ledger
// @Accept  json
// @Produce  json
// @Param   transactionID path string true "Transaction ID"
// @Param   reversal body dto.ReverseTransactionRequest true "Reversal reason"
// @Success 201 {object} dto.TransactionResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Transaction not found"
// @Failure 409 {object} map[string]string "Transaction already reversed"
// @Failure 500 {object} map[string]string "Failed to reverse transaction"
// @Security BearerAuth
// @Router /ledger/transactions/{transactionID}/reverse [post]
func (h *ledgerHandler) reverseTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ReverseTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ReverseTransaction", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	transactionID := c.Param("transactionID")
	logger = logger.With(slog.String("user_id", userID), slog.String("transaction_id", transactionID))
	logger.Info("Received request to reverse transaction")

	reversal, err := h.ledgerService.Reverse(c.Request.Context(), transactionID, req.Reason, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to reverse transaction")
		return
	}

	logger.Info("Transaction reversed", slog.String("reversal_id", reversal.TransactionID))
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(reversal))
}

// getTrialBalance godoc
// @Summary Generate a trial balance
// @Description Summarizes debits, credits and balances per account for one period bucket and fiscal year
// @Tags ledger
// @Produce json
// @Param period query string true "Period bucket" Enums(quarterly, half_yearly, yearly)
// @Param fiscalYear query int true "Fiscal year"
// @Success 200 {object} domain.TrialBalance
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to generate trial balance"
// @Security BearerAuth
// @Router /ledger/trial-balance [get]
func (h *ledgerHandler) getTrialBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.TrialBalanceParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query parameters for TrialBalance", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	if _, ok := requireUser(c, logger); !ok {
		return
	}

	logger = logger.With(slog.String("period", string(params.Period)), slog.Int("fiscal_year", params.FiscalYear))
	report, err := h.ledgerService.GetTrialBalance(c.Request.Context(), params.Period, params.FiscalYear)
	if err != nil {
		respondError(c, logger, err, "Failed to generate trial balance")
		return
	}

	logger.Info("Trial balance generated", slog.Int("row_count", len(report.Rows)), slog.Bool("balanced", report.IsBalanced))
	c.JSON(http.StatusOK, report)
}

// getAccountEntries godoc
// @Summary List an account's ledger entries
// @Description Lists entries over a date range with the running balance after each one
// @Tags ledger
// @Produce json
// @Param accountID path string true "Account ID"
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} domain.AccountLedger
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Account not found"
// @Failure 500 {object} map[string]string "Failed to list entries"
// @Security BearerAuth
// @Router /ledger/accounts/{accountID}/entries [get]
func (h *ledgerHandler) getAccountEntries(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.AccountEntriesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Invalid date range for account entries", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format. Use YYYY-MM-DD"})
		return
	}

	if _, ok := requireUser(c, logger); !ok {
		return
	}

	accountID := c.Param("accountID")
	logger = logger.With(slog.String("account_id", accountID))

	ledger, err := h.ledgerService.GetEntriesByAccount(c.Request.Context(), accountID, params.From, params.To)
	if err != nil {
		respondError(c, logger, err, "Failed to list entries")
		return
	}
	c.JSON(http.StatusOK, ledger)
}
