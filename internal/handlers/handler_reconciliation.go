package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/erp_reconciliation/internal/core/domain"
	portssvc "github.com/SscSPs/erp_reconciliation/internal/core/ports/services"
	"github.com/SscSPs/erp_reconciliation/internal/dto"
	"github.com/SscSPs/erp_reconciliation/internal/middleware"
	"github.com/SscSPs/erp_reconciliation/internal/utils/pagination"
	"github.com/gin-gonic/gin"
)

// statementFormField is the multipart field holding the uploaded statement.
const statementFormField = "file"

// reconciliationHandler handles sessions, matching and adjustments.
type reconciliationHandler struct {
	sessions          portssvc.SessionSvc
	matching          portssvc.MatchingSvc
	adjustments       portssvc.AdjustmentSvc
	maxStatementBytes int64
}

// RegisterReconciliationRoutes registers routes related to reconciliation sessions.
func RegisterReconciliationRoutes(rg *gin.RouterGroup, services *portssvc.ServiceContainer, maxStatementBytes int64) {
	h := &reconciliationHandler{
		sessions:          services.Session,
		matching:          services.Matching,
		adjustments:       services.Adjustment,
		maxStatementBytes: maxStatementBytes,
	}

	recon := rg.Group("/reconciliations")
	{
		recon.POST("", h.createSession)
		recon.GET("", h.listSessions)

		// Item routes are static segments, registered before the session wildcard group.
		items := recon.Group("/items/:itemID")
		items.POST("/exclude", h.excludeItem)
		items.POST("/unmatch", h.unmatchItem)
		items.POST("/flag", h.flagItem)

		session := recon.Group("/:sessionID")
		session.GET("", h.getSession)
		session.POST("/statement", h.uploadStatement)
		session.POST("/auto-match", h.autoMatch)
		session.POST("/manual-match", h.manualMatch)
		session.POST("/adjustments", h.createAdjustment)
		session.POST("/complete", h.completeSession)
		session.POST("/review", h.reviewSession)
		session.POST("/notes", h.addNote)
	}
}

// createSession godoc
// @Summary Open a reconciliation session
// @Description Creates a draft session for one account and period, capturing the GL balance of the period
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param session body dto.CreateSessionRequest true "Account, period and matching rules"
// @Success 201 {object} domain.ReconciliationSession
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Account not found"
// @Failure 500 {object} map[string]string "Failed to create session"
// @Security BearerAuth
// @Router /reconciliations [post]
func (h *reconciliationHandler) createSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateSession", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	logger = logger.With(slog.String("user_id", userID), slog.String("account_id", req.AccountID))
	logger.Info("Received request to create reconciliation session")

	session, err := h.sessions.CreateSession(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to create session")
		return
	}

	logger.Info("Reconciliation session created", slog.String("session_id", session.SessionID))
	c.JSON(http.StatusCreated, session)
}

// listSessions godoc
// @Summary List reconciliation sessions
// @Tags reconciliations
// @Produce json
// @Param accountID query string false "Filter by account"
// @Param status query string false "Filter by status" Enums(draft, in-progress, completed, reviewed)
// @Param limit query int false "Maximum sessions returned" default(20)
// @Success 200 {array} domain.ReconciliationSession
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list sessions"
// @Security BearerAuth
// @Router /reconciliations [get]
func (h *reconciliationHandler) listSessions(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListSessionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query parameters for ListSessions", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	if _, ok := requireUser(c, logger); !ok {
		return
	}

	sessions, err := h.sessions.ListSessions(c.Request.Context(),
		domain.SessionFilter{AccountID: params.AccountID, Status: params.Status}, params.Limit)
	if err != nil {
		respondError(c, logger, err, "Failed to list sessions")
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// getSession godoc
// @Summary Get a reconciliation session
// @Description Returns the session with one page of its items
// @Tags reconciliations
// @Produce json
// @Param sessionID path string true "Session ID"
// @Param matchStatus query string false "Filter items by status" Enums(unmatched, matched, pending-review, excluded)
// @Param side query string false "Filter items by side" Enums(statement, ledger)
// @Param limit query int false "Items per page" default(50)
// @Param nextToken query string false "Token for the next page"
// @Success 200 {object} dto.SessionDetails
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 500 {object} map[string]string "Failed to retrieve session"
// @Security BearerAuth
// @Router /reconciliations/{sessionID} [get]
func (h *reconciliationHandler) getSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.ListItemsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query parameters for GetSession", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	if _, ok := requireUser(c, logger); !ok {
		return
	}

	sessionID := c.Param("sessionID")
	logger = logger.With(slog.String("session_id", sessionID))

	details, err := h.sessions.GetSessionDetails(c.Request.Context(), sessionID,
		domain.ItemFilter{MatchStatus: params.MatchStatus, Side: params.Side},
		pagination.Page{Limit: params.Limit, NextToken: params.NextToken})
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve session")
		return
	}
	c.JSON(http.StatusOK, details)
}

// uploadStatement godoc
// @Summary Upload a statement file
// @Description Parses a CSV or Excel statement into session items and mirrors the period's outstanding ledger entries
// @Tags reconciliations
// @Accept multipart/form-data
// @Produce json
// @Param sessionID path string true "Session ID"
// @Param file formData file true "Statement file (.csv, .xlsx)"
// @Success 200 {object} dto.UploadResult
// @Failure 400 {object} map[string]string "Missing file"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session is closed"
// @Failure 413 {object} map[string]string "Statement too large"
// @Failure 500 {object} map[string]string "Failed to upload statement"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/statement [post]
func (h *reconciliationHandler) uploadStatement(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	sessionID := c.Param("sessionID")
	logger = logger.With(slog.String("user_id", userID), slog.String("session_id", sessionID))

	if h.maxStatementBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxStatementBytes)
	}
	header, err := c.FormFile(statementFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("Statement exceeds upload limit", slog.Int64("limit_bytes", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Statement file too large"})
			return
		}
		logger.Warn("Statement file missing from upload", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "A statement file is required in form field '" + statementFormField + "'"})
		return
	}

	file, err := header.Open()
	if err != nil {
		logger.Error("Failed to open uploaded statement", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read statement file"})
		return
	}
	defer file.Close()

	logger.Info("Received statement upload", slog.String("filename", header.Filename), slog.Int64("size", header.Size))
	result, err := h.sessions.UploadStatement(c.Request.Context(), sessionID, file, header.Filename, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to upload statement")
		return
	}

	logger.Info("Statement uploaded",
		slog.Int("records_parsed", result.RecordsParsed),
		slog.Int("ledger_items_mirrored", result.LedgerItemsMirrored))
	c.JSON(http.StatusOK, result)
}

// autoMatch godoc
// @Summary Run automatic matching
// @Description Pairs unmatched statement items with the best scoring unmatched ledger items
// @Tags reconciliations
// @Produce json
// @Param sessionID path string true "Session ID"
// @Success 200 {object} dto.AutoMatchResult
// @Failure 400 {object} map[string]string "Automatic matching disabled for the session"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session is closed"
// @Failure 500 {object} map[string]string "Failed to run matching"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/auto-match [post]
func (h *reconciliationHandler) autoMatch(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	sessionID := c.Param("sessionID")
	logger = logger.With(slog.String("user_id", userID), slog.String("session_id", sessionID))

	result, err := h.matching.AutoMatch(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to run matching")
		return
	}
	c.JSON(http.StatusOK, result)
}

// manualMatch godoc
// @Summary Match two items manually
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param sessionID path string true "Session ID"
// @Param match body dto.ManualMatchRequest true "Statement and ledger item IDs"
// @Success 200 {object} dto.MatchPair
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session or item not found"
// @Failure 409 {object} map[string]string "Session closed or item modified concurrently"
// @Failure 500 {object} map[string]string "Failed to match items"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/manual-match [post]
func (h *reconciliationHandler) manualMatch(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ManualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ManualMatch", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	sessionID := c.Param("sessionID")
	logger = logger.With(slog.String("user_id", userID), slog.String("session_id", sessionID))

	pair, err := h.matching.ManualMatch(c.Request.Context(), sessionID, req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to match items")
		return
	}
	c.JSON(http.StatusOK, pair)
}

// createAdjustment godoc
// @Summary Post an adjustment
// @Description Posts a balancing ledger transaction against an offset account and links it to the session
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param sessionID path string true "Session ID"
// @Param adjustment body dto.CreateAdjustmentRequest true "Signed amount and offset account"
// @Success 201 {object} dto.AdjustmentResult
// @Failure 400 {object} map[string]string "Invalid input or unknown offset account"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session is closed"
// @Failure 500 {object} map[string]string "Failed to create adjustment"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/adjustments [post]
func (h *reconciliationHandler) createAdjustment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateAdjustment", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	sessionID := c.Param("sessionID")
	logger = logger.With(slog.String("user_id", userID), slog.String("session_id", sessionID))
	logger.Info("Received request to create adjustment", slog.String("amount", req.Amount.String()))

	result, err := h.adjustments.CreateAdjustment(c.Request.Context(), sessionID, req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to create adjustment")
		return
	}
	c.JSON(http.StatusCreated, result)
}

// completeSession godoc
// @Summary Complete a session
// @Description Closes the session once no item is left unmatched
// @Tags reconciliations
// @Produce json
// @Param sessionID path string true "Session ID"
// @Success 200 {object} domain.ReconciliationSession
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]interface{} "Unmatched items remain or session closed"
// @Failure 500 {object} map[string]string "Failed to complete session"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/complete [post]
func (h *reconciliationHandler) completeSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	sessionID := c.Param("sessionID")
	logger = logger.With(slog.String("user_id", userID), slog.String("session_id", sessionID))

	session, err := h.sessions.CompleteSession(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to complete session")
		return
	}
	c.JSON(http.StatusOK, session)
}

// reviewSession godoc
// @Summary Review a completed session
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param sessionID path string true "Session ID"
// @Param review body dto.ReviewSessionRequest false "Reviewer notes"
// @Success 200 {object} domain.ReconciliationSession
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 409 {object} map[string]string "Session not completed"
// @Failure 500 {object} map[string]string "Failed to review session"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/review [post]
func (h *reconciliationHandler) reviewSession(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ReviewSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Failed to bind JSON for ReviewSession", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
			return
		}
	}

	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	sessionID := c.Param("sessionID")
	logger = logger.With(slog.String("user_id", userID), slog.String("session_id", sessionID))

	session, err := h.sessions.ReviewSession(c.Request.Context(), sessionID, req.Notes, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to review session")
		return
	}
	c.JSON(http.StatusOK, session)
}

// addNote godoc
// @Summary Add a note to a session
// @Tags reconciliations
// @Accept json
// @Param sessionID path string true "Session ID"
// @Param note body dto.AddNoteRequest true "Note text"
// @Success 204
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Session not found"
// @Failure 500 {object} map[string]string "Failed to add note"
// @Security BearerAuth
// @Router /reconciliations/{sessionID}/notes [post]
func (h *reconciliationHandler) addNote(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for AddNote", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	sessionID := c.Param("sessionID")
	logger = logger.With(slog.String("user_id", userID), slog.String("session_id", sessionID))

	if err := h.sessions.AddNote(c.Request.Context(), sessionID, req.Note, userID); err != nil {
		respondError(c, logger, err, "Failed to add note")
		return
	}
	c.Status(http.StatusNoContent)
}

// excludeItem godoc
// @Summary Exclude an item from matching
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param itemID path string true "Item ID"
// @Param reason body dto.ItemReasonRequest true "Reason"
// @Success 200 {object} domain.ReconciliationItem
// @Failure 400 {object} map[string]string "Invalid input or item already matched"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Item not found"
// @Failure 409 {object} map[string]string "Session closed or item modified concurrently"
// @Failure 500 {object} map[string]string "Failed to exclude item"
// @Security BearerAuth
// @Router /reconciliations/items/{itemID}/exclude [post]
func (h *reconciliationHandler) excludeItem(c *gin.Context) {
	h.itemWithReason(c, "Failed to exclude item", h.matching.Exclude)
}

// flagItem godoc
// @Summary Flag an item for review
// @Tags reconciliations
// @Accept json
// @Produce json
// @Param itemID path string true "Item ID"
// @Param reason body dto.ItemReasonRequest true "Reason"
// @Success 200 {object} domain.ReconciliationItem
// @Failure 400 {object} map[string]string "Invalid input or item already matched"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Item not found"
// @Failure 409 {object} map[string]string "Session closed or item modified concurrently"
// @Failure 500 {object} map[string]string "Failed to flag item"
// @Security BearerAuth
// @Router /reconciliations/items/{itemID}/flag [post]
func (h *reconciliationHandler) flagItem(c *gin.Context) {
	h.itemWithReason(c, "Failed to flag item", h.matching.MarkForReview)
}

type itemReasonFunc func(ctx context.Context, itemID, reason, actor string) (*domain.ReconciliationItem, error)

func (h *reconciliationHandler) itemWithReason(c *gin.Context, failure string, apply itemReasonFunc) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ItemReasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for item status change", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	itemID := c.Param("itemID")
	logger = logger.With(slog.String("user_id", userID), slog.String("item_id", itemID))

	item, err := apply(c.Request.Context(), itemID, req.Reason, userID)
	if err != nil {
		respondError(c, logger, err, failure)
		return
	}
	c.JSON(http.StatusOK, item)
}

// unmatchItem godoc
// @Summary Break a match
// @Description Returns both items of the pair to unmatched
// @Tags reconciliations
// @Produce json
// @Param itemID path string true "Either item of the pair"
// @Success 200 {object} dto.MatchPair
// @Failure 400 {object} map[string]string "Item is not matched"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Item not found"
// @Failure 409 {object} map[string]string "Session closed or item modified concurrently"
// @Failure 500 {object} map[string]string "Failed to unmatch item"
// @Security BearerAuth
// @Router /reconciliations/items/{itemID}/unmatch [post]
func (h *reconciliationHandler) unmatchItem(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := requireUser(c, logger)
	if !ok {
		return
	}

	itemID := c.Param("itemID")
	logger = logger.With(slog.String("user_id", userID), slog.String("item_id", itemID))

	pair, err := h.matching.Unmatch(c.Request.Context(), itemID, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to unmatch item")
		return
	}
	c.JSON(http.StatusOK, pair)
}
