package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"auditflow-backend/models"
	"auditflow-backend/service"
)

// ClaimStore is the slice of the claim repository the handlers need.
type ClaimStore interface {
	Create(ctx context.Context, claim *models.Claim) error
	GetByClaimID(ctx context.Context, claimID uuid.UUID) (*models.Claim, error)
}

// AuditStore reads and appends audit history for the HTTP surface.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	History(ctx context.Context, claimID uuid.UUID) ([]models.AuditLogEntry, error)
}

// ClaimHandler serves the claim lifecycle endpoints.
type ClaimHandler struct {
	claims   ClaimStore
	audit    AuditStore
	analysis *service.AnalysisService
	reports  *service.ReportService
	logger   *zap.Logger
}

func NewClaimHandler(claims ClaimStore, audit AuditStore, analysis *service.AnalysisService, reports *service.ReportService, logger *zap.Logger) *ClaimHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClaimHandler{
		claims:   claims,
		audit:    audit,
		analysis: analysis,
		reports:  reports,
		logger:   logger,
	}
}

// CreateClaimRequest is the request body for submitting a claim.
type CreateClaimRequest struct {
	ClaimText string `json:"claim_text" binding:"required"`
}

// CreateClaim handles POST /api/claims
func (h *ClaimHandler) CreateClaim(c *gin.Context) {
	var req CreateClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	claim := &models.Claim{ClaimText: req.ClaimText}
	if err := h.claims.Create(c.Request.Context(), claim); err != nil {
		h.logger.Error("creating claim", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": "Failed to create claim",
			},
		})
		return
	}

	if err := h.audit.Append(c.Request.Context(), &models.AuditLogEntry{
		ClaimID: claim.ClaimID,
		Action:  models.AuditClaimSubmitted,
		Service: models.ServiceRouter,
		Detail:  models.AuditDetail{"claim_text": claim.ClaimText},
	}); err != nil {
		h.logger.Error("recording claim submission", zap.Error(err))
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    claim,
	})
}

// GetClaim handles GET /api/claims/:id
func (h *ClaimHandler) GetClaim(c *gin.Context) {
	claimID, ok := h.parseClaimID(c)
	if !ok {
		return
	}

	claim, err := h.claims.GetByClaimID(c.Request.Context(), claimID)
	if err != nil {
		h.respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    claim,
	})
}

// GetHistory handles GET /api/claims/:id/history
func (h *ClaimHandler) GetHistory(c *gin.Context) {
	claimID, ok := h.parseClaimID(c)
	if !ok {
		return
	}

	if _, err := h.claims.GetByClaimID(c.Request.Context(), claimID); err != nil {
		h.respondClaimError(c, err)
		return
	}

	history, err := h.audit.History(c.Request.Context(), claimID)
	if err != nil {
		h.logger.Error("loading audit history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "HISTORY_FAILED",
				"message": "Failed to load audit history",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"claim_id": claimID,
			"entries":  history,
		},
	})
}

// AnalyzeClaim handles POST /api/claims/:id/analyze. It runs the full
// pipeline synchronously and returns the outcome.
func (h *ClaimHandler) AnalyzeClaim(c *gin.Context) {
	claimID, ok := h.parseClaimID(c)
	if !ok {
		return
	}

	result, err := h.analysis.Analyze(c.Request.Context(), claimID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.respondClaimError(c, err)
			return
		}
		h.logger.Error("analyzing claim", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ANALYSIS_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// StreamAnalysis handles GET /api/claims/:id/analyze/stream. Each reasoning
// step is pushed as a server-sent event as the pipeline produces it.
func (h *ClaimHandler) StreamAnalysis(c *gin.Context) {
	claimID, ok := h.parseClaimID(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	events := h.analysis.AnalyzeStream(c.Request.Context(), claimID)
	c.Stream(func(w io.Writer) bool {
		event, open := <-events
		if !open {
			return false
		}
		c.SSEvent(event.Type, event)
		return true
	})
}

// GenerateReport handles POST /api/claims/:id/report
func (h *ClaimHandler) GenerateReport(c *gin.Context) {
	claimID, ok := h.parseClaimID(c)
	if !ok {
		return
	}

	result, err := h.reports.Generate(c.Request.Context(), claimID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClaimNotTerminal):
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "CLAIM_NOT_FINISHED",
					"message": "Claim has not reached a terminal state",
				},
			})
		case errors.Is(err, pgx.ErrNoRows):
			h.respondClaimError(c, err)
		default:
			h.logger.Error("generating report", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "REPORT_FAILED",
					"message": "Failed to generate report",
				},
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// PreviewReport handles GET /api/claims/:id/report/preview
func (h *ClaimHandler) PreviewReport(c *gin.Context) {
	claimID, ok := h.parseClaimID(c)
	if !ok {
		return
	}

	preview, err := h.reports.Preview(c.Request.Context(), claimID)
	if err != nil {
		h.respondClaimError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    preview,
	})
}

// DownloadReport handles GET /api/claims/:id/report
func (h *ClaimHandler) DownloadReport(c *gin.Context) {
	claimID, ok := h.parseClaimID(c)
	if !ok {
		return
	}

	reader, filename, err := h.reports.Download(c.Request.Context(), claimID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoReport):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "REPORT_NOT_FOUND",
					"message": "No report has been generated for this claim",
				},
			})
		case errors.Is(err, pgx.ErrNoRows):
			h.respondClaimError(c, err)
		default:
			h.logger.Error("downloading report", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DOWNLOAD_FAILED",
					"message": "Failed to download report",
				},
			})
		}
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", "text/plain")
	if _, err := io.Copy(c.Writer, reader); err != nil {
		h.logger.Error("streaming report", zap.Error(err))
	}
}

func (h *ClaimHandler) parseClaimID(c *gin.Context) (uuid.UUID, bool) {
	claimID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_CLAIM_ID",
				"message": "Invalid claim id format",
			},
		})
		return uuid.Nil, false
	}
	return claimID, true
}

func (h *ClaimHandler) respondClaimError(c *gin.Context, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CLAIM_NOT_FOUND",
				"message": "Claim not found",
			},
		})
		return
	}
	h.logger.Error("loading claim", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "Failed to load claim",
		},
	})
}
