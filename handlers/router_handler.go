package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auditflow-backend/models"
	"auditflow-backend/service"
)

// RouterHandler serves the stateless classification and search endpoints.
type RouterHandler struct {
	classifier service.Classifier
	retrieval  *service.RetrievalService
	logger     *zap.Logger
}

func NewRouterHandler(classifier service.Classifier, retrieval *service.RetrievalService, logger *zap.Logger) *RouterHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouterHandler{
		classifier: classifier,
		retrieval:  retrieval,
		logger:     logger,
	}
}

// ClassifyRequest is the request body for classifying a single text.
type ClassifyRequest struct {
	ClaimText string `json:"claim_text" binding:"required"`
}

// Classify handles POST /api/classify
func (h *RouterHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
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

	classification, err := h.classifier.Classify(c.Request.Context(), req.ClaimText)
	if err != nil {
		h.logger.Error("classifying text", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CLASSIFY_FAILED",
				"message": "Failed to classify claim text",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    classification,
	})
}

// ClassifyBatchRequest is the request body for classifying several texts.
type ClassifyBatchRequest struct {
	ClaimTexts []string `json:"claim_texts" binding:"required,min=1"`
}

// ClassifyBatch handles POST /api/classify/batch. Items fail independently;
// a failed item comes back unresolved.
func (h *RouterHandler) ClassifyBatch(c *gin.Context) {
	var req ClassifyBatchRequest
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

	results := service.ClassifyBatch(c.Request.Context(), h.classifier, req.ClaimTexts)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    results,
	})
}

// SearchRequest is the request body for the policy search endpoints.
type SearchRequest struct {
	Query    string `json:"query" binding:"required"`
	Region   string `json:"region" binding:"required"`
	Category string `json:"category" binding:"required"`
}

// Search handles POST /api/search
func (h *RouterHandler) Search(c *gin.Context) {
	h.search(c, h.retrieval.Search)
}

// SearchExclusions handles POST /api/search/exclusions
func (h *RouterHandler) SearchExclusions(c *gin.Context) {
	h.search(c, h.retrieval.SearchExclusions)
}

// SearchLimits handles POST /api/search/limits
func (h *RouterHandler) SearchLimits(c *gin.Context) {
	h.search(c, h.retrieval.SearchLimits)
}

type searchFunc func(ctx context.Context, query string, region models.Region, category models.Category) ([]models.PolicyChunk, error)

func (h *RouterHandler) search(c *gin.Context, run searchFunc) {
	var req SearchRequest
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

	region := models.Region(req.Region)
	category := models.Category(req.Category)
	if !region.Valid() || !category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_SCOPE",
				"message": "Unknown region or category",
			},
		})
		return
	}

	chunks, err := run(c.Request.Context(), req.Query, region, category)
	if err != nil {
		h.logger.Error("searching policy chunks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SEARCH_FAILED",
				"message": "Failed to search policy corpus",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"query":    req.Query,
			"region":   region,
			"category": category,
			"results":  chunks,
		},
	})
}

// Stats handles GET /api/stats
func (h *RouterHandler) Stats(c *gin.Context) {
	stats, err := h.retrieval.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("loading corpus stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STATS_FAILED",
				"message": "Failed to load corpus stats",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}
