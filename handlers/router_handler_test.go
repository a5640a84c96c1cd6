package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditflow-backend/models"
	"auditflow-backend/repository"
	"auditflow-backend/service"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return []float64{0.1, 0.2}, nil
}

type stubChunkSearcher struct {
	chunks []models.PolicyChunk
}

func (s *stubChunkSearcher) Search(_ context.Context, _ []float64, _ models.Region, _ models.Category, _ int, _ float64) ([]models.PolicyChunk, error) {
	return s.chunks, nil
}

func (s *stubChunkSearcher) Stats(_ context.Context) (*repository.CorpusStats, error) {
	return &repository.CorpusStats{TotalChunks: int64(len(s.chunks))}, nil
}

func setupRouterRoutes(searcher *stubChunkSearcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	retrieval := service.NewRetrievalService(stubEmbedder{}, searcher)
	handler := NewRouterHandler(service.NewKeywordClassifier(nil), retrieval, nil)

	r := gin.New()
	r.POST("/api/classify", handler.Classify)
	r.POST("/api/classify/batch", handler.ClassifyBatch)
	r.POST("/api/search", handler.Search)
	r.GET("/api/stats", handler.Stats)
	return r
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestClassifyEndpoint(t *testing.T) {
	router := setupRouterRoutes(&stubChunkSearcher{})

	w := postJSON(t, router, "/api/classify", map[string]string{
		"claim_text": "Water leak damaged my flat in Bedok",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                   `json:"success"`
		Data    service.Classification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.RegionSG, resp.Data.Region)
	assert.Equal(t, models.CategoryHome, resp.Data.Category)
	assert.Equal(t, 1.0, resp.Data.Confidence)
}

func TestClassifyBatchEndpoint(t *testing.T) {
	router := setupRouterRoutes(&stubChunkSearcher{})

	w := postJSON(t, router, "/api/classify/batch", map[string][]string{
		"claim_texts": {
			"Water leak damaged my flat in Bedok",
			"Fire destroyed stock at our Sydney warehouse",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []service.Classification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, models.RegionSG, resp.Data[0].Region)
	assert.Equal(t, models.RegionAU, resp.Data[1].Region)
}

func TestClassifyBatchRejectsEmptyList(t *testing.T) {
	router := setupRouterRoutes(&stubChunkSearcher{})

	w := postJSON(t, router, "/api/classify/batch", map[string][]string{"claim_texts": {}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchEndpoint(t *testing.T) {
	searcher := &stubChunkSearcher{chunks: []models.PolicyChunk{
		{ID: 42, Content: "Section 1.3: Water Damage Coverage", Region: models.RegionSG, Category: models.CategoryHome},
	}}
	router := setupRouterRoutes(searcher)

	t.Run("scoped search", func(t *testing.T) {
		w := postJSON(t, router, "/api/search", map[string]string{
			"query":    "water leak",
			"region":   "SG",
			"category": "Home",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Water Damage Coverage")
	})

	t.Run("unknown scope rejected", func(t *testing.T) {
		w := postJSON(t, router, "/api/search", map[string]string{
			"query":    "water leak",
			"region":   "EU",
			"category": "Home",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_SCOPE")
	})
}

func TestStatsEndpoint(t *testing.T) {
	router := setupRouterRoutes(&stubChunkSearcher{chunks: make([]models.PolicyChunk, 3)})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_chunks":3`)
}
