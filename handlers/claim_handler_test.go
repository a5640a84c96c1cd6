package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditflow-backend/models"
)

type stubClaimStore struct {
	claims map[uuid.UUID]*models.Claim
}

func newStubClaimStore(claims ...*models.Claim) *stubClaimStore {
	store := &stubClaimStore{claims: make(map[uuid.UUID]*models.Claim)}
	for _, claim := range claims {
		store.claims[claim.ClaimID] = claim
	}
	return store
}

func (s *stubClaimStore) Create(_ context.Context, claim *models.Claim) error {
	claim.ClaimID = uuid.New()
	claim.Status = models.StatusPending
	s.claims[claim.ClaimID] = claim
	return nil
}

func (s *stubClaimStore) GetByClaimID(_ context.Context, claimID uuid.UUID) (*models.Claim, error) {
	claim, ok := s.claims[claimID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return claim, nil
}

type stubAuditStore struct {
	entries []models.AuditLogEntry
}

func (s *stubAuditStore) Append(_ context.Context, entry *models.AuditLogEntry) error {
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *stubAuditStore) History(_ context.Context, claimID uuid.UUID) ([]models.AuditLogEntry, error) {
	var history []models.AuditLogEntry
	for _, entry := range s.entries {
		if entry.ClaimID == claimID {
			history = append(history, entry)
		}
	}
	return history, nil
}

func setupClaimRouter(claims *stubClaimStore, audit *stubAuditStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewClaimHandler(claims, audit, nil, nil, nil)

	r := gin.New()
	r.POST("/api/claims", handler.CreateClaim)
	r.GET("/api/claims/:id", handler.GetClaim)
	r.GET("/api/claims/:id/history", handler.GetHistory)
	return r
}

func TestCreateClaim(t *testing.T) {
	claims := newStubClaimStore()
	audit := &stubAuditStore{}
	router := setupClaimRouter(claims, audit)

	body, _ := json.Marshal(map[string]string{
		"claim_text": "Water leak damaged my flat in Bedok",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/claims", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    models.Claim  `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEqual(t, uuid.Nil, resp.Data.ClaimID)
	assert.Equal(t, models.StatusPending, resp.Data.Status)

	// submission lands in the audit trail
	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditClaimSubmitted, audit.entries[0].Action)
}

func TestCreateClaimRejectsEmptyBody(t *testing.T) {
	router := setupClaimRouter(newStubClaimStore(), &stubAuditStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/claims", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
}

func TestGetClaim(t *testing.T) {
	claim := &models.Claim{
		ClaimID:   uuid.New(),
		ClaimText: "Water leak damaged my flat in Bedok",
		Status:    models.StatusPending,
	}
	router := setupClaimRouter(newStubClaimStore(claim), &stubAuditStore{})

	t.Run("found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/claims/"+claim.ClaimID.String(), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), claim.ClaimID.String())
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/claims/"+uuid.NewString(), nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "CLAIM_NOT_FOUND")
	})

	t.Run("malformed id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/claims/not-a-uuid", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_CLAIM_ID")
	})
}

func TestGetHistory(t *testing.T) {
	claim := &models.Claim{
		ClaimID: uuid.New(),
		Status:  models.StatusCompleted,
	}
	audit := &stubAuditStore{}
	audit.entries = append(audit.entries,
		models.AuditLogEntry{ClaimID: claim.ClaimID, Action: models.AuditClaimSubmitted, Service: models.ServiceRouter},
		models.AuditLogEntry{ClaimID: claim.ClaimID, Action: models.AuditClaimClassified, Service: models.ServiceRouter},
		models.AuditLogEntry{ClaimID: uuid.New(), Action: models.AuditClaimSubmitted, Service: models.ServiceRouter},
	)
	router := setupClaimRouter(newStubClaimStore(claim), audit)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/claims/"+claim.ClaimID.String()+"/history", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Entries []models.AuditLogEntry `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Entries, 2, "history is scoped to the claim")
}
