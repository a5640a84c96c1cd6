package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditflow-backend/models"
)

type fakeStorage struct {
	artifacts map[string][]byte
	uploads   int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{artifacts: make(map[string][]byte)}
}

func (s *fakeStorage) Upload(_ context.Context, reportID uuid.UUID, filename string, data io.Reader) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	path := "reports/" + reportID.String() + "/" + filename
	s.artifacts[path] = content
	s.uploads++
	return path, nil
}

func (s *fakeStorage) Download(_ context.Context, storagePath string) (io.ReadCloser, error) {
	content, ok := s.artifacts[storagePath]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *fakeStorage) Delete(_ context.Context, storagePath string) error {
	delete(s.artifacts, storagePath)
	return nil
}

func completedClaim() *models.Claim {
	decision := models.DecisionCovered
	summary := "Covered under Section 1.3."
	claim := pendingClaim("Water leak damaged my flat in Bedok")
	claim.Status = models.StatusCompleted
	claim.Region = models.RegionSG
	claim.Category = models.CategoryHome
	claim.RouterConfidence = 1.0
	claim.Decision = &decision
	claim.DecisionSummary = &summary
	return claim
}

func stepEntry(claimID uuid.UUID, index int, action string, citations []interface{}) models.AuditLogEntry {
	return models.AuditLogEntry{
		ClaimID: claimID,
		Action:  models.AuditReasoningStep,
		Service: models.ServiceAgent,
		Detail: models.AuditDetail{
			"step_index":  index,
			"thought":     "thinking",
			"action":      action,
			"observation": "observed",
			"citations":   citations,
		},
	}
}

func TestRebuildTrace(t *testing.T) {
	claimID := uuid.New()
	history := []models.AuditLogEntry{
		{ClaimID: claimID, Action: models.AuditClaimSubmitted, Service: models.ServiceRouter},
		stepEntry(claimID, 0, models.ActionSearchClauses, []interface{}{float64(42)}),
		{ClaimID: claimID, Action: models.AuditStatusChanged, Service: models.ServiceAgent},
		stepEntry(claimID, 1, models.ActionEmitDecision, nil),
	}

	trace := RebuildTrace(history)

	require.Len(t, trace, 2)
	assert.True(t, trace.Contiguous())
	assert.Equal(t, models.ActionSearchClauses, trace[0].Action)
	assert.Equal(t, []int64{42}, trace[0].Citations)
	assert.Equal(t, models.ActionEmitDecision, trace[1].Action)
}

func TestGenerateReport(t *testing.T) {
	claim := completedClaim()
	claims := newFakeClaimStore(claim)
	audit := &fakeAuditStore{}
	require.NoError(t, audit.Append(context.Background(), &models.AuditLogEntry{
		ClaimID: claim.ClaimID,
		Action:  models.AuditClaimSubmitted,
		Service: models.ServiceRouter,
	}))
	entry := stepEntry(claim.ClaimID, 0, models.ActionSearchClauses, []interface{}{float64(42)})
	require.NoError(t, audit.Append(context.Background(), &entry))

	store := newFakeStorage()
	svc := NewReportService(
		ReportWithClaimStore(claims),
		ReportWithAuditStore(audit),
		ReportWithStorage(store),
	)

	result, err := svc.Generate(context.Background(), claim.ClaimID)
	require.NoError(t, err)
	assert.False(t, result.Existed)
	assert.NotEmpty(t, result.Path)

	content := string(store.artifacts[result.Path])
	assert.Contains(t, content, "CLAIMS DECISION REPORT")
	assert.Contains(t, content, claim.ClaimID.String())
	assert.Contains(t, content, "COVERED")
	assert.Contains(t, content, "search_policy_clauses")

	assert.Len(t, audit.byAction(models.AuditReportGenerated), 1)

	// regenerating returns the stored artifact without another upload
	again, err := svc.Generate(context.Background(), claim.ClaimID)
	require.NoError(t, err)
	assert.True(t, again.Existed)
	assert.Equal(t, result.Path, again.Path)
	assert.Equal(t, 1, store.uploads)
}

func TestGenerateReportRequiresTerminalClaim(t *testing.T) {
	claim := pendingClaim("Water leak damaged my flat in Bedok")
	svc := NewReportService(
		ReportWithClaimStore(newFakeClaimStore(claim)),
		ReportWithAuditStore(&fakeAuditStore{}),
		ReportWithStorage(newFakeStorage()),
	)

	_, err := svc.Generate(context.Background(), claim.ClaimID)
	assert.ErrorIs(t, err, ErrClaimNotTerminal)
}

func TestDownloadReport(t *testing.T) {
	claim := completedClaim()
	claims := newFakeClaimStore(claim)
	store := newFakeStorage()
	svc := NewReportService(
		ReportWithClaimStore(claims),
		ReportWithAuditStore(&fakeAuditStore{}),
		ReportWithStorage(store),
	)

	t.Run("before generation", func(t *testing.T) {
		_, _, err := svc.Download(context.Background(), claim.ClaimID)
		assert.ErrorIs(t, err, ErrNoReport)
	})

	t.Run("after generation", func(t *testing.T) {
		result, err := svc.Generate(context.Background(), claim.ClaimID)
		require.NoError(t, err)

		reader, filename, err := svc.Download(context.Background(), claim.ClaimID)
		require.NoError(t, err)
		defer reader.Close()

		content, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, store.artifacts[result.Path], content)
		assert.NotEmpty(t, filename)
	})
}

func TestReportPreview(t *testing.T) {
	claim := completedClaim()
	audit := &fakeAuditStore{}
	entry := stepEntry(claim.ClaimID, 0, models.ActionSearchClauses, nil)
	require.NoError(t, audit.Append(context.Background(), &entry))

	svc := NewReportService(
		ReportWithClaimStore(newFakeClaimStore(claim)),
		ReportWithAuditStore(audit),
		ReportWithStorage(newFakeStorage()),
	)

	preview, err := svc.Preview(context.Background(), claim.ClaimID)
	require.NoError(t, err)

	assert.Equal(t, "COVERED", preview.Decision)
	assert.Equal(t, 1, preview.StepCount)
	assert.Equal(t, 1, preview.AuditCount)
	assert.Contains(t, preview.Sections, "Reasoning Trail")
}
