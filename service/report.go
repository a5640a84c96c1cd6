package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auditflow-backend/models"
	"auditflow-backend/storage"
)

// ErrClaimNotTerminal is returned when a report is requested for a claim
// that has not finished processing.
var ErrClaimNotTerminal = fmt.Errorf("claim has not reached a terminal state")

// Renderer turns a finished claim and its trace into a report artifact.
type Renderer interface {
	Render(claim *models.Claim, trace models.ReasoningTrace, history []models.AuditLogEntry) ([]byte, error)
	Extension() string
}

// ReportService assembles decision reports. The trace it renders is rebuilt
// from the audit trail, not read from the claim row, so the report always
// reflects the recorded history.
type ReportService struct {
	claims   ClaimStore
	audit    AuditStore
	renderer Renderer
	store    storage.Storage
	logger   *zap.Logger
}

type ReportOption func(*ReportService)

func ReportWithClaimStore(claims ClaimStore) ReportOption {
	return func(s *ReportService) { s.claims = claims }
}

func ReportWithAuditStore(audit AuditStore) ReportOption {
	return func(s *ReportService) { s.audit = audit }
}

func ReportWithRenderer(renderer Renderer) ReportOption {
	return func(s *ReportService) { s.renderer = renderer }
}

func ReportWithStorage(store storage.Storage) ReportOption {
	return func(s *ReportService) { s.store = store }
}

func ReportWithLogger(logger *zap.Logger) ReportOption {
	return func(s *ReportService) { s.logger = logger }
}

func NewReportService(opts ...ReportOption) *ReportService {
	s := &ReportService{
		renderer: &TextRenderer{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReportResult describes a generated (or previously generated) report.
type ReportResult struct {
	ClaimID uuid.UUID `json:"claim_id"`
	Path    string    `json:"path"`
	Existed bool      `json:"existed"`
}

// Generate renders and stores the report for a finished claim. Generating
// twice returns the stored artifact path without writing again.
func (s *ReportService) Generate(ctx context.Context, claimID uuid.UUID) (*ReportResult, error) {
	claim, err := s.claims.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("loading claim: %w", err)
	}
	if !claim.Status.Terminal() {
		return nil, ErrClaimNotTerminal
	}
	if claim.ReportPath != nil && *claim.ReportPath != "" {
		return &ReportResult{ClaimID: claimID, Path: *claim.ReportPath, Existed: true}, nil
	}

	history, err := s.audit.History(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("loading audit history: %w", err)
	}
	trace := RebuildTrace(history)

	artifact, err := s.renderer.Render(claim, trace, history)
	if err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}

	filename := fmt.Sprintf("decision_report_%s%s", claimID.String()[:8], s.renderer.Extension())
	path, err := s.store.Upload(ctx, uuid.New(), filename, bytes.NewReader(artifact))
	if err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}

	changed, err := s.claims.SetReportPath(ctx, claimID, path)
	if err != nil {
		return nil, fmt.Errorf("recording report path: %w", err)
	}
	if changed {
		if err := s.audit.Append(ctx, &models.AuditLogEntry{
			ClaimID: claimID,
			Action:  models.AuditReportGenerated,
			Service: models.ServiceReporter,
			Detail:  models.AuditDetail{"path": path, "bytes": len(artifact)},
		}); err != nil {
			return nil, err
		}
	}

	s.logger.Info("report generated",
		zap.String("claim_id", claimID.String()),
		zap.String("path", path))
	return &ReportResult{ClaimID: claimID, Path: path}, nil
}

// ErrNoReport is returned when a download is requested before generation.
var ErrNoReport = fmt.Errorf("no report has been generated for this claim")

// Download streams a previously generated report artifact.
func (s *ReportService) Download(ctx context.Context, claimID uuid.UUID) (io.ReadCloser, string, error) {
	claim, err := s.claims.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, "", fmt.Errorf("loading claim: %w", err)
	}
	if claim.ReportPath == nil || *claim.ReportPath == "" {
		return nil, "", ErrNoReport
	}
	reader, err := s.store.Download(ctx, *claim.ReportPath)
	if err != nil {
		return nil, "", fmt.Errorf("opening report artifact: %w", err)
	}
	return reader, filepath.Base(*claim.ReportPath), nil
}

// ReportPreview summarizes what a report would contain without rendering it.
type ReportPreview struct {
	ClaimID    uuid.UUID          `json:"claim_id"`
	Status     models.ClaimStatus `json:"status"`
	Decision   string             `json:"decision,omitempty"`
	Sections   []string           `json:"sections"`
	StepCount  int                `json:"step_count"`
	AuditCount int                `json:"audit_count"`
}

// Preview reports the sections a generated report would carry.
func (s *ReportService) Preview(ctx context.Context, claimID uuid.UUID) (*ReportPreview, error) {
	claim, err := s.claims.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("loading claim: %w", err)
	}
	history, err := s.audit.History(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("loading audit history: %w", err)
	}
	trace := RebuildTrace(history)

	preview := &ReportPreview{
		ClaimID:    claimID,
		Status:     claim.Status,
		Sections:   []string{"Claim", "Classification", "Reasoning Trail", "Decision", "Audit Trail"},
		StepCount:  len(trace),
		AuditCount: len(history),
	}
	if claim.Decision != nil {
		preview.Decision = string(*claim.Decision)
	}
	return preview, nil
}

// RebuildTrace reconstructs the reasoning trace from audit history. The audit
// trail is the source of truth; the trace cached on the claim row is only a
// convenience copy.
func RebuildTrace(history []models.AuditLogEntry) models.ReasoningTrace {
	trace := make(models.ReasoningTrace, 0)
	for _, entry := range history {
		if entry.Action != models.AuditReasoningStep {
			continue
		}
		raw, err := json.Marshal(entry.Detail)
		if err != nil {
			continue
		}
		var step models.ReasoningStep
		if err := json.Unmarshal(raw, &step); err != nil {
			continue
		}
		step.CreatedAt = entry.CreatedAt
		trace = append(trace, step)
	}
	return trace
}

// TextRenderer produces a plain-text decision report.
type TextRenderer struct{}

func (r *TextRenderer) Extension() string { return ".txt" }

func (r *TextRenderer) Render(claim *models.Claim, trace models.ReasoningTrace, history []models.AuditLogEntry) ([]byte, error) {
	var b strings.Builder

	b.WriteString("CLAIMS DECISION REPORT\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	fmt.Fprintf(&b, "Claim ID:   %s\n", claim.ClaimID)
	fmt.Fprintf(&b, "Submitted:  %s\n", claim.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Status:     %s\n\n", claim.Status)
	fmt.Fprintf(&b, "Claim text:\n%s\n\n", claim.ClaimText)

	b.WriteString("CLASSIFICATION\n" + strings.Repeat("-", 60) + "\n")
	fmt.Fprintf(&b, "Region:     %s\n", orUnclassified(string(claim.Region)))
	fmt.Fprintf(&b, "Category:   %s\n", orUnclassified(string(claim.Category)))
	fmt.Fprintf(&b, "Confidence: %.2f\n\n", claim.RouterConfidence)

	b.WriteString("REASONING TRAIL\n" + strings.Repeat("-", 60) + "\n")
	if len(trace) == 0 {
		b.WriteString("No reasoning steps recorded.\n")
	}
	for _, step := range trace {
		fmt.Fprintf(&b, "Step %d\n", step.StepIndex+1)
		fmt.Fprintf(&b, "  Thought:     %s\n", step.Thought)
		fmt.Fprintf(&b, "  Action:      %s\n", step.Action)
		fmt.Fprintf(&b, "  Observation: %s\n", step.Observation)
		if len(step.Citations) > 0 {
			fmt.Fprintf(&b, "  Citations:   %v\n", step.Citations)
		}
	}
	b.WriteString("\n")

	b.WriteString("DECISION\n" + strings.Repeat("-", 60) + "\n")
	if claim.Decision != nil {
		fmt.Fprintf(&b, "Decision: %s\n", *claim.Decision)
	} else {
		b.WriteString("Decision: none (routed for manual review)\n")
	}
	if claim.DecisionSummary != nil {
		fmt.Fprintf(&b, "Summary:  %s\n", *claim.DecisionSummary)
	}
	if claim.FailureReason != nil {
		fmt.Fprintf(&b, "Note:     %s\n", *claim.FailureReason)
	}
	b.WriteString("\n")

	b.WriteString("AUDIT TRAIL\n" + strings.Repeat("-", 60) + "\n")
	for _, entry := range history {
		fmt.Fprintf(&b, "%s  [%s] %s\n",
			entry.CreatedAt.Format(time.RFC3339), entry.Service, entry.Action)
	}

	return []byte(b.String()), nil
}

func orUnclassified(s string) string {
	if s == "" {
		return "unclassified"
	}
	return s
}
