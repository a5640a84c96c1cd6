package repository

import (
	"context"
	"fmt"

	"auditflow-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClaimRepository handles database operations for claims. All lookups are
// keyed by the external claim UUID, never the internal row id.
type ClaimRepository struct {
	db *pgxpool.Pool
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{db: db}
}

const claimColumns = `
	id, claim_id, claim_text, region, category, router_confidence,
	status, reasoning_trace, decision, decision_summary, report_path,
	failure_reason, created_at, updated_at`

const selectClaimByID = `SELECT` + claimColumns + `
	FROM claims
	WHERE claim_id = $1`

// Create inserts a new claim in the pending state
func (r *ClaimRepository) Create(ctx context.Context, claim *models.Claim) error {
	if claim.ClaimID == uuid.Nil {
		claim.ClaimID = uuid.New()
	}
	if claim.Status == "" {
		claim.Status = models.StatusPending
	}
	if claim.ReasoningTrace == nil {
		claim.ReasoningTrace = make(models.ReasoningTrace, 0)
	}

	query := `
		INSERT INTO claims (claim_id, claim_text, status, reasoning_trace)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		claim.ClaimID,
		claim.ClaimText,
		claim.Status,
		claim.ReasoningTrace,
	).Scan(&claim.ID, &claim.CreatedAt, &claim.UpdatedAt)

	return err
}

// GetByClaimID retrieves a claim by its external identifier
func (r *ClaimRepository) GetByClaimID(ctx context.Context, claimID uuid.UUID) (*models.Claim, error) {
	claim := &models.Claim{}
	var region, category *string

	err := r.db.QueryRow(ctx, selectClaimByID, claimID).Scan(
		&claim.ID,
		&claim.ClaimID,
		&claim.ClaimText,
		&region,
		&category,
		&claim.RouterConfidence,
		&claim.Status,
		&claim.ReasoningTrace,
		&claim.Decision,
		&claim.DecisionSummary,
		&claim.ReportPath,
		&claim.FailureReason,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if region != nil {
		claim.Region = models.Region(*region)
	}
	if category != nil {
		claim.Category = models.Category(*category)
	}
	if claim.ReasoningTrace == nil {
		claim.ReasoningTrace = make(models.ReasoningTrace, 0)
	}

	return claim, nil
}

// SetClassification records the router output on the claim
func (r *ClaimRepository) SetClassification(
	ctx context.Context,
	claimID uuid.UUID,
	region models.Region,
	category models.Category,
	confidence float64,
) error {
	query := `
		UPDATE claims SET
			region = $2,
			category = $3,
			router_confidence = $4,
			updated_at = NOW()
		WHERE claim_id = $1`

	_, err := r.db.Exec(ctx, query, claimID, nullable(string(region)), nullable(string(category)), confidence)
	return err
}

// SetStatus applies a status transition. Transitions are monotonic:
// re-applying the current status is a no-op and reports changed=false so the
// caller knows not to write a duplicate audit entry; a regression is an
// error.
func (r *ClaimRepository) SetStatus(
	ctx context.Context,
	claimID uuid.UUID,
	status models.ClaimStatus,
) (changed bool, err error) {
	claim, err := r.GetByClaimID(ctx, claimID)
	if err != nil {
		return false, err
	}

	if claim.Status == status {
		return false, nil
	}
	if !claim.Status.CanTransitionTo(status) {
		return false, fmt.Errorf("invalid status transition %s -> %s", claim.Status, status)
	}

	query := `UPDATE claims SET status = $2, updated_at = NOW() WHERE claim_id = $1`
	_, err = r.db.Exec(ctx, query, claimID, status)
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetDecision records the terminal decision and summary. Re-applying an
// identical decision is a no-op.
func (r *ClaimRepository) SetDecision(
	ctx context.Context,
	claimID uuid.UUID,
	decision models.Decision,
	summary string,
) (changed bool, err error) {
	claim, err := r.GetByClaimID(ctx, claimID)
	if err != nil {
		return false, err
	}
	if claim.Decision != nil && *claim.Decision == decision &&
		claim.DecisionSummary != nil && *claim.DecisionSummary == summary {
		return false, nil
	}

	query := `
		UPDATE claims SET
			decision = $2,
			decision_summary = $3,
			updated_at = NOW()
		WHERE claim_id = $1`

	_, err = r.db.Exec(ctx, query, claimID, decision, summary)
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetReportPath records the generated report artifact path. Idempotent for
// an identical path.
func (r *ClaimRepository) SetReportPath(ctx context.Context, claimID uuid.UUID, path string) (changed bool, err error) {
	claim, err := r.GetByClaimID(ctx, claimID)
	if err != nil {
		return false, err
	}
	if claim.ReportPath != nil && *claim.ReportPath == path {
		return false, nil
	}

	query := `UPDATE claims SET report_path = $2, updated_at = NOW() WHERE claim_id = $1`
	_, err = r.db.Exec(ctx, query, claimID, path)
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetFailureReason records why processing failed or was routed to review
func (r *ClaimRepository) SetFailureReason(ctx context.Context, claimID uuid.UUID, reason string) error {
	query := `UPDATE claims SET failure_reason = $2, updated_at = NOW() WHERE claim_id = $1`
	_, err := r.db.Exec(ctx, query, claimID, reason)
	return err
}

// UpdateTrace replaces the denormalized trace cache on the claim row. The
// audit log remains the source of truth for reconstruction.
func (r *ClaimRepository) UpdateTrace(ctx context.Context, claimID uuid.UUID, trace models.ReasoningTrace) error {
	query := `UPDATE claims SET reasoning_trace = $2, updated_at = NOW() WHERE claim_id = $1`
	_, err := r.db.Exec(ctx, query, claimID, trace)
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
