package repository

import (
	"context"
	"fmt"

	"auditflow-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogRepository handles the append-only audit trail. Append is the only
// mutation; entries are never updated or deleted.
type AuditLogRepository struct {
	db *pgxpool.Pool
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Append writes one audit entry
func (r *AuditLogRepository) Append(ctx context.Context, entry *models.AuditLogEntry) error {
	if entry.Detail == nil {
		entry.Detail = make(models.AuditDetail)
	}

	query := `
		INSERT INTO audit_logs (claim_id, action, service, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		entry.ClaimID,
		entry.Action,
		entry.Service,
		entry.Detail,
	).Scan(&entry.ID, &entry.CreatedAt)

	return err
}

// History returns every entry for a claim in append order. Replayed in order
// the entries reconstruct the claim's complete processing history.
func (r *AuditLogRepository) History(ctx context.Context, claimID uuid.UUID) ([]models.AuditLogEntry, error) {
	query := `
		SELECT id, claim_id, action, service, detail, created_at
		FROM audit_logs
		WHERE claim_id = $1
		ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit history: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var entry models.AuditLogEntry
		err := rows.Scan(
			&entry.ID,
			&entry.ClaimID,
			&entry.Action,
			&entry.Service,
			&entry.Detail,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
