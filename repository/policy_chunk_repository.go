package repository

import (
	"context"
	"fmt"
	"strings"

	"auditflow-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PolicyChunkRepository handles database operations for policy chunks
type PolicyChunkRepository struct {
	db  *pgxpool.Pool
	dim int
}

// NewPolicyChunkRepository creates a new policy chunk repository
func NewPolicyChunkRepository(db *pgxpool.Pool, embeddingDim int) *PolicyChunkRepository {
	return &PolicyChunkRepository{db: db, dim: embeddingDim}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%.6f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Search performs a metadata-scoped cosine similarity search. Region and
// category are applied as filters before ranking, so a chunk from another
// jurisdiction can never appear in the result no matter how well it scores.
// An empty result is a valid outcome, not an error.
func (r *PolicyChunkRepository) Search(
	ctx context.Context,
	embedding []float64,
	region models.Region,
	category models.Category,
	topK int,
	minScore float64,
) ([]models.PolicyChunk, error) {
	if len(embedding) != r.dim {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", r.dim, len(embedding))
	}
	if !region.Valid() {
		return nil, fmt.Errorf("invalid region: %q", region)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("invalid category: %q", category)
	}

	vectorStr := formatVector(embedding)

	query := `
		SELECT
			id,
			content,
			region,
			category,
			policy_name,
			section,
			subsection,
			page_number,
			chunk_index,
			metadata,
			1 - (embedding <=> $1::vector) AS similarity_score,
			created_at,
			updated_at
		FROM policy_chunks
		WHERE
			region = $2
			AND category = $3
			AND 1 - (embedding <=> $1::vector) >= $4
		ORDER BY
			embedding <=> $1::vector
		LIMIT $5`

	rows, err := r.db.Query(ctx, query, vectorStr, region, category, minScore, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.PolicyChunk
	for rows.Next() {
		var chunk models.PolicyChunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.Content,
			&chunk.Region,
			&chunk.Category,
			&chunk.PolicyName,
			&chunk.Section,
			&chunk.Subsection,
			&chunk.PageNumber,
			&chunk.ChunkIndex,
			&chunk.Metadata,
			&chunk.SimilarityScore,
			&chunk.CreatedAt,
			&chunk.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan policy chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy chunks: %w", err)
	}

	return chunks, nil
}

// Insert stores a chunk with its embedding. Used by the seeding tool;
// ingestion proper happens offline.
func (r *PolicyChunkRepository) Insert(
	ctx context.Context,
	chunk *models.PolicyChunk,
	embedding []float64,
) error {
	if len(embedding) != r.dim {
		return fmt.Errorf("embedding must be %d dimensions, got %d", r.dim, len(embedding))
	}

	query := `
		INSERT INTO policy_chunks (
			content, embedding, region, category, policy_name,
			section, subsection, page_number, chunk_index, metadata
		) VALUES ($1, $2::vector, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(
		ctx, query,
		chunk.Content,
		formatVector(embedding),
		chunk.Region,
		chunk.Category,
		chunk.PolicyName,
		chunk.Section,
		chunk.Subsection,
		chunk.PageNumber,
		chunk.ChunkIndex,
		chunk.Metadata,
	).Scan(&chunk.ID, &chunk.CreatedAt, &chunk.UpdatedAt)

	return err
}

// CorpusStats summarizes the retrieval corpus
type CorpusStats struct {
	TotalChunks int64            `json:"total_chunks"`
	ByRegion    map[string]int64 `json:"by_region"`
	ByCategory  map[string]int64 `json:"by_category"`
	ByPolicy    map[string]int64 `json:"by_policy"`
}

// Stats returns chunk counts grouped by region, category and policy
func (r *PolicyChunkRepository) Stats(ctx context.Context) (*CorpusStats, error) {
	stats := &CorpusStats{
		ByRegion:   make(map[string]int64),
		ByCategory: make(map[string]int64),
		ByPolicy:   make(map[string]int64),
	}

	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM policy_chunks").Scan(&stats.TotalChunks)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}

	groups := []struct {
		column string
		dest   map[string]int64
	}{
		{"region", stats.ByRegion},
		{"category", stats.ByCategory},
		{"policy_name", stats.ByPolicy},
	}

	for _, g := range groups {
		query := fmt.Sprintf("SELECT %s, COUNT(*) FROM policy_chunks GROUP BY %s", g.column, g.column)
		rows, err := r.db.Query(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to group by %s: %w", g.column, err)
		}
		for rows.Next() {
			var key string
			var count int64
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan %s count: %w", g.column, err)
			}
			g.dest[key] = count
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating %s counts: %w", g.column, err)
		}
	}

	return stats, nil
}
