package models

import "time"

// PolicyChunk represents a retrievable fragment of policy text from the
// knowledge base. Chunks are created in bulk during ingestion and are
// immutable afterwards except for metadata corrections.
type PolicyChunk struct {
	ID              int64                  `json:"id"`
	Content         string                 `json:"content"`
	Region          Region                 `json:"region"`
	Category        Category               `json:"category"`
	PolicyName      string                 `json:"policy_name"`
	Section         *string                `json:"section,omitempty"`
	Subsection      *string                `json:"subsection,omitempty"`
	PageNumber      *int                   `json:"page_number,omitempty"`
	ChunkIndex      int                    `json:"chunk_index"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	SimilarityScore float64                `json:"similarity_score,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}
