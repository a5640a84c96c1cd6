// Package llm wraps the external model collaborators the pipeline depends
// on: text embedding, free-form completion, and region/category scoring.
// The pipeline only sees these interfaces; Gemini is the concrete backend.
package llm

import (
	"context"
	"errors"
)

var (
	ErrEmbeddingFailed  = errors.New("failed to generate embedding")
	ErrCompletionFailed = errors.New("failed to generate completion")
	ErrScoringFailed    = errors.New("failed to score claim text")
)

// Embedder turns text into a fixed-length vector. Semantically similar text
// yields vectors with high cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Completer produces the next thought or decision for the reasoning loop.
// Implementations may be slow and may fail; callers bound every call with a
// timeout and treat errors as recoverable up to a retry budget.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Scorer assigns a probability to each (region, category) pair for a claim
// text. Keys use the "REGION/Category" form, e.g. "SG/Home".
type Scorer interface {
	Score(ctx context.Context, text string) (map[string]float64, error)
}
