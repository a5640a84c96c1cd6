package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"auditflow-backend/llm"
	"auditflow-backend/models"
	"auditflow-backend/repository"
)

// ChunkSearcher is the slice of the chunk repository the retrieval service
// needs.
type ChunkSearcher interface {
	Search(ctx context.Context, embedding []float64, region models.Region, category models.Category, topK int, minScore float64) ([]models.PolicyChunk, error)
	Stats(ctx context.Context) (*repository.CorpusStats, error)
}

// RetrievalService embeds a query and runs a metadata-scoped similarity
// search over the policy corpus. Region and category always bound the search
// space; ranking happens only inside that scope.
type RetrievalService struct {
	embedder          llm.Embedder
	chunks            ChunkSearcher
	topK              int
	minScore          float64
	exclusionMinScore float64
	logger            *zap.Logger
}

type RetrievalOption func(*RetrievalService)

func RetrievalWithTopK(topK int) RetrievalOption {
	return func(s *RetrievalService) { s.topK = topK }
}

func RetrievalWithMinScore(minScore float64) RetrievalOption {
	return func(s *RetrievalService) { s.minScore = minScore }
}

func RetrievalWithExclusionMinScore(minScore float64) RetrievalOption {
	return func(s *RetrievalService) { s.exclusionMinScore = minScore }
}

func RetrievalWithLogger(logger *zap.Logger) RetrievalOption {
	return func(s *RetrievalService) { s.logger = logger }
}

func NewRetrievalService(embedder llm.Embedder, chunks ChunkSearcher, opts ...RetrievalOption) *RetrievalService {
	s := &RetrievalService{
		embedder:          embedder,
		chunks:            chunks,
		topK:              5,
		minScore:          0.4,
		exclusionMinScore: 0.3,
		logger:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns the policy chunks most similar to the query within the
// given region and category. An empty result is a valid answer, not an error.
func (s *RetrievalService) Search(ctx context.Context, query string, region models.Region, category models.Category) ([]models.PolicyChunk, error) {
	return s.search(ctx, query, region, category, s.minScore)
}

// SearchExclusions looks for exclusion clauses relevant to the query. The
// query is augmented with exclusion vocabulary so that chunks phrased as
// carve-outs rank above general coverage text, and the score floor is lower
// because exclusions rarely share surface wording with the claim itself.
func (s *RetrievalService) SearchExclusions(ctx context.Context, query string, region models.Region, category models.Category) ([]models.PolicyChunk, error) {
	augmented := fmt.Sprintf("exclusion clause: %s NOT covered excluded from coverage", query)
	return s.search(ctx, augmented, region, category, s.exclusionMinScore)
}

// SearchLimits looks for coverage limit and sum-insured clauses for the query.
func (s *RetrievalService) SearchLimits(ctx context.Context, query string, region models.Region, category models.Category) ([]models.PolicyChunk, error) {
	augmented := fmt.Sprintf("coverage limit amount: %s maximum limit sum insured", query)
	return s.search(ctx, augmented, region, category, s.exclusionMinScore)
}

func (s *RetrievalService) search(ctx context.Context, query string, region models.Region, category models.Category, minScore float64) ([]models.PolicyChunk, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("invalid region %q", region)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("invalid category %q", category)
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	chunks, err := s.chunks.Search(ctx, embedding, region, category, s.topK, minScore)
	if err != nil {
		return nil, fmt.Errorf("searching policy chunks: %w", err)
	}

	s.logger.Debug("retrieval query",
		zap.String("region", string(region)),
		zap.String("category", string(category)),
		zap.Int("results", len(chunks)))
	return chunks, nil
}

// Stats exposes corpus composition for the stats endpoint.
func (s *RetrievalService) Stats(ctx context.Context) (*repository.CorpusStats, error) {
	return s.chunks.Stats(ctx)
}
