package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditflow-backend/models"
	"auditflow-backend/repository"
)

type fakeEmbedder struct {
	texts []string
	err   error
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.texts = append(e.texts, text)
	return []float64{0.1, 0.2, 0.3}, e.err
}

type fakeChunkSearcher struct {
	chunks    []models.PolicyChunk
	region    models.Region
	category  models.Category
	topK      int
	minScore  float64
	err       error
	statsResp *repository.CorpusStats
}

func (s *fakeChunkSearcher) Search(_ context.Context, _ []float64, region models.Region, category models.Category, topK int, minScore float64) ([]models.PolicyChunk, error) {
	s.region = region
	s.category = category
	s.topK = topK
	s.minScore = minScore
	return s.chunks, s.err
}

func (s *fakeChunkSearcher) Stats(_ context.Context) (*repository.CorpusStats, error) {
	return s.statsResp, nil
}

func TestRetrievalSearchScopesAndRanks(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeChunkSearcher{chunks: []models.PolicyChunk{
		{ID: 1, SimilarityScore: 0.9},
	}}
	svc := NewRetrievalService(embedder, searcher,
		RetrievalWithTopK(7),
		RetrievalWithMinScore(0.45),
	)

	chunks, err := svc.Search(context.Background(), "water leak", models.RegionSG, models.CategoryHome)
	require.NoError(t, err)

	assert.Len(t, chunks, 1)
	assert.Equal(t, []string{"water leak"}, embedder.texts, "query is embedded as-is")
	assert.Equal(t, models.RegionSG, searcher.region)
	assert.Equal(t, models.CategoryHome, searcher.category)
	assert.Equal(t, 7, searcher.topK)
	assert.InDelta(t, 0.45, searcher.minScore, 0.001)
}

func TestRetrievalSearchRejectsUnknownScope(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{}, &fakeChunkSearcher{})

	_, err := svc.Search(context.Background(), "water leak", models.Region("EU"), models.CategoryHome)
	assert.Error(t, err)

	_, err = svc.Search(context.Background(), "water leak", models.RegionSG, models.Category("Pet"))
	assert.Error(t, err)
}

func TestRetrievalEmptyResultIsNotAnError(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{}, &fakeChunkSearcher{})

	chunks, err := svc.Search(context.Background(), "water leak", models.RegionSG, models.CategoryHome)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestRetrievalExclusionsAugmentQuery(t *testing.T) {
	embedder := &fakeEmbedder{}
	searcher := &fakeChunkSearcher{}
	svc := NewRetrievalService(embedder, searcher,
		RetrievalWithMinScore(0.4),
		RetrievalWithExclusionMinScore(0.3),
	)

	_, err := svc.SearchExclusions(context.Background(), "water leak", models.RegionSG, models.CategoryHome)
	require.NoError(t, err)

	require.Len(t, embedder.texts, 1)
	assert.Equal(t, "exclusion clause: water leak NOT covered excluded from coverage", embedder.texts[0])
	assert.InDelta(t, 0.3, searcher.minScore, 0.001, "exclusions use the lower score floor")
}

func TestRetrievalLimitsAugmentQuery(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := NewRetrievalService(embedder, &fakeChunkSearcher{})

	_, err := svc.SearchLimits(context.Background(), "water leak", models.RegionSG, models.CategoryHome)
	require.NoError(t, err)

	require.Len(t, embedder.texts, 1)
	assert.Equal(t, "coverage limit amount: water leak maximum limit sum insured", embedder.texts[0])
}

func TestRetrievalStats(t *testing.T) {
	searcher := &fakeChunkSearcher{statsResp: &repository.CorpusStats{TotalChunks: 11}}
	svc := NewRetrievalService(&fakeEmbedder{}, searcher)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(11), stats.TotalChunks)
}
