package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"auditflow-backend/llm"
	"auditflow-backend/models"
)

const (
	MethodKeyword = "keyword"
	MethodModel   = "model"
)

// Classification is the routing verdict for a single claim text.
type Classification struct {
	Region     models.Region   `json:"region"`
	Category   models.Category `json:"category"`
	Confidence float64         `json:"confidence"`
	Method     string          `json:"method"`
	Reasoning  string          `json:"reasoning"`
}

// Resolved reports whether both routing dimensions are known.
func (c Classification) Resolved() bool {
	return c.Region != models.RegionUnknown && c.Category != models.CategoryUnknown
}

// Classifier routes a raw claim text to a (region, category) pair.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// KeywordClassifier resolves region and category purely from the keyword
// tables. It never calls out, so it is the deterministic fallback when no
// model is configured.
type KeywordClassifier struct {
	logger *zap.Logger
}

func NewKeywordClassifier(logger *zap.Logger) *KeywordClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordClassifier{logger: logger}
}

func (c *KeywordClassifier) Classify(_ context.Context, text string) (Classification, error) {
	region, regionMatches := matchRegion(text)
	category, categoryMatches := matchCategory(text)

	result := Classification{
		Region:   region,
		Category: category,
		Method:   MethodKeyword,
	}

	if result.Resolved() {
		result.Confidence = 1.0
		result.Reasoning = fmt.Sprintf("matched region terms %v and category terms %v",
			regionMatches, categoryMatches)
		return result, nil
	}

	result.Confidence = 0
	result.Reasoning = "no decisive keyword match"
	c.logger.Debug("keyword classification unresolved",
		zap.String("region", string(region)),
		zap.String("category", string(category)))
	return result, nil
}

// HybridClassifier runs the keyword pass first and falls back to a model
// scorer for whichever dimensions the keywords left unresolved. A keyword hit
// is authoritative: the scorer can fill gaps but never override it.
type HybridClassifier struct {
	scorer    llm.Scorer
	threshold float64
	logger    *zap.Logger
}

func NewHybridClassifier(scorer llm.Scorer, threshold float64, logger *zap.Logger) *HybridClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridClassifier{scorer: scorer, threshold: threshold, logger: logger}
}

func (c *HybridClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	region, regionMatches := matchRegion(text)
	category, categoryMatches := matchCategory(text)

	if region != models.RegionUnknown && category != models.CategoryUnknown {
		return Classification{
			Region:     region,
			Category:   category,
			Confidence: 1.0,
			Method:     MethodKeyword,
			Reasoning: fmt.Sprintf("matched region terms %v and category terms %v",
				regionMatches, categoryMatches),
		}, nil
	}

	scores, err := c.scorer.Score(ctx, text)
	if err != nil {
		return Classification{}, fmt.Errorf("scoring claim text: %w", err)
	}

	bestRegion, bestCategory, bestScore := argmaxPair(scores, region, category)
	if bestScore < c.threshold {
		c.logger.Info("classification below threshold",
			zap.Float64("score", bestScore),
			zap.Float64("threshold", c.threshold))
		return Classification{
			Region:     models.RegionUnknown,
			Category:   models.CategoryUnknown,
			Confidence: bestScore,
			Method:     MethodModel,
			Reasoning:  fmt.Sprintf("best model score %.2f below threshold %.2f", bestScore, c.threshold),
		}, nil
	}

	result := Classification{
		Region:     bestRegion,
		Category:   bestCategory,
		Confidence: bestScore,
		Method:     MethodModel,
		Reasoning:  fmt.Sprintf("model scored %s/%s at %.2f", bestRegion, bestCategory, bestScore),
	}
	return result, nil
}

// argmaxPair picks the highest-scoring (region, category) pair from the
// scorer output, restricted to any dimension the keyword pass already pinned.
// Keys are formatted "REGION/Category", e.g. "SG/Home".
func argmaxPair(scores map[string]float64, pinnedRegion models.Region, pinnedCategory models.Category) (models.Region, models.Category, float64) {
	bestRegion := models.RegionUnknown
	bestCategory := models.CategoryUnknown
	bestScore := 0.0

	for key, score := range scores {
		parts := strings.SplitN(key, "/", 2)
		if len(parts) != 2 {
			continue
		}
		region := models.Region(parts[0])
		category := models.Category(parts[1])
		if !region.Valid() || !category.Valid() {
			continue
		}
		if pinnedRegion != models.RegionUnknown && region != pinnedRegion {
			continue
		}
		if pinnedCategory != models.CategoryUnknown && category != pinnedCategory {
			continue
		}
		if score > bestScore {
			bestRegion, bestCategory, bestScore = region, category, score
		}
	}

	if pinnedRegion != models.RegionUnknown {
		bestRegion = pinnedRegion
	}
	if pinnedCategory != models.CategoryUnknown {
		bestCategory = pinnedCategory
	}
	return bestRegion, bestCategory, bestScore
}

// ClassifyBatch classifies each text independently. One failing item does not
// abort the batch; it comes back unresolved with the error in its reasoning.
func ClassifyBatch(ctx context.Context, classifier Classifier, texts []string) []Classification {
	results := make([]Classification, len(texts))
	for i, text := range texts {
		classification, err := classifier.Classify(ctx, text)
		if err != nil {
			results[i] = Classification{
				Region:    models.RegionUnknown,
				Category:  models.CategoryUnknown,
				Method:    MethodModel,
				Reasoning: fmt.Sprintf("classification failed: %v", err),
			}
			continue
		}
		results[i] = classification
	}
	return results
}
