package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
)

const embeddingAPIBase = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiConfig holds the parameters for the Gemini-backed collaborators
type GeminiConfig struct {
	APIKey          string
	CompletionModel string
	EmbeddingModel  string
	EmbeddingDim    int
	MaxRetries      int
	InitialBackoff  time.Duration
	RequestTimeout  time.Duration
}

// Gemini implements Embedder, Completer and Scorer against the Gemini API.
// Completions go through the genai client; embeddings use the embedContent
// HTTP endpoint directly because the output dimensionality must be pinned to
// the index dimension.
type Gemini struct {
	client     *genai.Client
	cfg        GeminiConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGemini creates the Gemini collaborator set
func NewGemini(client *genai.Client, cfg GeminiConfig, logger *zap.Logger) *Gemini {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Gemini{
		client:     client,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		logger:     logger,
	}
}

type embeddingRequest struct {
	Model                string       `json:"model"`
	Content              contentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

type contentInput struct {
	Parts []partInput `json:"parts"`
}

type partInput struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed generates a normalized query embedding for the given text
func (g *Gemini) Embed(ctx context.Context, text string) ([]float64, error) {
	if g.cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set")
	}

	reqBody := embeddingRequest{
		Model: "models/" + g.cfg.EmbeddingModel,
		Content: contentInput{
			Parts: []partInput{{Text: text}},
		},
		TaskType:             "RETRIEVAL_QUERY",
		OutputDimensionality: g.cfg.EmbeddingDim,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:embedContent", embeddingAPIBase, g.cfg.EmbeddingModel)

	backoff := g.cfg.InitialBackoff
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", g.cfg.APIKey)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			if attempt == g.cfg.MaxRetries-1 {
				return nil, fmt.Errorf("failed to send request after %d attempts: %w", g.cfg.MaxRetries, err)
			}
			continue
		}

		if resp.StatusCode == http.StatusOK {
			var apiResp embeddingResponse
			decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp)
			resp.Body.Close()
			if decodeErr != nil {
				if attempt == g.cfg.MaxRetries-1 {
					return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
				}
				continue
			}
			return normalize(apiResp.Embedding.Values), nil
		}

		resp.Body.Close()

		// Client errors won't improve on retry
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("embedding API error: %d", resp.StatusCode)
		}

		if attempt == g.cfg.MaxRetries-1 {
			return nil, fmt.Errorf("embedding API error after %d attempts: %d", g.cfg.MaxRetries, resp.StatusCode)
		}
	}

	return nil, ErrEmbeddingFailed
}

// sleepBackoff waits for the backoff interval, returning early if the
// context is cancelled.
func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func normalize(embedding []float64) []float64 {
	norm := 0.0
	for _, v := range embedding {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}
	return embedding
}

// Complete generates a completion for the reasoning loop
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.cfg.CompletionModel)
	model.SetTemperature(0.1)

	backoff := g.cfg.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, backoff); err != nil {
				return "", err
			}
			backoff *= 2
		}

		callCtx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
		resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
		cancel()
		if err != nil {
			lastErr = err
			g.logger.Warn("completion attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}

		text := collectText(resp)
		if text != "" {
			return text, nil
		}
		lastErr = fmt.Errorf("completion returned no text")
	}

	return "", fmt.Errorf("%w: %v", ErrCompletionFailed, lastErr)
}

func collectText(resp *genai.GenerateContentResponse) string {
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
	}
	return builder.String()
}

const scoringPrompt = `Classify the following insurance claim.

Regions: SG (Singapore), AU (Australia)
Categories: Home, Business, Motor

Respond with ONLY a JSON object mapping each "REGION/Category" pair to a
probability between 0 and 1, for example:
{"SG/Home": 0.7, "SG/Business": 0.05, "SG/Motor": 0.02, "AU/Home": 0.1, "AU/Business": 0.08, "AU/Motor": 0.05}

Claim: %s`

// Score asks the completion model for per-pair probabilities
func (g *Gemini) Score(ctx context.Context, text string) (map[string]float64, error) {
	raw, err := g.Complete(ctx, fmt.Sprintf(scoringPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScoringFailed, err)
	}

	// The model may wrap the JSON in a code fence
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	scores := make(map[string]float64)
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &scores); err != nil {
		return nil, fmt.Errorf("%w: malformed scores: %v", ErrScoringFailed, err)
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: empty scores", ErrScoringFailed)
	}
	return scores, nil
}
