package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auditflow-backend/llm"
	"auditflow-backend/models"
)

// ClaimStore is the slice of the claim repository the pipeline mutates.
type ClaimStore interface {
	GetByClaimID(ctx context.Context, claimID uuid.UUID) (*models.Claim, error)
	SetClassification(ctx context.Context, claimID uuid.UUID, region models.Region, category models.Category, confidence float64) error
	SetStatus(ctx context.Context, claimID uuid.UUID, status models.ClaimStatus) (bool, error)
	SetDecision(ctx context.Context, claimID uuid.UUID, decision models.Decision, summary string) (bool, error)
	SetFailureReason(ctx context.Context, claimID uuid.UUID, reason string) error
	SetReportPath(ctx context.Context, claimID uuid.UUID, path string) (bool, error)
	UpdateTrace(ctx context.Context, claimID uuid.UUID, trace models.ReasoningTrace) error
}

// AuditStore records immutable processing facts. History is the append order;
// nothing is ever updated or deleted.
type AuditStore interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	History(ctx context.Context, claimID uuid.UUID) ([]models.AuditLogEntry, error)
}

// Retriever is the evidence interface the reasoning loop acts through.
type Retriever interface {
	Search(ctx context.Context, query string, region models.Region, category models.Category) ([]models.PolicyChunk, error)
	SearchExclusions(ctx context.Context, query string, region models.Region, category models.Category) ([]models.PolicyChunk, error)
	SearchLimits(ctx context.Context, query string, region models.Region, category models.Category) ([]models.PolicyChunk, error)
}

// AnalysisResult is the outcome of one pipeline run for a claim.
type AnalysisResult struct {
	ClaimID    uuid.UUID             `json:"claim_id"`
	Status     models.ClaimStatus    `json:"status"`
	Decision   models.Decision       `json:"decision,omitempty"`
	Confidence float64               `json:"confidence"`
	Summary    string                `json:"summary,omitempty"`
	Region     models.Region         `json:"region,omitempty"`
	Category   models.Category       `json:"category,omitempty"`
	Trace      models.ReasoningTrace `json:"trace"`
	Evidence   []models.PolicyChunk  `json:"evidence,omitempty"`
	Reason     string                `json:"reason,omitempty"`
}

// StepEvent is one streamed progress event during analysis.
type StepEvent struct {
	Type   string                `json:"type"` // start | step | complete | error
	Step   *models.ReasoningStep `json:"step,omitempty"`
	Result *AnalysisResult       `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// AnalysisService drives a claim from submission to a terminal state:
// classify, retrieve scoped evidence, reason in a bounded loop, decide. Every
// externally visible effect is mirrored into the audit trail.
type AnalysisService struct {
	claims     ClaimStore
	audit      AuditStore
	classifier Classifier
	retrieval  Retriever
	completer  llm.Completer
	threshold  float64
	maxSteps   int
	logger     *zap.Logger
}

type AnalysisOption func(*AnalysisService)

func AnalysisWithClaimStore(claims ClaimStore) AnalysisOption {
	return func(s *AnalysisService) { s.claims = claims }
}

func AnalysisWithAuditStore(audit AuditStore) AnalysisOption {
	return func(s *AnalysisService) { s.audit = audit }
}

func AnalysisWithClassifier(classifier Classifier) AnalysisOption {
	return func(s *AnalysisService) { s.classifier = classifier }
}

func AnalysisWithRetriever(retrieval Retriever) AnalysisOption {
	return func(s *AnalysisService) { s.retrieval = retrieval }
}

func AnalysisWithCompleter(completer llm.Completer) AnalysisOption {
	return func(s *AnalysisService) { s.completer = completer }
}

func AnalysisWithThreshold(threshold float64) AnalysisOption {
	return func(s *AnalysisService) { s.threshold = threshold }
}

func AnalysisWithMaxSteps(maxSteps int) AnalysisOption {
	return func(s *AnalysisService) { s.maxSteps = maxSteps }
}

func AnalysisWithLogger(logger *zap.Logger) AnalysisOption {
	return func(s *AnalysisService) { s.logger = logger }
}

func NewAnalysisService(opts ...AnalysisOption) *AnalysisService {
	s := &AnalysisService{
		threshold: 0.6,
		maxSteps:  8,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// runState is the loop's working memory for one claim.
type runState struct {
	claim     *models.Claim
	region    models.Region
	category  models.Category
	trace     models.ReasoningTrace
	evidence  []models.PolicyChunk
	seenIDs   map[int64]bool
	broadened bool
	truncated bool
}

// Analyze runs the full pipeline synchronously and returns the outcome.
func (s *AnalysisService) Analyze(ctx context.Context, claimID uuid.UUID) (*AnalysisResult, error) {
	return s.run(ctx, claimID, nil)
}

// AnalyzeStream runs the pipeline in a goroutine and emits a StepEvent per
// reasoning step, followed by a terminal complete or error event. The channel
// is closed when the run ends.
func (s *AnalysisService) AnalyzeStream(ctx context.Context, claimID uuid.UUID) <-chan StepEvent {
	events := make(chan StepEvent, 16)
	go func() {
		defer close(events)
		emit := func(ev StepEvent) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}
		emit(StepEvent{Type: "start"})
		result, err := s.run(ctx, claimID, emit)
		if err != nil {
			emit(StepEvent{Type: "error", Error: err.Error()})
			return
		}
		emit(StepEvent{Type: "complete", Result: result})
	}()
	return events
}

func (s *AnalysisService) run(ctx context.Context, claimID uuid.UUID, emit func(StepEvent)) (*AnalysisResult, error) {
	claim, err := s.claims.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, fmt.Errorf("loading claim: %w", err)
	}

	// Re-running a finished claim replays the stored outcome without new
	// audit entries.
	if claim.Status.Terminal() {
		return resultFromClaim(claim), nil
	}

	state := &runState{
		claim:   claim,
		trace:   make(models.ReasoningTrace, 0),
		seenIDs: make(map[int64]bool),
	}

	if err := s.classify(ctx, state); err != nil {
		return s.fail(ctx, state, "classification failed", err)
	}
	if state.region == models.RegionUnknown || state.category == models.CategoryUnknown {
		return s.routeToReview(ctx, state,
			fmt.Sprintf("classification confidence %.2f below threshold %.2f",
				claim.RouterConfidence, s.threshold))
	}

	if err := s.transition(ctx, state, models.StatusRetrieving); err != nil {
		return nil, err
	}
	if err := s.gatherEvidence(ctx, state, emit); err != nil {
		return s.fail(ctx, state, "evidence retrieval failed", err)
	}

	if err := s.transition(ctx, state, models.StatusDeciding); err != nil {
		return nil, err
	}
	return s.decide(ctx, state, emit)
}

func (s *AnalysisService) classify(ctx context.Context, state *runState) error {
	if err := s.transition(ctx, state, models.StatusClassifying); err != nil {
		return err
	}

	classification, err := s.classifier.Classify(ctx, state.claim.ClaimText)
	if err != nil {
		return err
	}

	state.region = classification.Region
	state.category = classification.Category
	state.claim.RouterConfidence = classification.Confidence

	if err := s.claims.SetClassification(ctx, state.claim.ClaimID,
		classification.Region, classification.Category, classification.Confidence); err != nil {
		return err
	}

	return s.audit.Append(ctx, &models.AuditLogEntry{
		ClaimID: state.claim.ClaimID,
		Action:  models.AuditClaimClassified,
		Service: models.ServiceRouter,
		Detail: models.AuditDetail{
			"region":     string(classification.Region),
			"category":   string(classification.Category),
			"confidence": classification.Confidence,
			"method":     classification.Method,
			"reasoning":  classification.Reasoning,
		},
	})
}

// gatherEvidence is the bounded reason-act-observe loop. The choreography is
// fixed: think about the claim, pull coverage clauses, check exclusions,
// check limits, broadening the query once if the first pass found nothing.
// Each cycle is one trace step; the final decision step is reserved out of
// the budget so the loop can never crowd it out.
func (s *AnalysisService) gatherEvidence(ctx context.Context, state *runState, emit func(StepEvent)) error {
	thought, err := s.completer.Complete(ctx, thinkPrompt(state.claim.ClaimText, state.region, state.category))
	if err != nil {
		return err
	}

	type searchStep struct {
		thought string
		action  string
		query   string
		run     func(context.Context, string, models.Region, models.Category) ([]models.PolicyChunk, error)
		label   string
	}
	steps := []searchStep{
		{
			thought: strings.TrimSpace(thought),
			action:  models.ActionSearchClauses,
			query:   state.claim.ClaimText,
			run:     s.retrieval.Search,
			label:   "coverage clauses",
		},
		{
			thought: "I should check for any exclusions that might apply to this claim.",
			action:  models.ActionSearchExclusions,
			query:   state.claim.ClaimText,
			run:     s.retrieval.SearchExclusions,
			label:   "exclusion clauses",
		},
		{
			thought: "I should verify the coverage limits and sum insured for this type of loss.",
			action:  models.ActionSearchLimits,
			query:   state.claim.ClaimText,
			run:     s.retrieval.SearchLimits,
			label:   "limit clauses",
		},
	}

	for i := 0; i < len(steps); i++ {
		if !s.canStep(state) {
			state.truncated = true
			return nil
		}
		step := steps[i]

		chunks, err := step.run(ctx, step.query, state.region, state.category)
		if err != nil {
			return err
		}
		if err := s.auditRetrieval(ctx, state, step.action, step.query, chunks); err != nil {
			return err
		}
		// the claim stays in retrieving until the first query has returned
		if state.claim.Status == models.StatusRetrieving {
			if err := s.transition(ctx, state, models.StatusReasoning); err != nil {
				return err
			}
		}
		s.absorb(state, chunks)

		observation := fmt.Sprintf("found %d %s", len(chunks), step.label)
		if len(chunks) == 0 {
			observation = fmt.Sprintf("no %s matched", step.label)
		}
		if err := s.addStep(ctx, state, emit, step.thought, step.action,
			map[string]interface{}{"query": step.query}, observation, chunkIDs(chunks)); err != nil {
			return err
		}

		// One broadened re-query when the coverage pass comes back empty.
		if step.action == models.ActionSearchClauses && len(chunks) == 0 && !state.broadened && s.canStep(state) {
			state.broadened = true
			broadQuery := broadenQuery(state.category)
			broad, err := s.retrieval.Search(ctx, broadQuery, state.region, state.category)
			if err != nil {
				return err
			}
			if err := s.auditRetrieval(ctx, state, models.ActionBroadenSearch, broadQuery, broad); err != nil {
				return err
			}
			s.absorb(state, broad)
			obs := fmt.Sprintf("broadened search found %d coverage clauses", len(broad))
			if err := s.addStep(ctx, state, emit,
				"No direct matches; I should broaden the query to general coverage terms.",
				models.ActionBroadenSearch,
				map[string]interface{}{"query": broadQuery}, obs, chunkIDs(broad)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *AnalysisService) decide(ctx context.Context, state *runState, emit func(StepEvent)) (*AnalysisResult, error) {
	decision := models.DecisionNeedsReview
	confidence := 0.5
	summary := ""
	note := ""

	switch {
	case state.truncated:
		// Loop exhausted its budget before reaching a verdict.
		summary = "step budget exhausted before a decision could be reached; routed for manual review"
		note = "step budget exhausted"
	case len(state.evidence) == 0:
		summary = "no matching policy text found for this claim; routed for manual review"
		note = "no evidence retrieved"
	default:
		content, err := s.completer.Complete(ctx, decidePrompt(state.claim.ClaimText, state.region, state.category, state.evidence))
		if err != nil {
			return s.fail(ctx, state, "decision generation failed", err)
		}
		decision, confidence, summary = parseDecision(content)
	}

	citations := state.trace.AllCitations()
	if decision.RequiresCitation() && len(citations) == 0 {
		note = fmt.Sprintf("decision %s demoted: no cited policy text", decision)
		decision = models.DecisionNeedsReview
		summary = summary + " (demoted to review: no cited policy text)"
	}

	finalThought := "I have enough evidence to reach a decision."
	if note != "" {
		finalThought = "Routing to manual review: " + note
	}
	if err := s.addStep(ctx, state, emit, finalThought, models.ActionEmitDecision,
		map[string]interface{}{"decision": string(decision), "confidence": confidence},
		summary, citations); err != nil {
		return nil, err
	}

	changed, err := s.claims.SetDecision(ctx, state.claim.ClaimID, decision, summary)
	if err != nil {
		return nil, fmt.Errorf("recording decision: %w", err)
	}
	if changed {
		if err := s.audit.Append(ctx, &models.AuditLogEntry{
			ClaimID: state.claim.ClaimID,
			Action:  models.AuditDecisionEmitted,
			Service: models.ServiceAgent,
			Detail: models.AuditDetail{
				"decision":   string(decision),
				"confidence": confidence,
				"summary":    summary,
				"citations":  citations,
			},
		}); err != nil {
			return nil, err
		}
	}

	terminal := models.StatusCompleted
	if decision == models.DecisionNeedsReview {
		terminal = models.StatusNeedsReview
		if note != "" {
			if err := s.claims.SetFailureReason(ctx, state.claim.ClaimID, note); err != nil {
				return nil, err
			}
		}
	}
	if err := s.transition(ctx, state, terminal); err != nil {
		return nil, err
	}

	return &AnalysisResult{
		ClaimID:    state.claim.ClaimID,
		Status:     terminal,
		Decision:   decision,
		Confidence: confidence,
		Summary:    summary,
		Region:     state.region,
		Category:   state.category,
		Trace:      state.trace,
		Evidence:   state.evidence,
		Reason:     note,
	}, nil
}

// routeToReview short-circuits a claim to needs_review before any reasoning
// happens. No decision is emitted.
func (s *AnalysisService) routeToReview(ctx context.Context, state *runState, reason string) (*AnalysisResult, error) {
	if err := s.claims.SetFailureReason(ctx, state.claim.ClaimID, reason); err != nil {
		return nil, err
	}
	if err := s.transition(ctx, state, models.StatusNeedsReview); err != nil {
		return nil, err
	}
	s.logger.Info("claim routed to review",
		zap.String("claim_id", state.claim.ClaimID.String()),
		zap.String("reason", reason))
	return &AnalysisResult{
		ClaimID:  state.claim.ClaimID,
		Status:   models.StatusNeedsReview,
		Region:   state.region,
		Category: state.category,
		Trace:    state.trace,
		Reason:   reason,
	}, nil
}

// fail marks the claim failed, keeping the partial trace for inspection.
func (s *AnalysisService) fail(ctx context.Context, state *runState, reason string, cause error) (*AnalysisResult, error) {
	full := fmt.Sprintf("%s: %v", reason, cause)
	s.logger.Error("claim processing failed",
		zap.String("claim_id", state.claim.ClaimID.String()),
		zap.Error(cause))

	if err := s.claims.SetFailureReason(ctx, state.claim.ClaimID, full); err != nil {
		s.logger.Error("recording failure reason", zap.Error(err))
	}
	if err := s.claims.UpdateTrace(ctx, state.claim.ClaimID, state.trace); err != nil {
		s.logger.Error("persisting partial trace", zap.Error(err))
	}
	if _, err := s.claims.SetStatus(ctx, state.claim.ClaimID, models.StatusFailed); err != nil {
		s.logger.Error("marking claim failed", zap.Error(err))
	}
	if err := s.audit.Append(ctx, &models.AuditLogEntry{
		ClaimID: state.claim.ClaimID,
		Action:  models.AuditProcessingFailed,
		Service: models.ServiceAgent,
		Detail:  models.AuditDetail{"error": full},
	}); err != nil {
		s.logger.Error("appending failure audit entry", zap.Error(err))
	}

	return &AnalysisResult{
		ClaimID:  state.claim.ClaimID,
		Status:   models.StatusFailed,
		Region:   state.region,
		Category: state.category,
		Trace:    state.trace,
		Reason:   full,
	}, nil
}

// canStep reports whether the loop may take another retrieval step. The last
// budget slot is reserved for the decision step.
func (s *AnalysisService) canStep(state *runState) bool {
	return len(state.trace) < s.maxSteps-1
}

// addStep appends one Think/Act/Observe cycle: to the in-memory trace, to
// the audit trail, and to the claim's trace cache, then emits it to any
// stream listener.
func (s *AnalysisService) addStep(
	ctx context.Context,
	state *runState,
	emit func(StepEvent),
	thought, action string,
	input map[string]interface{},
	observation string,
	citations []int64,
) error {
	step := models.ReasoningStep{
		StepIndex:   len(state.trace),
		Thought:     thought,
		Action:      action,
		ActionInput: input,
		Observation: observation,
		Citations:   citations,
		CreatedAt:   time.Now().UTC(),
	}
	state.trace = append(state.trace, step)

	if err := s.audit.Append(ctx, &models.AuditLogEntry{
		ClaimID: state.claim.ClaimID,
		Action:  models.AuditReasoningStep,
		Service: models.ServiceAgent,
		Detail: models.AuditDetail{
			"step_index":   step.StepIndex,
			"thought":      step.Thought,
			"action":       step.Action,
			"action_input": step.ActionInput,
			"observation":  step.Observation,
			"citations":    step.Citations,
		},
	}); err != nil {
		return fmt.Errorf("appending reasoning step: %w", err)
	}
	if err := s.claims.UpdateTrace(ctx, state.claim.ClaimID, state.trace); err != nil {
		return fmt.Errorf("caching trace: %w", err)
	}

	if emit != nil {
		emit(StepEvent{Type: "step", Step: &step})
	}
	return nil
}

// auditRetrieval records one vector search against the audit trail, attributed
// to the retrieval service rather than the agent driving the loop.
func (s *AnalysisService) auditRetrieval(ctx context.Context, state *runState, action, query string, chunks []models.PolicyChunk) error {
	if err := s.audit.Append(ctx, &models.AuditLogEntry{
		ClaimID: state.claim.ClaimID,
		Action:  models.AuditRetrievalQuery,
		Service: models.ServiceRAG,
		Detail: models.AuditDetail{
			"action":   action,
			"query":    query,
			"region":   string(state.region),
			"category": string(state.category),
			"results":  len(chunks),
		},
	}); err != nil {
		return fmt.Errorf("appending retrieval audit entry: %w", err)
	}
	return nil
}

// transition applies a status change and records it, skipping the audit
// entry when the status was already current.
func (s *AnalysisService) transition(ctx context.Context, state *runState, status models.ClaimStatus) error {
	changed, err := s.claims.SetStatus(ctx, state.claim.ClaimID, status)
	if err != nil {
		return fmt.Errorf("transitioning to %s: %w", status, err)
	}
	if !changed {
		return nil
	}
	state.claim.Status = status
	return s.audit.Append(ctx, &models.AuditLogEntry{
		ClaimID: state.claim.ClaimID,
		Action:  models.AuditStatusChanged,
		Service: models.ServiceAgent,
		Detail:  models.AuditDetail{"status": string(status)},
	})
}

func (s *AnalysisService) absorb(state *runState, chunks []models.PolicyChunk) {
	for _, chunk := range chunks {
		if state.seenIDs[chunk.ID] {
			continue
		}
		state.seenIDs[chunk.ID] = true
		state.evidence = append(state.evidence, chunk)
	}
}

func resultFromClaim(claim *models.Claim) *AnalysisResult {
	result := &AnalysisResult{
		ClaimID:  claim.ClaimID,
		Status:   claim.Status,
		Region:   claim.Region,
		Category: claim.Category,
		Trace:    claim.ReasoningTrace,
	}
	if claim.Decision != nil {
		result.Decision = *claim.Decision
	}
	if claim.DecisionSummary != nil {
		result.Summary = *claim.DecisionSummary
	}
	if claim.FailureReason != nil {
		result.Reason = *claim.FailureReason
	}
	return result
}

func chunkIDs(chunks []models.PolicyChunk) []int64 {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(chunks))
	for _, chunk := range chunks {
		ids = append(ids, chunk.ID)
	}
	return ids
}

func broadenQuery(category models.Category) string {
	switch category {
	case models.CategoryHome:
		return "home property damage loss coverage"
	case models.CategoryBusiness:
		return "business commercial loss liability coverage"
	case models.CategoryMotor:
		return "motor vehicle damage accident coverage"
	default:
		return "damage loss coverage"
	}
}

func thinkPrompt(claimText string, region models.Region, category models.Category) string {
	return fmt.Sprintf(`You are an insurance claims analyst. A %s claim was filed in region %s.

Claim: %s

In one or two sentences, state what policy provisions you need to look up to assess this claim. Respond with the reasoning only.`,
		category, region, claimText)
}

func decidePrompt(claimText string, region models.Region, category models.Category, evidence []models.PolicyChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an insurance claims analyst. Decide the following %s claim (region %s) strictly from the policy text provided.

Claim: %s

Policy text:
`, category, region, claimText)

	for _, chunk := range evidence {
		section := ""
		if chunk.Section != nil {
			section = *chunk.Section
		}
		fmt.Fprintf(&b, "\n[%s %s] %s\n", chunk.PolicyName, section, chunk.Content)
	}

	b.WriteString(`
Respond in exactly this format:
DECISION: one of COVERED, NOT_COVERED, PARTIAL, NEEDS_REVIEW
CONFIDENCE: a number between 0 and 1
SUMMARY: a short justification citing the policy text`)
	return b.String()
}

// parseDecision extracts the structured verdict from the model response.
// Anything malformed degrades to NEEDS_REVIEW rather than guessing.
func parseDecision(content string) (models.Decision, float64, string) {
	decision := models.DecisionNeedsReview
	confidence := 0.5
	summary := strings.TrimSpace(content)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "DECISION:"):
			candidate := models.Decision(strings.TrimSpace(strings.TrimPrefix(line, "DECISION:")))
			if candidate.Valid() {
				decision = candidate
			}
		case strings.HasPrefix(line, "CONFIDENCE:"):
			if v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "CONFIDENCE:")), 64); err == nil && v >= 0 && v <= 1 {
				confidence = v
			}
		case strings.HasPrefix(line, "SUMMARY:"):
			summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		}
	}
	return decision, confidence, summary
}
