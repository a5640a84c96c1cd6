package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Region is the jurisdiction a claim is processed under
type Region string

const (
	RegionSG      Region = "SG"
	RegionAU      Region = "AU"
	RegionUnknown Region = ""
)

// Valid reports whether the region is one of the supported jurisdictions
func (r Region) Valid() bool {
	return r == RegionSG || r == RegionAU
}

// Category is the claim line-of-business classification
type Category string

const (
	CategoryHome     Category = "Home"
	CategoryBusiness Category = "Business"
	CategoryMotor    Category = "Motor"
	CategoryUnknown  Category = ""
)

// Valid reports whether the category is one of the supported lines of business
func (c Category) Valid() bool {
	return c == CategoryHome || c == CategoryBusiness || c == CategoryMotor
}

// Decision is the terminal coverage classification of a claim
type Decision string

const (
	DecisionCovered     Decision = "COVERED"
	DecisionNotCovered  Decision = "NOT_COVERED"
	DecisionPartial     Decision = "PARTIAL"
	DecisionNeedsReview Decision = "NEEDS_REVIEW"
)

// Valid reports whether the decision is one of the four terminal labels
func (d Decision) Valid() bool {
	switch d {
	case DecisionCovered, DecisionNotCovered, DecisionPartial, DecisionNeedsReview:
		return true
	}
	return false
}

// RequiresCitation reports whether this decision is invalid without at least
// one cited policy chunk
func (d Decision) RequiresCitation() bool {
	return d == DecisionCovered || d == DecisionNotCovered || d == DecisionPartial
}

// ClaimStatus represents the processing state of a claim
type ClaimStatus string

const (
	StatusPending     ClaimStatus = "pending"
	StatusClassifying ClaimStatus = "classifying"
	StatusRetrieving  ClaimStatus = "retrieving"
	StatusReasoning   ClaimStatus = "reasoning"
	StatusDeciding    ClaimStatus = "deciding"
	StatusCompleted   ClaimStatus = "completed"
	StatusNeedsReview ClaimStatus = "needs_review"
	StatusFailed      ClaimStatus = "failed"
)

// statusRank orders statuses so transitions can never regress. The three
// terminal states share the highest rank; a claim reaches exactly one of them.
var statusRank = map[ClaimStatus]int{
	StatusPending:     0,
	StatusClassifying: 1,
	StatusRetrieving:  2,
	StatusReasoning:   3,
	StatusDeciding:    4,
	StatusCompleted:   5,
	StatusNeedsReview: 5,
	StatusFailed:      5,
}

// Terminal reports whether the status is one of the three end states
func (s ClaimStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusNeedsReview || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next preserves the
// monotonic status invariant. A status may always "transition" to itself;
// callers treat that as an idempotent no-op.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	return to > from
}

// Reasoning step action names. The final step of every completed run is
// ActionEmitDecision.
const (
	ActionSearchClauses    = "search_policy_clauses"
	ActionSearchExclusions = "check_exclusions"
	ActionSearchLimits     = "check_limits"
	ActionBroadenSearch    = "broaden_search"
	ActionEmitDecision     = "emit_decision"
)

// ReasoningStep is one Think/Act/Observe cycle in a claim's trace
type ReasoningStep struct {
	StepIndex   int                    `json:"step_index"`
	Thought     string                 `json:"thought"`
	Action      string                 `json:"action"`
	ActionInput map[string]interface{} `json:"action_input,omitempty"`
	Observation string                 `json:"observation"`
	Citations   []int64                `json:"citations,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ReasoningTrace is the ordered list of steps taken for one claim
type ReasoningTrace []ReasoningStep

// Value implements driver.Valuer for JSONB
func (t ReasoningTrace) Value() (driver.Value, error) {
	return json.Marshal(t)
}

// Scan implements sql.Scanner for JSONB
func (t *ReasoningTrace) Scan(value interface{}) error {
	if value == nil {
		*t = make(ReasoningTrace, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*t = make(ReasoningTrace, 0)
		return nil
	}

	if len(bytes) == 0 {
		*t = make(ReasoningTrace, 0)
		return nil
	}

	return json.Unmarshal(bytes, t)
}

// Contiguous reports whether step indices run 0..n-1 with no gaps
func (t ReasoningTrace) Contiguous() bool {
	for i, step := range t {
		if step.StepIndex != i {
			return false
		}
	}
	return true
}

// AllCitations collects every chunk id cited anywhere in the trace
func (t ReasoningTrace) AllCitations() []int64 {
	var ids []int64
	for _, step := range t {
		ids = append(ids, step.Citations...)
	}
	return ids
}

// Claim is the durable record of one claim's lifecycle. ClaimID is the
// externally stable identifier; ID is the internal row id.
type Claim struct {
	ID               int64          `json:"-"`
	ClaimID          uuid.UUID      `json:"claim_id"`
	ClaimText        string         `json:"claim_text"`
	Region           Region         `json:"region,omitempty"`
	Category         Category       `json:"category,omitempty"`
	RouterConfidence float64        `json:"router_confidence"`
	Status           ClaimStatus    `json:"status"`
	ReasoningTrace   ReasoningTrace `json:"reasoning_trace"`
	Decision         *Decision      `json:"decision,omitempty"`
	DecisionSummary  *string        `json:"decision_summary,omitempty"`
	ReportPath       *string        `json:"report_path,omitempty"`
	FailureReason    *string        `json:"failure_reason,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
