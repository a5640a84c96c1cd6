package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	t.Run("forward transitions allowed", func(t *testing.T) {
		order := []ClaimStatus{
			StatusPending, StatusClassifying, StatusRetrieving,
			StatusReasoning, StatusDeciding, StatusCompleted,
		}
		for i := 0; i < len(order)-1; i++ {
			assert.True(t, order[i].CanTransitionTo(order[i+1]),
				"%s -> %s should be allowed", order[i], order[i+1])
		}
	})

	t.Run("regressions rejected", func(t *testing.T) {
		assert.False(t, StatusReasoning.CanTransitionTo(StatusClassifying))
		assert.False(t, StatusDeciding.CanTransitionTo(StatusPending))
	})

	t.Run("terminal states are final", func(t *testing.T) {
		for _, terminal := range []ClaimStatus{StatusCompleted, StatusNeedsReview, StatusFailed} {
			assert.True(t, terminal.Terminal())
			assert.False(t, terminal.CanTransitionTo(StatusCompleted),
				"%s must not transition anywhere", terminal)
			assert.False(t, terminal.CanTransitionTo(StatusPending))
		}
	})

	t.Run("skipping intermediate states allowed", func(t *testing.T) {
		// a pipeline failure can jump straight to a terminal state
		assert.True(t, StatusClassifying.CanTransitionTo(StatusNeedsReview))
		assert.True(t, StatusReasoning.CanTransitionTo(StatusFailed))
	})
}

func TestDecisionValidity(t *testing.T) {
	for _, d := range []Decision{DecisionCovered, DecisionNotCovered, DecisionPartial, DecisionNeedsReview} {
		assert.True(t, d.Valid())
	}
	assert.False(t, Decision("MAYBE").Valid())
	assert.False(t, Decision("").Valid())
}

func TestDecisionRequiresCitation(t *testing.T) {
	assert.True(t, DecisionCovered.RequiresCitation())
	assert.True(t, DecisionNotCovered.RequiresCitation())
	assert.True(t, DecisionPartial.RequiresCitation())
	assert.False(t, DecisionNeedsReview.RequiresCitation())
}

func TestReasoningTraceContiguous(t *testing.T) {
	trace := ReasoningTrace{
		{StepIndex: 0, Action: ActionSearchClauses},
		{StepIndex: 1, Action: ActionEmitDecision},
	}
	assert.True(t, trace.Contiguous())

	gapped := ReasoningTrace{
		{StepIndex: 0, Action: ActionSearchClauses},
		{StepIndex: 2, Action: ActionEmitDecision},
	}
	assert.False(t, gapped.Contiguous())
}

func TestReasoningTraceJSONRoundTrip(t *testing.T) {
	trace := ReasoningTrace{
		{StepIndex: 0, Thought: "check coverage", Action: ActionSearchClauses, Citations: []int64{42, 43}},
	}

	value, err := trace.Value()
	require.NoError(t, err)

	var decoded ReasoningTrace
	require.NoError(t, decoded.Scan(value))

	require.Len(t, decoded, 1)
	assert.Equal(t, trace[0].Citations, decoded[0].Citations)
	assert.Equal(t, []int64{42, 43}, decoded.AllCitations())
}

func TestReasoningTraceScanNil(t *testing.T) {
	var trace ReasoningTrace
	require.NoError(t, trace.Scan(nil))
	assert.NotNil(t, trace)
	assert.Empty(t, trace)
}

func TestClaimJSONHidesInternalID(t *testing.T) {
	claim := Claim{ID: 7, ClaimText: "water leak"}
	raw, err := json.Marshal(claim)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"id":7`)
}
