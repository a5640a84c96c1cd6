package repository

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The claim lookup query is assembled from the shared column list; a missing
// separator between the columns and the FROM clause glues the last column to
// the keyword and Postgres rejects the statement at runtime.
func TestSelectClaimByIDIsWellFormed(t *testing.T) {
	assert.NotContains(t, selectClaimByID, "updated_atFROM")
	assert.Regexp(t, regexp.MustCompile(`updated_at\s+FROM claims`), selectClaimByID)
	assert.Regexp(t, regexp.MustCompile(`(?i)^SELECT\s`), selectClaimByID)
	assert.Contains(t, selectClaimByID, "WHERE claim_id = $1")
}

func TestClaimColumnsMatchScanOrder(t *testing.T) {
	// GetByClaimID scans fields positionally; the column list must keep this
	// exact order.
	expected := []string{
		"id", "claim_id", "claim_text", "region", "category",
		"router_confidence", "status", "reasoning_trace", "decision",
		"decision_summary", "report_path", "failure_reason",
		"created_at", "updated_at",
	}

	var columns []string
	for _, col := range strings.Split(claimColumns, ",") {
		columns = append(columns, strings.TrimSpace(col))
	}

	require.Equal(t, expected, columns)
}
