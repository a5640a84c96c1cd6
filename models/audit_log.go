package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit trail action names
const (
	AuditClaimSubmitted   = "claim_submitted"
	AuditClaimClassified  = "claim_classified"
	AuditStatusChanged    = "status_changed"
	AuditRetrievalQuery   = "retrieval_query"
	AuditReasoningStep    = "reasoning_step"
	AuditDecisionEmitted  = "decision_emitted"
	AuditReportGenerated  = "report_generated"
	AuditProcessingFailed = "processing_failed"
)

// Component names recorded in the service column
const (
	ServiceRouter   = "router"
	ServiceRAG      = "rag"
	ServiceAgent    = "agent"
	ServiceReporter = "reporter"
)

// AuditDetail is the structured payload of an audit entry
type AuditDetail map[string]interface{}

// Value implements driver.Valuer for JSONB
func (d AuditDetail) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for JSONB
func (d *AuditDetail) Scan(value interface{}) error {
	if value == nil {
		*d = make(AuditDetail)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*d = make(AuditDetail)
		return nil
	}

	if len(bytes) == 0 {
		*d = make(AuditDetail)
		return nil
	}

	return json.Unmarshal(bytes, d)
}

// AuditLogEntry is one immutable fact about what happened to a claim.
// Entries are only ever appended; claim history is the entries in id order.
type AuditLogEntry struct {
	ID        int64       `json:"id"`
	ClaimID   uuid.UUID   `json:"claim_id"`
	Action    string      `json:"action"`
	Service   string      `json:"service"`
	Detail    AuditDetail `json:"detail"`
	CreatedAt time.Time   `json:"created_at"`
}
