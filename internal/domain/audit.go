package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the mutation being attributed
type AuditAction string

const (
	AuditActionCreate      AuditAction = "CREATE"
	AuditActionUpdate      AuditAction = "UPDATE"
	AuditActionDelete      AuditAction = "DELETE"
	AuditActionAnalyze     AuditAction = "ANALYZE"
	AuditActionAcknowledge AuditAction = "ACKNOWLEDGE"
)

// AuditEntityType identifies what kind of record was touched
type AuditEntityType string

const (
	AuditEntityAccount     AuditEntityType = "FINANCIAL_ACCOUNT"
	AuditEntityTransaction AuditEntityType = "FINANCIAL_TRANSACTION"
	AuditEntityAlert       AuditEntityType = "FINANCIAL_ALERT"
	AuditEntityCase        AuditEntityType = "CASE"
)

// AuditRecord is one immutable attribution entry. Records are append-only;
// the signature covers the identifying fields for tamper evidence.
type AuditRecord struct {
	RecordID   uuid.UUID       `json:"record_id" db:"record_id"`
	CaseID     uuid.UUID       `json:"case_id" db:"case_id"`
	EntityType AuditEntityType `json:"entity_type" db:"entity_type"`
	EntityID   string          `json:"entity_id" db:"entity_id"`
	Action     AuditAction     `json:"action" db:"action"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	Detail     []byte          `json:"detail,omitempty" db:"detail"` // JSON blob for additional context
	Signature  string          `json:"signature" db:"signature"`     // HMAC over identifying fields
	Timestamp  time.Time       `json:"timestamp" db:"timestamp"`
}

// NewAuditRecord creates an audit record with generated ID and UTC timestamp
func NewAuditRecord(caseID uuid.UUID, entityType AuditEntityType, entityID string, action AuditAction, actorID uuid.UUID) *AuditRecord {
	return &AuditRecord{
		RecordID:   uuid.New(),
		CaseID:     caseID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorID:    actorID,
		Timestamp:  time.Now().UTC(),
	}
}
