package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertSeverity represents how urgent a financial alert is
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "LOW"
	SeverityMedium   AlertSeverity = "MEDIUM"
	SeverityHigh     AlertSeverity = "HIGH"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// severityRanks orders severities for sorting (CRITICAL > HIGH > MEDIUM > LOW)
var severityRanks = map[AlertSeverity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the sort weight of a severity; unknown severities rank lowest
func (s AlertSeverity) Rank() int {
	return severityRanks[s]
}

// ParseAlertSeverity maps a stored string to an AlertSeverity, rejecting unknown values
func ParseAlertSeverity(s string) (AlertSeverity, bool) {
	switch AlertSeverity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return AlertSeverity(s), true
	}
	return "", false
}

// Well-known alert type keys produced by the risk rule evaluator
const (
	AlertTypeStructuring     = "structuring"
	AlertTypeRapidSuccession = "rapid_succession"
	AlertTypeUnusualVolume   = "unusual_volume"
	AlertTypeRoundTrip       = "round_trip"
)

// FinancialAlert is a flagged finding on a case.
// Alerts are never auto-deleted; acknowledgement fields are write-once.
type FinancialAlert struct {
	AlertID          uuid.UUID     `json:"alert_id" db:"alert_id"`
	CaseID           uuid.UUID     `json:"case_id" db:"case_id"`
	TransactionID    *uuid.UUID    `json:"transaction_id,omitempty" db:"transaction_id"`
	AlertType        string        `json:"alert_type" db:"alert_type"`
	Severity         AlertSeverity `json:"severity" db:"severity"`
	Title            string        `json:"title" db:"title"`
	Description      string        `json:"description" db:"description"`
	TriggerCriteria  []byte        `json:"trigger_criteria,omitempty" db:"trigger_criteria"`   // JSON: rule parameters that fired
	DetectedPatterns []byte        `json:"detected_patterns,omitempty" db:"detected_patterns"` // JSON: structured evidence
	Acknowledged     bool          `json:"acknowledged" db:"acknowledged"`
	AcknowledgedBy   *uuid.UUID    `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt   *time.Time    `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// DedupeKey identifies whether a newly detected condition matches an
// existing unacknowledged alert: (case_id, alert_type, transaction_id).
type DedupeKey struct {
	CaseID        uuid.UUID
	AlertType     string
	TransactionID uuid.UUID // uuid.Nil when the alert has no triggering transaction
}

// Key returns the alert's dedupe key
func (a *FinancialAlert) Key() DedupeKey {
	k := DedupeKey{CaseID: a.CaseID, AlertType: a.AlertType}
	if a.TransactionID != nil {
		k.TransactionID = *a.TransactionID
	}
	return k
}

// AlertCandidate is the evaluator's proposal before dedup/persistence
type AlertCandidate struct {
	CaseID           uuid.UUID
	TransactionID    *uuid.UUID
	AlertType        string
	Severity         AlertSeverity
	Title            string
	Description      string
	TriggerCriteria  []byte
	DetectedPatterns []byte
}

// AlertFilter for querying alerts
type AlertFilter struct {
	CaseID       *uuid.UUID
	AlertType    *string
	Severity     *AlertSeverity
	Acknowledged *bool
	Limit        int
	Offset       int
}
