package domain

import (
	"time"

	"github.com/google/uuid"
)

// CounterpartyVolume aggregates transaction volume against one counterparty
type CounterpartyVolume struct {
	Counterparty     string  `json:"counterparty"`
	TransactionCount int     `json:"transaction_count"`
	TotalVolume      float64 `json:"total_volume"` // Sum of absolute amounts
}

// TimelineBucket is one per-day slice of a case's money flow, for chart rendering
type TimelineBucket struct {
	Date         time.Time `json:"date"` // Bucket start, UTC midnight
	TotalCredits float64   `json:"total_credits"`
	TotalDebits  float64   `json:"total_debits"`
	NetFlow      float64   `json:"net_flow"`
}

// FinancialSummary is the case-level aggregate computed on demand.
// NetFlow == TotalCredits - TotalDebits always holds.
type FinancialSummary struct {
	CaseID               uuid.UUID            `json:"case_id"`
	TotalAccounts        int                  `json:"total_accounts"`
	TotalTransactions    int                  `json:"total_transactions"`
	TotalAlerts          int                  `json:"total_alerts"`
	TotalCredits         float64              `json:"total_credits"`
	TotalDebits          float64              `json:"total_debits"`
	NetFlow              float64              `json:"net_flow"`
	HighRiskTransactions int                  `json:"high_risk_transactions"`
	TopCounterparties    []CounterpartyVolume `json:"top_counterparties"`
	Timeline             []TimelineBucket     `json:"timeline"`
	GeneratedAt          time.Time            `json:"generated_at"`
}

// ProcessingIssue records a per-item failure during batch analysis
type ProcessingIssue struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Rule          string    `json:"rule"`
	Reason        string    `json:"reason"`
}

// AnalysisResult reports the outcome of one analyze run.
// Per-item failures are accumulated here instead of aborting the run.
type AnalysisResult struct {
	RunID                 uuid.UUID         `json:"run_id"`
	CaseID                uuid.UUID         `json:"case_id"`
	TransactionsEvaluated int               `json:"transactions_evaluated"`
	TransactionsFlagged   int               `json:"transactions_flagged"`
	AlertsCreated         int               `json:"alerts_created"`
	AlertsMerged          int               `json:"alerts_merged"`
	Issues                []ProcessingIssue `json:"issues,omitempty"`
	StartedAt             time.Time         `json:"started_at"`
	CompletedAt           time.Time         `json:"completed_at"`
}
