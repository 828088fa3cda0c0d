package service

import (
	"context"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
)

// AccountStore persists financial accounts
type AccountStore interface {
	CreateAccount(ctx context.Context, account *domain.FinancialAccount) error
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.FinancialAccount, error)
	ListAccounts(ctx context.Context, caseID uuid.UUID) ([]*domain.FinancialAccount, error)
	// DeleteAccount removes the account and cascades to its transactions.
	// Deletion is rejected while an unacknowledged alert references any of
	// the account's transactions.
	DeleteAccount(ctx context.Context, accountID uuid.UUID) error
}

// TransactionStore persists financial transactions
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx *domain.FinancialTransaction) error
	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.FinancialTransaction, error)
	// ListTransactions reads matching transactions as a single consistent
	// snapshot so window rules never evaluate a partially-ingested window.
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.FinancialTransaction, error)
	CountTransactions(ctx context.Context, caseID uuid.UUID) (int64, error)
	// CorrectTransaction applies an authorized manual update to the
	// non-derived fields only. Amount and date stay immutable.
	CorrectTransaction(ctx context.Context, transactionID uuid.UUID, corr domain.TransactionCorrection) (*domain.FinancialTransaction, error)
	// ApplyAssessment writes derived fields. The stored risk score only
	// ever increases (GREATEST semantics) so concurrent re-runs cannot
	// lower a previously elevated score; tags are unioned.
	ApplyAssessment(ctx context.Context, assessment domain.RiskAssessment) error
}

// AlertStore persists financial alerts
type AlertStore interface {
	// UpsertAlert atomically finds-or-creates on the dedupe key
	// (case_id, alert_type, transaction_id) over unacknowledged alerts.
	// On a match it merges trigger criteria instead of duplicating.
	// The boolean reports whether a new alert was created.
	UpsertAlert(ctx context.Context, candidate domain.AlertCandidate) (*domain.FinancialAlert, bool, error)
	GetAlert(ctx context.Context, alertID uuid.UUID) (*domain.FinancialAlert, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.FinancialAlert, error)
	CountAlerts(ctx context.Context, caseID uuid.UUID) (int64, error)
	// AcknowledgeAlert sets the acknowledgement fields once. Acknowledging
	// an already-acknowledged alert is a no-op returning the stored state.
	AcknowledgeAlert(ctx context.Context, alertID, userID uuid.UUID) (*domain.FinancialAlert, error)
}

// LedgerStore is the full persistence surface consumed by the services
type LedgerStore interface {
	AccountStore
	TransactionStore
	AlertStore
}

// CaseDirectory resolves case existence against the case-management tables
type CaseDirectory interface {
	CaseExists(ctx context.Context, caseID uuid.UUID) (bool, error)
}

// AuditLogger receives one record per create/update/acknowledge action
type AuditLogger interface {
	Record(ctx context.Context, record *domain.AuditRecord) error
}

// AlertIndexer pushes alerts into the search index (best effort)
type AlertIndexer interface {
	IndexAlert(ctx context.Context, alert *domain.FinancialAlert) error
}

// ReportArchiver stores analysis run artifacts in object storage (best effort)
type ReportArchiver interface {
	ArchiveAnalysis(ctx context.Context, result *domain.AnalysisResult, summary *domain.FinancialSummary) error
}
