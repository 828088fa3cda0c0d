package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the direction/channel of a monetary movement
type TransactionType string

const (
	TransactionTypeCredit         TransactionType = "CREDIT"
	TransactionTypeDebit          TransactionType = "DEBIT"
	TransactionTypeTransfer       TransactionType = "TRANSFER"
	TransactionTypeCashDeposit    TransactionType = "CASH_DEPOSIT"
	TransactionTypeCashWithdrawal TransactionType = "CASH_WITHDRAWAL"
	TransactionTypeWireTransfer   TransactionType = "WIRE_TRANSFER"
	TransactionTypeCryptoTransfer TransactionType = "CRYPTO_TRANSFER"
	TransactionTypeOther          TransactionType = "OTHER"
)

// ParseTransactionType maps a stored string to a TransactionType, rejecting unknown values
func ParseTransactionType(s string) (TransactionType, bool) {
	switch TransactionType(s) {
	case TransactionTypeCredit, TransactionTypeDebit, TransactionTypeTransfer,
		TransactionTypeCashDeposit, TransactionTypeCashWithdrawal,
		TransactionTypeWireTransfer, TransactionTypeCryptoTransfer, TransactionTypeOther:
		return TransactionType(s), true
	}
	return "", false
}

// IsInflow reports whether the type represents money entering the account
func (t TransactionType) IsInflow() bool {
	return t == TransactionTypeCredit || t == TransactionTypeCashDeposit
}

// IsOutflow reports whether the type represents money leaving the account
func (t TransactionType) IsOutflow() bool {
	return t == TransactionTypeDebit || t == TransactionTypeCashWithdrawal
}

// FinancialTransaction is a single monetary movement on a case account.
// Amount and TransactionDate are immutable once recorded; analysis only
// augments the derived fields (IsSuspicious, RiskScore, Tags).
type FinancialTransaction struct {
	TransactionID       uuid.UUID       `json:"transaction_id" db:"transaction_id"`
	AccountID           uuid.UUID       `json:"account_id" db:"account_id"`
	CaseID              uuid.UUID       `json:"case_id" db:"case_id"`
	DocumentID          *uuid.UUID      `json:"document_id,omitempty" db:"document_id"` // Source document / forensic item
	TransactionDate     time.Time       `json:"transaction_date" db:"transaction_date"`
	Amount              float64         `json:"amount" db:"amount"` // Signed, currency-tagged
	Currency            string          `json:"currency" db:"currency"`
	TransactionType     TransactionType `json:"transaction_type" db:"transaction_type"`
	Description         string          `json:"description" db:"description"`
	CounterpartyName    string          `json:"counterparty_name" db:"counterparty_name"`
	CounterpartyAccount *string         `json:"counterparty_account,omitempty" db:"counterparty_account"`
	IsSuspicious        bool            `json:"is_suspicious" db:"is_suspicious"`
	RiskScore           float64         `json:"risk_score" db:"risk_score"` // Always in [0,1], monotonic across runs
	Tags                []string        `json:"tags,omitempty" db:"tags"`
	Metadata            []byte          `json:"metadata,omitempty" db:"metadata"` // JSON blob
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at" db:"updated_at"`
}

// HasTag reports whether the transaction already carries the given tag
func (t *FinancialTransaction) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// CreateTransactionRequest is the raw input handed to the normalizer.
// Pointer fields distinguish "absent" from zero values at the boundary.
type CreateTransactionRequest struct {
	AccountID           uuid.UUID  `json:"account_id"`
	CaseID              uuid.UUID  `json:"case_id"`
	DocumentID          *uuid.UUID `json:"document_id,omitempty"`
	TransactionDate     *time.Time `json:"transaction_date"`
	Amount              *float64   `json:"amount"`
	Currency            string     `json:"currency"`
	TransactionType     string     `json:"transaction_type"`
	Description         string     `json:"description"`
	CounterpartyName    string     `json:"counterparty_name"`
	CounterpartyAccount *string    `json:"counterparty_account,omitempty"`
	Metadata            []byte     `json:"metadata,omitempty"`
}

// TransactionCorrection carries an authorized manual update. Only the
// non-derived, non-immutable fields can be corrected; derived fields are
// owned by the risk evaluator so concurrent analysis never gets clobbered.
type TransactionCorrection struct {
	Description         *string `json:"description,omitempty"`
	CounterpartyName    *string `json:"counterparty_name,omitempty"`
	CounterpartyAccount *string `json:"counterparty_account,omitempty"`
	Metadata            []byte  `json:"metadata,omitempty"`
}

// RiskAssessment is the evaluator's derived output for one transaction
type RiskAssessment struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	RiskScore     float64   `json:"risk_score"`
	IsSuspicious  bool      `json:"is_suspicious"`
	Tags          []string  `json:"tags,omitempty"`
}

// TransactionFilter for querying the ledger
type TransactionFilter struct {
	CaseID         *uuid.UUID
	AccountID      *uuid.UUID
	StartDate      *time.Time
	EndDate        *time.Time
	SuspiciousOnly bool
	Limit          int
	Offset         int
}

// TransactionPage represents paginated transactions
type TransactionPage struct {
	Transactions []*FinancialTransaction `json:"transactions"`
	TotalCount   int64                   `json:"total_count"`
	PageSize     int                     `json:"page_size"`
	HasMore      bool                    `json:"has_more"`
}
