package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountType represents the kind of financial account tied to a case
type AccountType string

const (
	AccountTypeBank         AccountType = "BANK"
	AccountTypeCreditCard   AccountType = "CREDIT_CARD"
	AccountTypeInvestment   AccountType = "INVESTMENT"
	AccountTypeCryptoWallet AccountType = "CRYPTO_WALLET"
	AccountTypeCash         AccountType = "CASH"
	AccountTypeOther        AccountType = "OTHER"
)

// ParseAccountType maps a stored string to an AccountType, rejecting unknown values
func ParseAccountType(s string) (AccountType, bool) {
	switch AccountType(s) {
	case AccountTypeBank, AccountTypeCreditCard, AccountTypeInvestment,
		AccountTypeCryptoWallet, AccountTypeCash, AccountTypeOther:
		return AccountType(s), true
	}
	return "", false
}

// FinancialAccount identifies a bank/wallet/crypto account attached to a case.
// An account belongs to exactly one case; deleting it cascades to its transactions.
type FinancialAccount struct {
	AccountID       uuid.UUID   `json:"account_id" db:"account_id"`
	CaseID          uuid.UUID   `json:"case_id" db:"case_id"`
	AccountNumber   *string     `json:"account_number,omitempty" db:"account_number"` // May be masked
	InstitutionName string      `json:"institution_name" db:"institution_name"`
	AccountType     AccountType `json:"account_type" db:"account_type"`
	Currency        string      `json:"currency" db:"currency"`
	OwnerName       string      `json:"owner_name" db:"owner_name"`
	OwnerDetails    []byte      `json:"owner_details,omitempty" db:"owner_details"` // JSON blob
	CreatedBy       uuid.UUID   `json:"created_by" db:"created_by"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// NewFinancialAccount creates an account with generated ID and UTC timestamps
func NewFinancialAccount(caseID uuid.UUID, institution string, accountType AccountType, createdBy uuid.UUID) *FinancialAccount {
	now := time.Now().UTC()
	return &FinancialAccount{
		AccountID:       uuid.New(),
		CaseID:          caseID,
		InstitutionName: institution,
		AccountType:     accountType,
		Currency:        "USD",
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CreateAccountRequest is the API payload for creating an account
type CreateAccountRequest struct {
	CaseID          uuid.UUID `json:"case_id"`
	AccountNumber   *string   `json:"account_number,omitempty"`
	InstitutionName string    `json:"institution_name"`
	AccountType     string    `json:"account_type"`
	Currency        string    `json:"currency"`
	OwnerName       string    `json:"owner_name"`
	OwnerDetails    []byte    `json:"owner_details,omitempty"`
}
