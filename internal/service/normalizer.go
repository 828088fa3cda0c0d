package service

import (
	"math"
	"time"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
)

// NormalizeTransaction validates raw transaction input and applies defaults:
// currency USD, transaction type OTHER, is_suspicious false, risk_score 0.
// Pure validation; referential checks and persistence belong to the caller.
func NormalizeTransaction(req domain.CreateTransactionRequest) (*domain.FinancialTransaction, error) {
	if req.AccountID == uuid.Nil {
		return nil, domain.NewValidationError("account_id", "account reference is required")
	}
	if req.CaseID == uuid.Nil {
		return nil, domain.NewValidationError("case_id", "case reference is required")
	}
	if req.Amount == nil {
		return nil, domain.NewValidationError("amount", "amount is required")
	}
	if math.IsNaN(*req.Amount) || math.IsInf(*req.Amount, 0) {
		return nil, domain.NewValidationError("amount", "amount must be a finite number")
	}
	if req.TransactionDate == nil || req.TransactionDate.IsZero() {
		return nil, domain.NewValidationError("transaction_date", "transaction date is required")
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	txType := domain.TransactionTypeOther
	if req.TransactionType != "" {
		parsed, ok := domain.ParseTransactionType(req.TransactionType)
		if !ok {
			return nil, domain.NewValidationError("transaction_type", "unknown transaction type "+req.TransactionType)
		}
		txType = parsed
	}

	now := time.Now().UTC()
	return &domain.FinancialTransaction{
		TransactionID:       uuid.New(),
		AccountID:           req.AccountID,
		CaseID:              req.CaseID,
		DocumentID:          req.DocumentID,
		TransactionDate:     req.TransactionDate.UTC(),
		Amount:              *req.Amount,
		Currency:            currency,
		TransactionType:     txType,
		Description:         req.Description,
		CounterpartyName:    req.CounterpartyName,
		CounterpartyAccount: req.CounterpartyAccount,
		IsSuspicious:        false,
		RiskScore:           0.0,
		Metadata:            req.Metadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// NormalizeAccount validates raw account input with defaults applied
func NormalizeAccount(req domain.CreateAccountRequest, createdBy uuid.UUID) (*domain.FinancialAccount, error) {
	if req.CaseID == uuid.Nil {
		return nil, domain.NewValidationError("case_id", "case reference is required")
	}
	if req.InstitutionName == "" {
		return nil, domain.NewValidationError("institution_name", "institution name is required")
	}

	accountType := domain.AccountTypeOther
	if req.AccountType != "" {
		parsed, ok := domain.ParseAccountType(req.AccountType)
		if !ok {
			return nil, domain.NewValidationError("account_type", "unknown account type "+req.AccountType)
		}
		accountType = parsed
	}

	account := domain.NewFinancialAccount(req.CaseID, req.InstitutionName, accountType, createdBy)
	account.AccountNumber = req.AccountNumber
	account.OwnerName = req.OwnerName
	account.OwnerDetails = req.OwnerDetails
	if req.Currency != "" {
		account.Currency = req.Currency
	}
	return account, nil
}
