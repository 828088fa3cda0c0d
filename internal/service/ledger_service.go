package service

import (
	"context"
	"fmt"

	"github.com/courtcase/financial-analysis/internal/crypto"
	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService fronts account/transaction CRUD: validation via the
// normalizer, referential checks against the case directory, persistence
// via the store, and an audit record per mutation.
type LedgerService struct {
	store  LedgerStore
	cases  CaseDirectory
	audit  AuditLogger
	logger *zap.Logger
}

func NewLedgerService(store LedgerStore, cases CaseDirectory, audit AuditLogger, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		cases:  cases,
		audit:  audit,
		logger: logger,
	}
}

// CreateAccount validates and persists a new financial account
func (s *LedgerService) CreateAccount(ctx context.Context, req domain.CreateAccountRequest, actorID uuid.UUID) (*domain.FinancialAccount, error) {
	account, err := NormalizeAccount(req, actorID)
	if err != nil {
		return nil, err
	}

	exists, err := s.cases.CaseExists(ctx, account.CaseID)
	if err != nil {
		return nil, fmt.Errorf("case lookup failed: %w", err)
	}
	if !exists {
		return nil, domain.NewNotFoundError("case", account.CaseID.String())
	}

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("financial account created",
		zap.String("account_id", account.AccountID.String()),
		zap.String("case_id", account.CaseID.String()),
		zap.String("owner", crypto.MaskOwnerName(account.OwnerName)),
	)
	s.recordAudit(ctx, account.CaseID, domain.AuditEntityAccount, account.AccountID.String(), domain.AuditActionCreate, actorID)
	return account, nil
}

// GetAccount fetches one account
func (s *LedgerService) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.FinancialAccount, error) {
	return s.store.GetAccount(ctx, accountID)
}

// ListAccounts returns a case's accounts
func (s *LedgerService) ListAccounts(ctx context.Context, caseID uuid.UUID) ([]*domain.FinancialAccount, error) {
	return s.store.ListAccounts(ctx, caseID)
}

// DeleteAccount removes an account and its transactions. The store rejects
// the delete while unacknowledged alerts still reference any transaction.
func (s *LedgerService) DeleteAccount(ctx context.Context, accountID, actorID uuid.UUID) error {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	s.recordAudit(ctx, account.CaseID, domain.AuditEntityAccount, accountID.String(), domain.AuditActionDelete, actorID)
	return nil
}

// CreateTransaction validates, defaults, and persists a transaction
func (s *LedgerService) CreateTransaction(ctx context.Context, req domain.CreateTransactionRequest, actorID uuid.UUID) (*domain.FinancialTransaction, error) {
	tx, err := NormalizeTransaction(req)
	if err != nil {
		return nil, err
	}

	account, err := s.store.GetAccount(ctx, tx.AccountID)
	if err != nil {
		return nil, err
	}
	if account.CaseID != tx.CaseID {
		return nil, domain.NewValidationError("case_id", "transaction case does not match the account's case")
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, tx.CaseID, domain.AuditEntityTransaction, tx.TransactionID.String(), domain.AuditActionCreate, actorID)
	return tx, nil
}

// GetTransaction fetches one transaction
func (s *LedgerService) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.FinancialTransaction, error) {
	return s.store.GetTransaction(ctx, transactionID)
}

// ListTransactions queries the ledger
func (s *LedgerService) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.FinancialTransaction, error) {
	return s.store.ListTransactions(ctx, filter)
}

// CorrectTransaction applies an explicit manual correction. Derived fields
// and the immutable amount/date are untouched so a concurrent analysis run
// and a correction can never clobber each other.
func (s *LedgerService) CorrectTransaction(ctx context.Context, transactionID uuid.UUID, corr domain.TransactionCorrection, actorID uuid.UUID) (*domain.FinancialTransaction, error) {
	updated, err := s.store.CorrectTransaction(ctx, transactionID, corr)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, updated.CaseID, domain.AuditEntityTransaction, transactionID.String(), domain.AuditActionUpdate, actorID)
	return updated, nil
}

func (s *LedgerService) recordAudit(ctx context.Context, caseID uuid.UUID, entity domain.AuditEntityType, entityID string, action domain.AuditAction, actorID uuid.UUID) {
	rec := domain.NewAuditRecord(caseID, entity, entityID, action, actorID)
	if err := s.audit.Record(ctx, rec); err != nil {
		// Attribution failures must not roll back the mutation itself
		s.logger.Warn("failed to write audit record",
			zap.String("entity_id", entityID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}
