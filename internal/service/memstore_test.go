package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
)

// memStore is an in-memory LedgerStore + CaseDirectory + AuditLogger used
// by the service tests. Mutations hold the mutex so the concurrency tests
// exercise the same atomic find-or-create contract as the SQL store.
type memStore struct {
	mu           sync.Mutex
	cases        map[uuid.UUID]bool
	accounts     map[uuid.UUID]*domain.FinancialAccount
	transactions map[uuid.UUID]*domain.FinancialTransaction
	alerts       map[uuid.UUID]*domain.FinancialAlert
	auditTrail   []*domain.AuditRecord
}

func newMemStore(caseIDs ...uuid.UUID) *memStore {
	s := &memStore{
		cases:        make(map[uuid.UUID]bool),
		accounts:     make(map[uuid.UUID]*domain.FinancialAccount),
		transactions: make(map[uuid.UUID]*domain.FinancialTransaction),
		alerts:       make(map[uuid.UUID]*domain.FinancialAlert),
	}
	for _, id := range caseIDs {
		s.cases[id] = true
	}
	return s
}

func (s *memStore) CaseExists(_ context.Context, caseID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases[caseID], nil
}

func (s *memStore) Record(_ context.Context, rec *domain.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditTrail = append(s.auditTrail, rec)
	return nil
}

func (s *memStore) CreateAccount(_ context.Context, account *domain.FinancialAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *account
	s.accounts[account.AccountID] = &cp
	return nil
}

func (s *memStore) GetAccount(_ context.Context, accountID uuid.UUID) (*domain.FinancialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, domain.NewNotFoundError("account", accountID.String())
	}
	cp := *account
	return &cp, nil
}

func (s *memStore) ListAccounts(_ context.Context, caseID uuid.UUID) ([]*domain.FinancialAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var accounts []*domain.FinancialAccount
	for _, account := range s.accounts {
		if account.CaseID == caseID {
			cp := *account
			accounts = append(accounts, &cp)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountID.String() < accounts[j].AccountID.String()
	})
	return accounts, nil
}

func (s *memStore) DeleteAccount(_ context.Context, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[accountID]; !ok {
		return domain.NewNotFoundError("account", accountID.String())
	}
	for _, alert := range s.alerts {
		if alert.TransactionID == nil {
			continue
		}
		tx, ok := s.transactions[*alert.TransactionID]
		if !ok || tx.AccountID != accountID {
			continue
		}
		if !alert.Acknowledged {
			return domain.NewValidationError("account_id", "account has transactions referenced by unacknowledged alerts")
		}
	}
	for _, alert := range s.alerts {
		if alert.TransactionID == nil {
			continue
		}
		if tx, ok := s.transactions[*alert.TransactionID]; ok && tx.AccountID == accountID {
			alert.TransactionID = nil
		}
	}
	for id, tx := range s.transactions {
		if tx.AccountID == accountID {
			delete(s.transactions, id)
		}
	}
	delete(s.accounts, accountID)
	return nil
}

func (s *memStore) CreateTransaction(_ context.Context, tx *domain.FinancialTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.transactions[tx.TransactionID] = &cp
	return nil
}

func (s *memStore) GetTransaction(_ context.Context, transactionID uuid.UUID) (*domain.FinancialTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, domain.NewNotFoundError("transaction", transactionID.String())
	}
	cp := *tx
	return &cp, nil
}

func (s *memStore) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]*domain.FinancialTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var txs []*domain.FinancialTransaction
	for _, tx := range s.transactions {
		if filter.CaseID != nil && tx.CaseID != *filter.CaseID {
			continue
		}
		if filter.AccountID != nil && tx.AccountID != *filter.AccountID {
			continue
		}
		if filter.StartDate != nil && tx.TransactionDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && tx.TransactionDate.After(*filter.EndDate) {
			continue
		}
		if filter.SuspiciousOnly && !tx.IsSuspicious {
			continue
		}
		cp := *tx
		txs = append(txs, &cp)
	}
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].TransactionDate.Equal(txs[j].TransactionDate) {
			return txs[i].TransactionDate.Before(txs[j].TransactionDate)
		}
		return txs[i].TransactionID.String() < txs[j].TransactionID.String()
	})
	return txs, nil
}

func (s *memStore) CountTransactions(_ context.Context, caseID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, tx := range s.transactions {
		if tx.CaseID == caseID {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CorrectTransaction(_ context.Context, transactionID uuid.UUID, corr domain.TransactionCorrection) (*domain.FinancialTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[transactionID]
	if !ok {
		return nil, domain.NewNotFoundError("transaction", transactionID.String())
	}
	if corr.Description != nil {
		tx.Description = *corr.Description
	}
	if corr.CounterpartyName != nil {
		tx.CounterpartyName = *corr.CounterpartyName
	}
	if corr.CounterpartyAccount != nil {
		tx.CounterpartyAccount = corr.CounterpartyAccount
	}
	if corr.Metadata != nil {
		tx.Metadata = corr.Metadata
	}
	tx.UpdatedAt = time.Now().UTC()
	cp := *tx
	return &cp, nil
}

func (s *memStore) ApplyAssessment(_ context.Context, a domain.RiskAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[a.TransactionID]
	if !ok {
		return domain.NewNotFoundError("transaction", a.TransactionID.String())
	}
	if a.RiskScore > tx.RiskScore {
		tx.RiskScore = a.RiskScore
	}
	tx.IsSuspicious = tx.IsSuspicious || a.IsSuspicious
	for _, tag := range a.Tags {
		if !tx.HasTag(tag) {
			tx.Tags = append(tx.Tags, tag)
		}
	}
	sort.Strings(tx.Tags)
	tx.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) UpsertAlert(_ context.Context, c domain.AlertCandidate) (*domain.FinancialAlert, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.DedupeKey{CaseID: c.CaseID, AlertType: c.AlertType}
	if c.TransactionID != nil {
		key.TransactionID = *c.TransactionID
	}
	for _, alert := range s.alerts {
		if alert.Acknowledged || alert.Key() != key {
			continue
		}
		alert.TriggerCriteria = c.TriggerCriteria
		alert.DetectedPatterns = c.DetectedPatterns
		alert.UpdatedAt = time.Now().UTC()
		cp := *alert
		return &cp, false, nil
	}

	now := time.Now().UTC()
	alert := &domain.FinancialAlert{
		AlertID:          uuid.New(),
		CaseID:           c.CaseID,
		TransactionID:    c.TransactionID,
		AlertType:        c.AlertType,
		Severity:         c.Severity,
		Title:            c.Title,
		Description:      c.Description,
		TriggerCriteria:  c.TriggerCriteria,
		DetectedPatterns: c.DetectedPatterns,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	s.alerts[alert.AlertID] = alert
	cp := *alert
	return &cp, true, nil
}

func (s *memStore) GetAlert(_ context.Context, alertID uuid.UUID) (*domain.FinancialAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, domain.NewNotFoundError("alert", alertID.String())
	}
	cp := *alert
	return &cp, nil
}

func (s *memStore) ListAlerts(_ context.Context, filter domain.AlertFilter) ([]*domain.FinancialAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var alerts []*domain.FinancialAlert
	for _, alert := range s.alerts {
		if filter.CaseID != nil && alert.CaseID != *filter.CaseID {
			continue
		}
		if filter.AlertType != nil && alert.AlertType != *filter.AlertType {
			continue
		}
		if filter.Severity != nil && alert.Severity != *filter.Severity {
			continue
		}
		if filter.Acknowledged != nil && alert.Acknowledged != *filter.Acknowledged {
			continue
		}
		cp := *alert
		alerts = append(alerts, &cp)
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(alerts) {
			return nil, nil
		}
		alerts = alerts[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(alerts) {
		alerts = alerts[:filter.Limit]
	}
	return alerts, nil
}

func (s *memStore) CountAlerts(_ context.Context, caseID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, alert := range s.alerts {
		if alert.CaseID == caseID {
			count++
		}
	}
	return count, nil
}

func (s *memStore) AcknowledgeAlert(_ context.Context, alertID, userID uuid.UUID) (*domain.FinancialAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[alertID]
	if !ok {
		return nil, domain.NewNotFoundError("alert", alertID.String())
	}
	if !alert.Acknowledged {
		now := time.Now().UTC()
		alert.Acknowledged = true
		alert.AcknowledgedBy = &userID
		alert.AcknowledgedAt = &now
		alert.UpdatedAt = now
	}
	cp := *alert
	return &cp, nil
}
