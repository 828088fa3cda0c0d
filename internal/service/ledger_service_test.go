package service

import (
	"context"
	"testing"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLedgerHarness(caseID uuid.UUID) (*memStore, *LedgerService) {
	store := newMemStore(caseID)
	return store, NewLedgerService(store, store, store, zap.NewNop())
}

func TestCreateAccountUnknownCase(t *testing.T) {
	_, ledger := newLedgerHarness(uuid.New())

	_, err := ledger.CreateAccount(context.Background(), domain.CreateAccountRequest{
		CaseID:          uuid.New(),
		InstitutionName: "First National",
	}, uuid.New())
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateTransactionCaseMismatch(t *testing.T) {
	caseID := uuid.New()
	otherCase := uuid.New()
	store, ledger := newLedgerHarness(caseID)
	store.cases[otherCase] = true
	ctx := context.Background()

	account, err := ledger.CreateAccount(ctx, domain.CreateAccountRequest{
		CaseID:          caseID,
		InstitutionName: "First National",
	}, uuid.New())
	require.NoError(t, err)

	req := validTransactionRequest()
	req.AccountID = account.AccountID
	req.CaseID = otherCase

	_, err = ledger.CreateTransaction(ctx, req, uuid.New())
	assert.True(t, domain.IsValidation(err))
}

func TestCreateTransactionPersistsAndAudits(t *testing.T) {
	caseID := uuid.New()
	store, ledger := newLedgerHarness(caseID)
	ctx := context.Background()
	actorID := uuid.New()

	account, err := ledger.CreateAccount(ctx, domain.CreateAccountRequest{
		CaseID:          caseID,
		InstitutionName: "First National",
	}, actorID)
	require.NoError(t, err)

	req := validTransactionRequest()
	req.AccountID = account.AccountID
	req.CaseID = caseID
	req.Currency = "EUR"
	req.TransactionType = "WIRE_TRANSFER"
	req.CounterpartyName = "Vendor X"

	tx, err := ledger.CreateTransaction(ctx, req, actorID)
	require.NoError(t, err)

	// Reading back returns identical values for every recorded field
	stored, err := store.GetTransaction(ctx, tx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, *req.Amount, stored.Amount)
	assert.True(t, stored.TransactionDate.Equal(*req.TransactionDate))
	assert.Equal(t, domain.TransactionTypeWireTransfer, stored.TransactionType)
	assert.Equal(t, "EUR", stored.Currency)
	assert.Equal(t, "Vendor X", stored.CounterpartyName)
	assert.Equal(t, "wire to vendor", stored.Description)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.auditTrail, 2) // account create + transaction create
	assert.Equal(t, domain.AuditEntityTransaction, store.auditTrail[1].EntityType)
	assert.Equal(t, domain.AuditActionCreate, store.auditTrail[1].Action)
	assert.Equal(t, actorID, store.auditTrail[1].ActorID)
}

func TestDeleteAccountBlockedByUnacknowledgedAlert(t *testing.T) {
	caseID := uuid.New()
	store, ledger := newLedgerHarness(caseID)
	alerts := NewAlertService(store, store, nil, zap.NewNop())
	ctx := context.Background()

	account, err := ledger.CreateAccount(ctx, domain.CreateAccountRequest{
		CaseID:          caseID,
		InstitutionName: "First National",
	}, uuid.New())
	require.NoError(t, err)

	req := validTransactionRequest()
	req.AccountID = account.AccountID
	req.CaseID = caseID
	tx, err := ledger.CreateTransaction(ctx, req, uuid.New())
	require.NoError(t, err)

	raised, _, err := alerts.RaiseAlert(ctx, domain.AlertCandidate{
		CaseID:        caseID,
		TransactionID: &tx.TransactionID,
		AlertType:     domain.AlertTypeStructuring,
		Severity:      domain.SeverityHigh,
		Title:         "Possible structuring pattern detected",
	})
	require.NoError(t, err)

	// Blocked while the alert is open
	err = ledger.DeleteAccount(ctx, account.AccountID, uuid.New())
	assert.True(t, domain.IsValidation(err))

	_, err = alerts.Acknowledge(ctx, raised.AlertID, uuid.New())
	require.NoError(t, err)

	// After acknowledgement the delete succeeds and the alert survives
	// with its transaction reference cleared
	require.NoError(t, ledger.DeleteAccount(ctx, account.AccountID, uuid.New()))

	_, err = store.GetTransaction(ctx, tx.TransactionID)
	assert.True(t, domain.IsNotFound(err))

	kept, err := alerts.GetAlert(ctx, raised.AlertID)
	require.NoError(t, err)
	assert.Nil(t, kept.TransactionID)
}

func TestCorrectTransactionKeepsDerivedFields(t *testing.T) {
	caseID := uuid.New()
	store, ledger := newLedgerHarness(caseID)
	ctx := context.Background()

	account, err := ledger.CreateAccount(ctx, domain.CreateAccountRequest{
		CaseID:          caseID,
		InstitutionName: "First National",
	}, uuid.New())
	require.NoError(t, err)

	req := validTransactionRequest()
	req.AccountID = account.AccountID
	req.CaseID = caseID
	tx, err := ledger.CreateTransaction(ctx, req, uuid.New())
	require.NoError(t, err)

	require.NoError(t, store.ApplyAssessment(ctx, domain.RiskAssessment{
		TransactionID: tx.TransactionID,
		RiskScore:     0.8,
		IsSuspicious:  true,
		Tags:          []string{"structuring"},
	}))

	desc := "corrected memo"
	counterparty := "Vendor X"
	updated, err := ledger.CorrectTransaction(ctx, tx.TransactionID, domain.TransactionCorrection{
		Description:      &desc,
		CounterpartyName: &counterparty,
	}, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, "corrected memo", updated.Description)
	assert.Equal(t, "Vendor X", updated.CounterpartyName)
	// Immutable and derived fields are untouched
	assert.Equal(t, tx.Amount, updated.Amount)
	assert.True(t, updated.TransactionDate.Equal(tx.TransactionDate))
	assert.Equal(t, 0.8, updated.RiskScore)
	assert.True(t, updated.IsSuspicious)
	assert.Contains(t, updated.Tags, "structuring")
}

func TestCorrectTransactionUnknown(t *testing.T) {
	_, ledger := newLedgerHarness(uuid.New())

	desc := "memo"
	_, err := ledger.CorrectTransaction(context.Background(), uuid.New(),
		domain.TransactionCorrection{Description: &desc}, uuid.New())
	assert.True(t, domain.IsNotFound(err))
}
