package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAnalysisHarness(caseID uuid.UUID) (*memStore, *AnalysisService) {
	store := newMemStore(caseID)
	logger := zap.NewNop()
	cfg := config.DefaultAnalysis()

	alerts := NewAlertService(store, store, nil, logger)
	summaries := NewSummaryService(store, store, cfg, logger)
	analysis := NewAnalysisService(store, store, alerts, summaries, nil, store, cfg, logger)
	return store, analysis
}

func seedStructuringCase(t *testing.T, store *memStore, caseID uuid.UUID) []*domain.FinancialTransaction {
	t.Helper()
	ctx := context.Background()

	account := testAccount(caseID, "Alice Ward")
	require.NoError(t, store.CreateAccount(ctx, account))

	// Four deposits of $2,600 inside two hours: sum $10,400 over the
	// $10,000 threshold, each individually below it.
	txs := make([]*domain.FinancialTransaction, 0, 4)
	for i := 0; i < 4; i++ {
		tx := testTx(caseID, account.AccountID, 2600,
			testBase.Add(time.Duration(i)*40*time.Minute), domain.TransactionTypeCashDeposit, "")
		require.NoError(t, store.CreateTransaction(ctx, tx))
		txs = append(txs, tx)
	}
	return txs
}

func TestAnalyzeCaseStructuringScenario(t *testing.T) {
	caseID := uuid.New()
	store, analysis := newAnalysisHarness(caseID)
	txs := seedStructuringCase(t, store, caseID)
	ctx := context.Background()

	result, err := analysis.AnalyzeCase(ctx, caseID, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 4, result.TransactionsEvaluated)
	assert.Equal(t, 4, result.TransactionsFlagged)
	assert.Equal(t, 1, result.AlertsCreated)
	assert.Equal(t, 0, result.AlertsMerged)
	assert.Empty(t, result.Issues)

	alerts, err := store.ListAlerts(ctx, domain.AlertFilter{CaseID: &caseID})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertTypeStructuring, alerts[0].AlertType)
	assert.Equal(t, domain.SeverityHigh, alerts[0].Severity)
	require.NotNil(t, alerts[0].TransactionID)
	assert.Equal(t, txs[0].TransactionID, *alerts[0].TransactionID)

	for _, seeded := range txs {
		tx, err := store.GetTransaction(ctx, seeded.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, 0.8, tx.RiskScore)
		assert.True(t, tx.IsSuspicious)
		assert.Contains(t, tx.Tags, "structuring")
	}
}

func TestAnalyzeCaseIdempotent(t *testing.T) {
	caseID := uuid.New()
	store, analysis := newAnalysisHarness(caseID)
	txs := seedStructuringCase(t, store, caseID)
	ctx := context.Background()

	first, err := analysis.AnalyzeCase(ctx, caseID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, 1, first.AlertsCreated)

	second, err := analysis.AnalyzeCase(ctx, caseID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, second.AlertsCreated)
	assert.Equal(t, 1, second.AlertsMerged)

	alerts, err := store.ListAlerts(ctx, domain.AlertFilter{CaseID: &caseID})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)

	for _, seeded := range txs {
		tx, err := store.GetTransaction(ctx, seeded.TransactionID)
		require.NoError(t, err)
		assert.Equal(t, 0.8, tx.RiskScore)
	}
}

func TestAnalyzeCaseMonotonicRiskScore(t *testing.T) {
	caseID := uuid.New()
	store, analysis := newAnalysisHarness(caseID)
	txs := seedStructuringCase(t, store, caseID)
	ctx := context.Background()

	_, err := analysis.AnalyzeCase(ctx, caseID, uuid.New())
	require.NoError(t, err)

	// A higher score written out of band must survive a re-run
	require.NoError(t, store.ApplyAssessment(ctx, domain.RiskAssessment{
		TransactionID: txs[0].TransactionID,
		RiskScore:     0.95,
		IsSuspicious:  true,
	}))

	_, err = analysis.AnalyzeCase(ctx, caseID, uuid.New())
	require.NoError(t, err)

	tx, err := store.GetTransaction(ctx, txs[0].TransactionID)
	require.NoError(t, err)
	assert.Equal(t, 0.95, tx.RiskScore)
	assert.True(t, tx.IsSuspicious)
}

func TestAnalyzeCaseUnknownCase(t *testing.T) {
	_, analysis := newAnalysisHarness(uuid.New())

	_, err := analysis.AnalyzeCase(context.Background(), uuid.New(), uuid.New())
	assert.True(t, domain.IsNotFound(err))
}

func TestAnalyzeCaseAccumulatesIssues(t *testing.T) {
	caseID := uuid.New()
	store, analysis := newAnalysisHarness(caseID)
	ctx := context.Background()

	account := testAccount(caseID, "Alice Ward")
	require.NoError(t, store.CreateAccount(ctx, account))

	good := testTx(caseID, account.AccountID, 500, testBase, domain.TransactionTypeCredit, "")
	broken := testTx(caseID, account.AccountID, 500, time.Time{}, domain.TransactionTypeCredit, "")
	require.NoError(t, store.CreateTransaction(ctx, good))
	require.NoError(t, store.CreateTransaction(ctx, broken))

	result, err := analysis.AnalyzeCase(ctx, caseID, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, 1, result.TransactionsEvaluated)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, broken.TransactionID, result.Issues[0].TransactionID)
}

func TestAnalyzeCaseConcurrentRunsDedupe(t *testing.T) {
	caseID := uuid.New()
	store, analysis := newAnalysisHarness(caseID)
	seedStructuringCase(t, store, caseID)
	ctx := context.Background()

	const runs = 4
	results := make([]*domain.AnalysisResult, runs)
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = analysis.AnalyzeCase(ctx, caseID, uuid.New())
		}(i)
	}
	wg.Wait()

	created := 0
	for i, result := range results {
		require.NoError(t, errs[i])
		created += result.AlertsCreated
	}
	assert.Equal(t, 1, created, "exactly one run should create the alert")

	alerts, err := store.ListAlerts(ctx, domain.AlertFilter{CaseID: &caseID})
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestAnalyzeCaseWritesAuditRecord(t *testing.T) {
	caseID := uuid.New()
	store, analysis := newAnalysisHarness(caseID)
	seedStructuringCase(t, store, caseID)
	actorID := uuid.New()

	_, err := analysis.AnalyzeCase(context.Background(), caseID, actorID)
	require.NoError(t, err)

	var analyzed *domain.AuditRecord
	store.mu.Lock()
	for _, rec := range store.auditTrail {
		if rec.Action == domain.AuditActionAnalyze {
			analyzed = rec
		}
	}
	store.mu.Unlock()

	require.NotNil(t, analyzed)
	assert.Equal(t, caseID, analyzed.CaseID)
	assert.Equal(t, actorID, analyzed.ActorID)
	assert.Equal(t, domain.AuditEntityCase, analyzed.EntityType)
}
