package service

import (
	"context"
	"fmt"
	"time"

	"github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AnalysisService runs the risk rule evaluator over a case's ledger.
// Runs are idempotent: alerts dedupe through the store's atomic upsert and
// risk scores only move up, so re-running on an unchanged transaction set
// changes nothing. Runs are bounded and cheap to retry; there is no
// cancellation beyond the request context.
type AnalysisService struct {
	store     LedgerStore
	cases     CaseDirectory
	alerts    *AlertService
	summaries *SummaryService
	archiver  ReportArchiver
	audit     AuditLogger
	evaluator *evaluator
	logger    *zap.Logger
}

func NewAnalysisService(
	store LedgerStore,
	cases CaseDirectory,
	alerts *AlertService,
	summaries *SummaryService,
	archiver ReportArchiver,
	audit AuditLogger,
	cfg config.AnalysisConfig,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		store:     store,
		cases:     cases,
		alerts:    alerts,
		summaries: summaries,
		archiver:  archiver,
		audit:     audit,
		evaluator: newEvaluator(cfg),
		logger:    logger,
	}
}

// AnalyzeCase evaluates every rule over the case's current transaction
// snapshot, persists derived fields, and raises deduplicated alerts.
// Per-item failures accumulate in the result instead of aborting the run.
func (s *AnalysisService) AnalyzeCase(ctx context.Context, caseID, actorID uuid.UUID) (*domain.AnalysisResult, error) {
	exists, err := s.cases.CaseExists(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("case lookup failed: %w", err)
	}
	if !exists {
		return nil, domain.NewNotFoundError("case", caseID.String())
	}

	result := &domain.AnalysisResult{
		RunID:     uuid.New(),
		CaseID:    caseID,
		StartedAt: time.Now().UTC(),
	}

	accounts, err := s.store.ListAccounts(ctx, caseID)
	if err != nil {
		return nil, err
	}
	// Single consistent snapshot: window rules must never see a
	// partially-ingested window.
	transactions, err := s.store.ListTransactions(ctx, domain.TransactionFilter{CaseID: &caseID})
	if err != nil {
		return nil, err
	}

	out := s.evaluator.evaluate(accounts, transactions)
	result.TransactionsEvaluated = out.evaluated
	result.Issues = out.issues

	for _, assessment := range out.assessments {
		if err := s.store.ApplyAssessment(ctx, *assessment); err != nil {
			s.logger.Warn("failed to persist risk assessment",
				zap.String("transaction_id", assessment.TransactionID.String()),
				zap.Error(err),
			)
			result.Issues = append(result.Issues, domain.ProcessingIssue{
				TransactionID: assessment.TransactionID,
				Rule:          "persist_assessment",
				Reason:        err.Error(),
			})
			continue
		}
		if assessment.IsSuspicious {
			result.TransactionsFlagged++
		}
	}

	for _, candidate := range out.candidates {
		_, created, err := s.alerts.RaiseAlert(ctx, candidate)
		if err != nil {
			s.logger.Warn("failed to raise alert",
				zap.String("case_id", caseID.String()),
				zap.String("alert_type", candidate.AlertType),
				zap.Error(err),
			)
			issue := domain.ProcessingIssue{Rule: candidate.AlertType, Reason: err.Error()}
			if candidate.TransactionID != nil {
				issue.TransactionID = *candidate.TransactionID
			}
			result.Issues = append(result.Issues, issue)
			continue
		}
		if created {
			result.AlertsCreated++
		} else {
			result.AlertsMerged++
		}
	}

	result.CompletedAt = time.Now().UTC()

	s.logger.Info("case analysis completed",
		zap.String("case_id", caseID.String()),
		zap.String("run_id", result.RunID.String()),
		zap.Int("evaluated", result.TransactionsEvaluated),
		zap.Int("flagged", result.TransactionsFlagged),
		zap.Int("alerts_created", result.AlertsCreated),
		zap.Int("alerts_merged", result.AlertsMerged),
		zap.Int("issues", len(result.Issues)),
	)

	rec := domain.NewAuditRecord(caseID, domain.AuditEntityCase, caseID.String(), domain.AuditActionAnalyze, actorID)
	rec.Detail = mustJSON(map[string]any{"run_id": result.RunID, "alerts_created": result.AlertsCreated})
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logger.Warn("failed to write audit record", zap.String("case_id", caseID.String()), zap.Error(err))
	}

	s.asyncArchiveRun(result)
	return result, nil
}

// AnalyzeIngested re-runs analysis for the case a newly ingested
// transaction belongs to. Called by the Kafka consumer after persistence.
func (s *AnalysisService) AnalyzeIngested(ctx context.Context, tx *domain.FinancialTransaction) (*domain.AnalysisResult, error) {
	return s.AnalyzeCase(ctx, tx.CaseID, uuid.Nil)
}

// asyncArchiveRun snapshots the run result plus the case summary to object
// storage. Best effort; archival failure never fails the analyze call.
func (s *AnalysisService) asyncArchiveRun(result *domain.AnalysisResult) {
	if s.archiver == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in async analysis archival", zap.Any("panic", r))
			}
		}()

		asyncCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		summary, err := s.summaries.Summarize(asyncCtx, result.CaseID)
		if err != nil {
			s.logger.Error("failed to compute summary for archival",
				zap.String("case_id", result.CaseID.String()),
				zap.Error(err),
			)
			return
		}
		if err := s.archiver.ArchiveAnalysis(asyncCtx, result, summary); err != nil {
			s.logger.Error("failed to archive analysis run",
				zap.String("run_id", result.RunID.String()),
				zap.Error(err),
			)
		}
	}()
}
