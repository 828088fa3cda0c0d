package service

import (
	"context"
	"time"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertService owns the alert lifecycle: deduplicated creation from rule
// candidates, explicit acknowledgement, and ordered listing.
type AlertService struct {
	store   AlertStore
	audit   AuditLogger
	indexer AlertIndexer
	logger  *zap.Logger
}

func NewAlertService(store AlertStore, audit AuditLogger, indexer AlertIndexer, logger *zap.Logger) *AlertService {
	return &AlertService{
		store:   store,
		audit:   audit,
		indexer: indexer,
		logger:  logger,
	}
}

// RaiseAlert creates an alert for the candidate, or merges the trigger
// criteria into an existing unacknowledged alert with the same
// (case_id, alert_type, transaction_id) key. The store's upsert is atomic,
// so concurrent analysis runs cannot produce duplicates.
// The boolean reports whether a new alert was created.
func (s *AlertService) RaiseAlert(ctx context.Context, candidate domain.AlertCandidate) (*domain.FinancialAlert, bool, error) {
	alert, created, err := s.store.UpsertAlert(ctx, candidate)
	if err != nil {
		return nil, false, err
	}

	if created {
		s.logger.Info("financial alert raised",
			zap.String("alert_id", alert.AlertID.String()),
			zap.String("case_id", alert.CaseID.String()),
			zap.String("alert_type", alert.AlertType),
			zap.String("severity", string(alert.Severity)),
		)
		s.recordAudit(ctx, alert, domain.AuditActionCreate, uuid.Nil)
	}
	s.asyncIndexAlert(alert)

	return alert, created, nil
}

// Acknowledge marks an alert as reviewed. Once acknowledged, the
// acknowledger and timestamp are immutable: a second call is a no-op that
// returns the stored state.
func (s *AlertService) Acknowledge(ctx context.Context, alertID, userID uuid.UUID) (*domain.FinancialAlert, error) {
	alert, err := s.store.AcknowledgeAlert(ctx, alertID, userID)
	if err != nil {
		return nil, err
	}

	// Only attribute the call that actually flipped the flag
	if alert.AcknowledgedBy != nil && *alert.AcknowledgedBy == userID {
		s.recordAudit(ctx, alert, domain.AuditActionAcknowledge, userID)
	}
	s.asyncIndexAlert(alert)
	return alert, nil
}

// ListAlerts returns a case's alerts ordered by severity
// (CRITICAL > HIGH > MEDIUM > LOW), then creation time descending.
func (s *AlertService) ListAlerts(ctx context.Context, caseID uuid.UUID, filter domain.AlertFilter) ([]*domain.FinancialAlert, error) {
	filter.CaseID = &caseID
	return s.store.ListAlerts(ctx, filter)
}

// GetAlert fetches one alert
func (s *AlertService) GetAlert(ctx context.Context, alertID uuid.UUID) (*domain.FinancialAlert, error) {
	return s.store.GetAlert(ctx, alertID)
}

// asyncIndexAlert pushes the alert to the search index in the background.
// Indexing is best effort and must never fail the calling request.
func (s *AlertService) asyncIndexAlert(alert *domain.FinancialAlert) {
	if s.indexer == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in async alert indexing", zap.Any("panic", r))
			}
		}()

		asyncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.indexer.IndexAlert(asyncCtx, alert); err != nil {
			s.logger.Error("failed to index alert",
				zap.String("alert_id", alert.AlertID.String()),
				zap.Error(err),
			)
		}
	}()
}

func (s *AlertService) recordAudit(ctx context.Context, alert *domain.FinancialAlert, action domain.AuditAction, actorID uuid.UUID) {
	rec := domain.NewAuditRecord(alert.CaseID, domain.AuditEntityAlert, alert.AlertID.String(), action, actorID)
	if err := s.audit.Record(ctx, rec); err != nil {
		s.logger.Warn("failed to write audit record",
			zap.String("alert_id", alert.AlertID.String()),
			zap.Error(err),
		)
	}
}
