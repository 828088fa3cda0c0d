package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const alertSelect = `
	SELECT alert_id, case_id, transaction_id, alert_type, severity,
	       title, description, trigger_criteria, detected_patterns,
	       acknowledged, acknowledged_by, acknowledged_at, created_at, updated_at
	FROM financial_alerts
`

// UpsertAlert atomically finds-or-creates an alert on the dedupe key
// (case_id, alert_type, transaction_id). The financial_alerts table carries
// a NULLS NOT DISTINCT unique index over those columns filtered to
// unacknowledged rows, so two concurrent analysis runs race into ON
// CONFLICT instead of creating duplicates. On conflict the trigger
// criteria and evidence are merged into the existing alert.
func (r *LedgerRepository) UpsertAlert(ctx context.Context, c domain.AlertCandidate) (*domain.FinancialAlert, bool, error) {
	const query = `
		INSERT INTO financial_alerts (
			alert_id, case_id, transaction_id, alert_type, severity,
			title, description, trigger_criteria, detected_patterns,
			acknowledged, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			FALSE, now(), now()
		)
		ON CONFLICT (case_id, alert_type, transaction_id) WHERE NOT acknowledged
		DO UPDATE SET
			trigger_criteria = EXCLUDED.trigger_criteria,
			detected_patterns = EXCLUDED.detected_patterns,
			updated_at = now()
		RETURNING alert_id, case_id, transaction_id, alert_type, severity,
		          title, description, trigger_criteria, detected_patterns,
		          acknowledged, acknowledged_by, acknowledged_at, created_at, updated_at,
		          (xmax = 0) AS inserted
	`
	var a domain.FinancialAlert
	var severity string
	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		uuid.New(), c.CaseID, c.TransactionID, c.AlertType, c.Severity,
		c.Title, c.Description, c.TriggerCriteria, c.DetectedPatterns,
	).Scan(
		&a.AlertID, &a.CaseID, &a.TransactionID, &a.AlertType, &severity,
		&a.Title, &a.Description, &a.TriggerCriteria, &a.DetectedPatterns,
		&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt, &a.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert alert: %w", err)
	}
	parsed, ok := domain.ParseAlertSeverity(severity)
	if !ok {
		return nil, false, fmt.Errorf("unknown severity %q for alert %s", severity, a.AlertID)
	}
	a.Severity = parsed
	return &a, inserted, nil
}

// GetAlert fetches one alert by ID
func (r *LedgerRepository) GetAlert(ctx context.Context, alertID uuid.UUID) (*domain.FinancialAlert, error) {
	query := alertSelect + ` WHERE alert_id = $1`
	a, err := scanAlert(r.pool.QueryRow(ctx, query, alertID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("alert", alertID.String())
		}
		return nil, fmt.Errorf("failed to fetch alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts ordered by severity (CRITICAL > HIGH > MEDIUM >
// LOW), then creation time descending
func (r *LedgerRepository) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]*domain.FinancialAlert, error) {
	query := alertSelect + ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.CaseID != nil {
		query += fmt.Sprintf(" AND case_id = $%d", argIdx)
		args = append(args, *filter.CaseID)
		argIdx++
	}
	if filter.AlertType != nil {
		query += fmt.Sprintf(" AND alert_type = $%d", argIdx)
		args = append(args, *filter.AlertType)
		argIdx++
	}
	if filter.Severity != nil {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, *filter.Severity)
		argIdx++
	}
	if filter.Acknowledged != nil {
		query += fmt.Sprintf(" AND acknowledged = $%d", argIdx)
		args = append(args, *filter.Acknowledged)
		argIdx++
	}

	query += `
		ORDER BY CASE severity
			WHEN 'CRITICAL' THEN 4
			WHEN 'HIGH' THEN 3
			WHEN 'MEDIUM' THEN 2
			ELSE 1
		END DESC, created_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.FinancialAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CountAlerts counts a case's alerts
func (r *LedgerRepository) CountAlerts(ctx context.Context, caseID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM financial_alerts WHERE case_id = $1`, caseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// AcknowledgeAlert sets the acknowledgement fields exactly once. The guarded
// UPDATE only matches unacknowledged rows, so a repeat call falls through to
// the read and returns the stored acknowledger and timestamp untouched.
func (r *LedgerRepository) AcknowledgeAlert(ctx context.Context, alertID, userID uuid.UUID) (*domain.FinancialAlert, error) {
	const query = `
		UPDATE financial_alerts SET
			acknowledged = TRUE,
			acknowledged_by = $2,
			acknowledged_at = now(),
			updated_at = now()
		WHERE alert_id = $1 AND NOT acknowledged
	`
	if _, err := r.pool.Exec(ctx, query, alertID, userID); err != nil {
		return nil, fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	return r.GetAlert(ctx, alertID)
}

func scanAlert(row rowScanner) (*domain.FinancialAlert, error) {
	var a domain.FinancialAlert
	var severity string
	err := row.Scan(
		&a.AlertID, &a.CaseID, &a.TransactionID, &a.AlertType, &severity,
		&a.Title, &a.Description, &a.TriggerCriteria, &a.DetectedPatterns,
		&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	parsed, ok := domain.ParseAlertSeverity(severity)
	if !ok {
		return nil, fmt.Errorf("unknown severity %q for alert %s", severity, a.AlertID)
	}
	a.Severity = parsed
	return &a, nil
}
