package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/courtcase/financial-analysis/internal/crypto"
	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepository writes the append-only attribution trail. Records are
// never updated or deleted; each row is HMAC-signed for tamper evidence.
type AuditRepository struct {
	pool   *pgxpool.Pool
	signer *crypto.AuditSigner
}

// NewAuditRepository creates an audit repository sharing the ledger's pool
func NewAuditRepository(pool *pgxpool.Pool, signer *crypto.AuditSigner) *AuditRepository {
	return &AuditRepository{
		pool:   pool,
		signer: signer,
	}
}

// Record inserts one audit record. APPEND-ONLY: no update or delete exists.
func (r *AuditRepository) Record(ctx context.Context, rec *domain.AuditRecord) error {
	rec.Signature = r.signer.Sign(
		string(rec.EntityType),
		rec.EntityID,
		string(rec.Action),
		rec.ActorID.String(),
		rec.Timestamp.Format(time.RFC3339),
	)

	const query = `
		INSERT INTO audit_records (
			record_id, case_id, entity_type, entity_id, action,
			actor_id, detail, signature, timestamp
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9
		)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.RecordID, rec.CaseID, rec.EntityType, rec.EntityID, rec.Action,
		rec.ActorID, rec.Detail, rec.Signature, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// ListByCase retrieves a case's audit trail, newest first, verifying each
// record's signature on the way out
func (r *AuditRepository) ListByCase(ctx context.Context, caseID string, limit int) ([]*domain.AuditRecord, error) {
	const query = `
		SELECT record_id, case_id, entity_type, entity_id, action,
		       actor_id, detail, signature, timestamp
		FROM audit_records
		WHERE case_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []*domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		err := rows.Scan(
			&rec.RecordID, &rec.CaseID, &rec.EntityType, &rec.EntityID, &rec.Action,
			&rec.ActorID, &rec.Detail, &rec.Signature, &rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		valid := r.signer.Verify(
			string(rec.EntityType),
			rec.EntityID,
			string(rec.Action),
			rec.ActorID.String(),
			rec.Timestamp.Format(time.RFC3339),
			rec.Signature,
		)
		if !valid {
			return nil, fmt.Errorf("audit integrity failure: record %s signature invalid", rec.RecordID)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}
