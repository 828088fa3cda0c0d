package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/courtcase/financial-analysis/internal/config"
	"github.com/courtcase/financial-analysis/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository implements the ledger store over PostgreSQL:
// accounts, transactions, alerts, and the case-directory lookups.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// NewLedgerRepository creates a new ledger repository with a connection pool
func NewLedgerRepository(cfg config.DatabaseConfig) (*LedgerRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	return &LedgerRepository{pool: pool}, nil
}

// Pool exposes the underlying pool for repositories sharing the connection
func (r *LedgerRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Close closes the database connection pool
func (r *LedgerRepository) Close() {
	r.pool.Close()
}

// CaseExists checks the case-management tables for the referenced case
func (r *LedgerRepository) CaseExists(ctx context.Context, caseID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM cases WHERE case_id = $1)`, caseID).Scan(&exists)
	if err != nil {
		return false, &domain.IntegrationError{System: "postgres", Err: err}
	}
	return exists, nil
}

// CreateAccount inserts a new financial account
func (r *LedgerRepository) CreateAccount(ctx context.Context, account *domain.FinancialAccount) error {
	const query = `
		INSERT INTO financial_accounts (
			account_id, case_id, account_number, institution_name, account_type,
			currency, owner_name, owner_details, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11
		)
	`
	_, err := r.pool.Exec(ctx, query,
		account.AccountID, account.CaseID, account.AccountNumber, account.InstitutionName, account.AccountType,
		account.Currency, account.OwnerName, account.OwnerDetails, account.CreatedBy, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetAccount fetches one account by ID
func (r *LedgerRepository) GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.FinancialAccount, error) {
	const query = `
		SELECT account_id, case_id, account_number, institution_name, account_type,
		       currency, owner_name, owner_details, created_by, created_at, updated_at
		FROM financial_accounts
		WHERE account_id = $1
	`
	account, err := scanAccount(r.pool.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("account", accountID.String())
		}
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts attached to a case
func (r *LedgerRepository) ListAccounts(ctx context.Context, caseID uuid.UUID) ([]*domain.FinancialAccount, error) {
	const query = `
		SELECT account_id, case_id, account_number, institution_name, account_type,
		       currency, owner_name, owner_details, created_by, created_at, updated_at
		FROM financial_accounts
		WHERE case_id = $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.FinancialAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// DeleteAccount removes an account and cascades to its transactions in one
// database transaction. The delete is rejected while unacknowledged alerts
// still reference any of the account's transactions; acknowledged alerts
// keep their history with the transaction reference nulled out.
func (r *LedgerRepository) DeleteAccount(ctx context.Context, accountID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return &domain.IntegrationError{System: "postgres", Err: err}
	}
	defer tx.Rollback(ctx)

	var blocked bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM financial_alerts a
			JOIN financial_transactions t ON a.transaction_id = t.transaction_id
			WHERE t.account_id = $1 AND NOT a.acknowledged
		)`, accountID).Scan(&blocked)
	if err != nil {
		return fmt.Errorf("failed to check alert references: %w", err)
	}
	if blocked {
		return domain.NewValidationError("account_id", "account has transactions referenced by unacknowledged alerts")
	}

	_, err = tx.Exec(ctx, `
		UPDATE financial_alerts SET transaction_id = NULL, updated_at = now()
		WHERE transaction_id IN (SELECT transaction_id FROM financial_transactions WHERE account_id = $1)
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to detach alerts: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM financial_transactions WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to delete transactions: %w", err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM financial_accounts WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("account", accountID.String())
	}

	return tx.Commit(ctx)
}

// CreateTransaction inserts a new financial transaction
func (r *LedgerRepository) CreateTransaction(ctx context.Context, t *domain.FinancialTransaction) error {
	const query = `
		INSERT INTO financial_transactions (
			transaction_id, account_id, case_id, document_id, transaction_date,
			amount, currency, transaction_type, description, counterparty_name,
			counterparty_account, is_suspicious, risk_score, tags, metadata,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17
		)
	`
	_, err := r.pool.Exec(ctx, query,
		t.TransactionID, t.AccountID, t.CaseID, t.DocumentID, t.TransactionDate,
		t.Amount, t.Currency, t.TransactionType, t.Description, t.CounterpartyName,
		t.CounterpartyAccount, t.IsSuspicious, t.RiskScore, t.Tags, t.Metadata,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction fetches one transaction by ID
func (r *LedgerRepository) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.FinancialTransaction, error) {
	query := transactionSelect + ` WHERE transaction_id = $1`
	t, err := scanTransaction(r.pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("transaction", transactionID.String())
		}
		return nil, fmt.Errorf("failed to fetch transaction: %w", err)
	}
	return t, nil
}

const transactionSelect = `
	SELECT transaction_id, account_id, case_id, document_id, transaction_date,
	       amount, currency, transaction_type, description, counterparty_name,
	       counterparty_account, is_suspicious, risk_score, tags, metadata,
	       created_at, updated_at
	FROM financial_transactions
`

// ListTransactions reads matching transactions. A single SELECT gives the
// statement-level snapshot the window rules rely on.
func (r *LedgerRepository) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.FinancialTransaction, error) {
	query := transactionSelect + ` WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.CaseID != nil {
		query += fmt.Sprintf(" AND case_id = $%d", argIdx)
		args = append(args, *filter.CaseID)
		argIdx++
	}
	if filter.AccountID != nil {
		query += fmt.Sprintf(" AND account_id = $%d", argIdx)
		args = append(args, *filter.AccountID)
		argIdx++
	}
	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND transaction_date >= $%d", argIdx)
		args = append(args, *filter.StartDate)
		argIdx++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND transaction_date <= $%d", argIdx)
		args = append(args, *filter.EndDate)
		argIdx++
	}
	if filter.SuspiciousOnly {
		query += " AND is_suspicious"
	}

	query += " ORDER BY transaction_date, transaction_id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*domain.FinancialTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// CountTransactions counts a case's transactions
func (r *LedgerRepository) CountTransactions(ctx context.Context, caseID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM financial_transactions WHERE case_id = $1`, caseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// CorrectTransaction applies an authorized manual update. Only the
// non-derived fields are touched: amount, date, and the analysis-owned
// derived fields stay out of the SET list so corrections and concurrent
// analysis runs cannot clobber each other.
func (r *LedgerRepository) CorrectTransaction(ctx context.Context, transactionID uuid.UUID, corr domain.TransactionCorrection) (*domain.FinancialTransaction, error) {
	const query = `
		UPDATE financial_transactions SET
			description = COALESCE($2, description),
			counterparty_name = COALESCE($3, counterparty_name),
			counterparty_account = COALESCE($4, counterparty_account),
			metadata = COALESCE($5, metadata),
			updated_at = now()
		WHERE transaction_id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		transactionID, corr.Description, corr.CounterpartyName, corr.CounterpartyAccount, corr.Metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to correct transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.NewNotFoundError("transaction", transactionID.String())
	}
	return r.GetTransaction(ctx, transactionID)
}

// ApplyAssessment writes the evaluator's derived fields. GREATEST keeps the
// risk score monotonic even under reordered concurrent writes, suspicion is
// sticky, and tags are unioned.
func (r *LedgerRepository) ApplyAssessment(ctx context.Context, a domain.RiskAssessment) error {
	const query = `
		UPDATE financial_transactions SET
			risk_score = GREATEST(risk_score, $2),
			is_suspicious = is_suspicious OR $3,
			tags = ARRAY(SELECT DISTINCT unnest(tags || $4::text[]) ORDER BY 1),
			updated_at = now()
		WHERE transaction_id = $1
	`
	tag, err := r.pool.Exec(ctx, query, a.TransactionID, a.RiskScore, a.IsSuspicious, a.Tags)
	if err != nil {
		return fmt.Errorf("failed to apply assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("transaction", a.TransactionID.String())
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.FinancialAccount, error) {
	var a domain.FinancialAccount
	var accountType string
	err := row.Scan(
		&a.AccountID, &a.CaseID, &a.AccountNumber, &a.InstitutionName, &accountType,
		&a.Currency, &a.OwnerName, &a.OwnerDetails, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	parsed, ok := domain.ParseAccountType(accountType)
	if !ok {
		return nil, fmt.Errorf("unknown account type %q for account %s", accountType, a.AccountID)
	}
	a.AccountType = parsed
	return &a, nil
}

func scanTransaction(row rowScanner) (*domain.FinancialTransaction, error) {
	var t domain.FinancialTransaction
	var txType string
	err := row.Scan(
		&t.TransactionID, &t.AccountID, &t.CaseID, &t.DocumentID, &t.TransactionDate,
		&t.Amount, &t.Currency, &txType, &t.Description, &t.CounterpartyName,
		&t.CounterpartyAccount, &t.IsSuspicious, &t.RiskScore, &t.Tags, &t.Metadata,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	parsed, ok := domain.ParseTransactionType(txType)
	if !ok {
		return nil, fmt.Errorf("unknown transaction type %q for transaction %s", txType, t.TransactionID)
	}
	t.TransactionType = parsed
	return &t, nil
}
