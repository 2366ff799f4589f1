/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains the SQL queries for the identities, clients,
 * transactions, and portal_stats tables.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/unitymfi/portal-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const uniqueViolationCode = "23505"

// CreateIdentity inserts a new login credential record. A duplicate login key
// surfaces as ErrDuplicateIdentity.
func (r *PostgresRepository) CreateIdentity(ctx context.Context, identity *domain.Identity) error {
	query := `
		INSERT INTO identities (id, login_key, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		identity.ID,
		identity.LoginKey,
		identity.PasswordHash,
		identity.Role,
	).Scan(&identity.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateIdentity
		}
		return err
	}
	return nil
}

// FindIdentityByLoginKey retrieves a credential record by its login key.
func (r *PostgresRepository) FindIdentityByLoginKey(ctx context.Context, loginKey string) (*domain.Identity, error) {
	var identity domain.Identity
	query := `SELECT id, login_key, password_hash, role, created_at FROM identities WHERE login_key = $1`
	err := r.db.QueryRow(ctx, query, loginKey).Scan(
		&identity.ID,
		&identity.LoginKey,
		&identity.PasswordHash,
		&identity.Role,
		&identity.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

// CreateAccount inserts a new client record with a zero opening balance.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO clients (
			id, identity_id, full_name, phone_number, national_id,
			business_name, business_location, tax_status, account_balance
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
		RETURNING account_balance, created_at
	`
	err := r.db.QueryRow(ctx, query,
		account.ID,
		account.IdentityID,
		account.FullName,
		account.PhoneNumber,
		account.NationalID,
		account.BusinessName,
		account.BusinessLocation,
		account.TaxStatus,
	).Scan(&account.AccountBalance, &account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

const accountColumns = `
	id, identity_id, full_name, phone_number, national_id,
	business_name, business_location, tax_status, account_balance, created_at
`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.IdentityID,
		&account.FullName,
		&account.PhoneNumber,
		&account.NationalID,
		&account.BusinessName,
		&account.BusinessLocation,
		&account.TaxStatus,
		&account.AccountBalance,
		&account.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindAccountByID retrieves a client record by its account id.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM clients WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// FindAccountByIdentityID retrieves the client record owned by an identity.
func (r *PostgresRepository) FindAccountByIdentityID(ctx context.Context, identityID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM clients WHERE identity_id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, identityID))
}

// CountAccounts returns the number of registered clients.
func (r *PostgresRepository) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&count)
	return count, err
}

// SumAccountBalances returns the total savings held across all clients.
func (r *PostgresRepository) SumAccountBalances(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(account_balance), 0) FROM clients`).Scan(&total)
	return total, err
}

// CreateTransaction inserts a new pending transaction record.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, client_id, client_name, type, method, amount, reference, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	return r.db.QueryRow(ctx, query,
		tx.ID,
		tx.ClientID,
		tx.ClientName,
		tx.Type,
		tx.Method,
		tx.Amount,
		tx.Reference,
		tx.Status,
	).Scan(&tx.CreatedAt)
}

const transactionColumns = `
	id, client_id, client_name, type, method, amount, reference, status, created_at
`

func scanTransactionRow(row pgx.Row) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.ClientID,
		&tx.ClientName,
		&tx.Type,
		&tx.Method,
		&tx.Amount,
		&tx.Reference,
		&tx.Status,
		&tx.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

// FindTransactionByID retrieves a single transaction record.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransactionRow(r.db.QueryRow(ctx, query, id))
}

// FindRecentTransactionsByClientID retrieves a client's latest transactions,
// newest first, for the dashboard history table.
func (r *PostgresRepository) FindRecentTransactionsByClientID(ctx context.Context, clientID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// FindPendingTransactions retrieves every pending transaction, oldest first,
// so operators work the queue in arrival order.
func (r *PostgresRepository) FindPendingTransactions(ctx context.Context) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'pending'
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(
			&tx.ID,
			&tx.ClientID,
			&tx.ClientName,
			&tx.Type,
			&tx.Method,
			&tx.Amount,
			&tx.Reference,
			&tx.Status,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// CountPendingTransactions returns the size of the approval queue.
func (r *PostgresRepository) CountPendingTransactions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE status = 'pending'`).Scan(&count)
	return count, err
}

// InsertStatsSnapshot persists one point-in-time copy of the admin dashboard figures.
func (r *PostgresRepository) InsertStatsSnapshot(ctx context.Context, snapshot *domain.StatsSnapshot) error {
	query := `
		INSERT INTO portal_stats (total_clients, total_savings, pending_transactions)
		VALUES ($1, $2, $3)
		RETURNING id, captured_at
	`
	return r.db.QueryRow(ctx, query,
		snapshot.TotalClients,
		snapshot.TotalSavings,
		snapshot.PendingTransactions,
	).Scan(&snapshot.ID, &snapshot.CapturedAt)
}
