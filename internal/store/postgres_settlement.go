/**
 * @description
 * This file implements the settlement atomic unit against PostgreSQL. It is
 * the only code path that mutates an account balance, and it must observe the
 * latest committed balance rather than anything the admin dashboard cached.
 *
 * Approval locks the transaction row and the client row with `FOR UPDATE`,
 * recomputes the balance from the locked row, rejects any result below zero,
 * and writes both records inside one database transaction. Concurrent
 * settlements against the same client serialize on the row lock; if the
 * database reports a serialization failure or deadlock the whole unit is
 * retried with fresh reads a bounded number of times.
 *
 * @dependencies
 * - context, errors, log: Standard Go libraries.
 * - github.com/jackc/pgx/v5: Transactions and row locking.
 */

package store

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/unitymfi/portal-service/internal/domain"
)

const settlementMaxAttempts = 3

// ApproveTransaction settles a pending transaction by applying its balance
// effect. The account read, the non-negative guard, and both record writes
// happen inside one database transaction.
func (r *PostgresRepository) ApproveTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.SettlementResult, error) {
	var lastErr error
	for attempt := 1; attempt <= settlementMaxAttempts; attempt++ {
		result, err := r.approveOnce(ctx, transactionID)
		if err == nil {
			return result, nil
		}
		if !isRetryableTxError(err) {
			return nil, err
		}
		lastErr = err
		log.Printf("level=warn component=store msg=\"settlement unit conflicted; retrying\" transaction_id=%s attempt=%d err=%v",
			transactionID, attempt, err)
	}
	log.Printf("level=error component=store msg=\"settlement retries exhausted\" transaction_id=%s err=%v", transactionID, lastErr)
	return nil, ErrSettlementConflict
}

func (r *PostgresRepository) approveOnce(ctx context.Context, transactionID uuid.UUID) (*domain.SettlementResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock the transaction row first so a second approval of the same id
	// blocks here and then observes the terminal status.
	var (
		clientID uuid.UUID
		txType   string
		amount   int64
		status   string
	)
	err = tx.QueryRow(ctx,
		`SELECT client_id, type, amount, status FROM transactions WHERE id = $1 FOR UPDATE`,
		transactionID,
	).Scan(&clientID, &txType, &amount, &status)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	if status != domain.TransactionStatusPending {
		return nil, ErrTransactionNotPending
	}

	// Fresh balance read inside the unit; this is the authoritative value,
	// not whatever the dashboard stream last showed.
	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT account_balance FROM clients WHERE id = $1 FOR UPDATE`,
		clientID,
	).Scan(&balance)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	delta := amount
	if txType == domain.TransactionTypeWithdrawal {
		delta = -amount
	}
	newBalance := balance + delta
	if newBalance < 0 {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx,
		`UPDATE clients SET account_balance = $1, updated_at = NOW() WHERE id = $2`,
		newBalance, clientID,
	); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE transactions SET status = 'completed', updated_at = NOW() WHERE id = $1`,
		transactionID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.SettlementResult{
		TransactionID: transactionID,
		ClientID:      clientID,
		Status:        domain.TransactionStatusCompleted,
		NewBalance:    newBalance,
	}, nil
}

// RejectTransaction moves a pending transaction to `rejected` with no balance
// effect. The status guard and the write are a single conditional UPDATE, so
// a transaction can never be rejected twice or rejected after completion.
func (r *PostgresRepository) RejectTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.SettlementResult, error) {
	var clientID uuid.UUID
	err := r.db.QueryRow(ctx,
		`UPDATE transactions SET status = 'rejected', updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'
		 RETURNING client_id`,
		transactionID,
	).Scan(&clientID)
	if err == nil {
		return &domain.SettlementResult{
			TransactionID: transactionID,
			ClientID:      clientID,
			Status:        domain.TransactionStatusRejected,
		}, nil
	}
	if !isNoRows(err) {
		return nil, err
	}

	// No pending row matched: distinguish a missing transaction from one
	// that already reached a terminal status.
	var status string
	err = r.db.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, transactionID).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return nil, ErrTransactionNotPending
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isRetryableTxError reports whether the database asked us to retry the whole
// unit: serialization failure (40001) or deadlock detected (40P01).
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
