/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the portal-service. By defining
 * an interface, we decouple the application's business logic from the specific
 * database implementation (PostgreSQL), making the code more modular and
 * easier to test.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/unitymfi/portal-service/internal/domain"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrIdentityNotFound      = errors.New("identity not found")
	ErrDuplicateIdentity     = errors.New("identity already registered")
	ErrDuplicateAccount      = errors.New("identity already has an account")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrTransactionNotPending = errors.New("transaction is not pending")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrSettlementConflict    = errors.New("settlement lost a concurrent race")
)

// Repository defines the set of methods for interacting with the database.
//
// ApproveTransaction and RejectTransaction are the only operations allowed to
// mutate an account balance or a transaction status. Both execute as a single
// atomic unit: the implementation must read the account balance inside the
// unit (never from a caller-supplied or cached value), apply the whole effect
// or none of it, and retry internally on concurrency conflicts before
// surfacing ErrSettlementConflict.
type Repository interface {
	// Identity methods
	CreateIdentity(ctx context.Context, identity *domain.Identity) error
	FindIdentityByLoginKey(ctx context.Context, loginKey string) (*domain.Identity, error)

	// Account methods
	CreateAccount(ctx context.Context, account *domain.Account) error
	FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	FindAccountByIdentityID(ctx context.Context, identityID string) (*domain.Account, error)
	CountAccounts(ctx context.Context) (int64, error)
	SumAccountBalances(ctx context.Context) (int64, error)

	// Transaction methods
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindRecentTransactionsByClientID(ctx context.Context, clientID uuid.UUID, limit int) ([]domain.Transaction, error)
	FindPendingTransactions(ctx context.Context) ([]domain.Transaction, error)
	CountPendingTransactions(ctx context.Context) (int64, error)

	// Settlement methods
	ApproveTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.SettlementResult, error)
	RejectTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.SettlementResult, error)

	// Reporting methods
	InsertStatsSnapshot(ctx context.Context, snapshot *domain.StatsSnapshot) error
}
