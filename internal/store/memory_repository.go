/**
 * @description
 * This file provides an in-memory implementation of the `Repository`
 * interface. It mirrors the PostgreSQL implementation's semantics, including
 * the settlement atomic unit, which runs entirely under one lock, and backs
 * the service and API tests so settlement behavior can be exercised without a
 * database.
 */

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/unitymfi/portal-service/internal/domain"
)

// MemoryRepository is a mutex-guarded, map-backed Repository.
type MemoryRepository struct {
	mu           sync.Mutex
	identities   map[string]domain.Identity // keyed by login key
	accounts     map[uuid.UUID]domain.Account
	transactions map[uuid.UUID]domain.Transaction
	snapshots    []domain.StatsSnapshot
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		identities:   make(map[string]domain.Identity),
		accounts:     make(map[uuid.UUID]domain.Account),
		transactions: make(map[uuid.UUID]domain.Transaction),
	}
}

func (r *MemoryRepository) CreateIdentity(ctx context.Context, identity *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.identities[identity.LoginKey]; exists {
		return ErrDuplicateIdentity
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	r.identities[identity.LoginKey] = *identity
	return nil
}

func (r *MemoryRepository) FindIdentityByLoginKey(ctx context.Context, loginKey string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.identities[loginKey]
	if !ok {
		return nil, ErrIdentityNotFound
	}
	return &identity, nil
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.IdentityID == account.IdentityID {
			return ErrDuplicateAccount
		}
	}
	account.AccountBalance = 0
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryRepository) FindAccountByIdentityID(ctx context.Context, identityID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.IdentityID == identityID {
			copied := account
			return &copied, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryRepository) CountAccounts(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

func (r *MemoryRepository) SumAccountBalances(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, account := range r.accounts {
		total += account.AccountBalance
	}
	return total, nil
}

func (r *MemoryRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	r.transactions[tx.ID] = *tx
	return nil
}

func (r *MemoryRepository) FindTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.transactions[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tx, nil
}

func (r *MemoryRepository) FindRecentTransactionsByClientID(ctx context.Context, clientID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Transaction
	for _, tx := range r.transactions {
		if tx.ClientID == clientID {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) FindPendingTransactions(ctx context.Context) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Transaction
	for _, tx := range r.transactions {
		if tx.Status == domain.TransactionStatusPending {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *MemoryRepository) CountPendingTransactions(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, tx := range r.transactions {
		if tx.Status == domain.TransactionStatusPending {
			count++
		}
	}
	return count, nil
}

// ApproveTransaction applies the settlement atomic unit under the repository
// lock: state guard, fresh balance read, non-negative check, and both writes
// happen together or not at all.
func (r *MemoryRepository) ApproveTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.SettlementResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.transactions[transactionID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	if tx.Status != domain.TransactionStatusPending {
		return nil, ErrTransactionNotPending
	}
	account, ok := r.accounts[tx.ClientID]
	if !ok {
		return nil, ErrAccountNotFound
	}

	newBalance := account.AccountBalance + tx.BalanceDelta()
	if newBalance < 0 {
		return nil, ErrInsufficientFunds
	}

	account.AccountBalance = newBalance
	tx.Status = domain.TransactionStatusCompleted
	r.accounts[tx.ClientID] = account
	r.transactions[transactionID] = tx

	return &domain.SettlementResult{
		TransactionID: transactionID,
		ClientID:      tx.ClientID,
		Status:        domain.TransactionStatusCompleted,
		NewBalance:    newBalance,
	}, nil
}

func (r *MemoryRepository) RejectTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.SettlementResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.transactions[transactionID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	if tx.Status != domain.TransactionStatusPending {
		return nil, ErrTransactionNotPending
	}
	tx.Status = domain.TransactionStatusRejected
	r.transactions[transactionID] = tx

	return &domain.SettlementResult{
		TransactionID: transactionID,
		ClientID:      tx.ClientID,
		Status:        domain.TransactionStatusRejected,
	}, nil
}

func (r *MemoryRepository) InsertStatsSnapshot(ctx context.Context, snapshot *domain.StatsSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot.ID = int64(len(r.snapshots) + 1)
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now().UTC()
	}
	r.snapshots = append(r.snapshots, *snapshot)
	return nil
}

// Snapshots returns the persisted stats snapshots, for test assertions.
func (r *MemoryRepository) Snapshots() []domain.StatsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.StatsSnapshot, len(r.snapshots))
	copy(out, r.snapshots)
	return out
}
