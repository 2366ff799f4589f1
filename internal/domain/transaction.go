/**
 * @description
 * This file defines the transaction domain models for the portal-service.
 * A Transaction is a client-initiated deposit or withdrawal request that sits
 * in `pending` until an admin settles it. Settlement moves it to exactly one
 * terminal status: `completed` (with the balance effect applied atomically)
 * or `rejected` (no balance effect).
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types.
const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
)

// Transaction statuses. `pending` transitions to exactly one of the terminal
// statuses exactly once; there is no path out of a terminal status.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusRejected  = "rejected"
)

// Transaction methods, recorded for operator display.
const (
	TransactionMethodMobileMoney = "mobile_money"
	TransactionMethodAgentCash   = "agent_cash"
)

// Settlement decisions accepted by the settlement engine.
const (
	SettlementDecisionApprove = "approve"
	SettlementDecisionReject  = "reject"
)

// Transaction represents a deposit or withdrawal request record.
// ClientName is a denormalized snapshot of the account holder's name at
// creation time and is intentionally never re-synced, so settled history
// reads the way it did when the request was made.
type Transaction struct {
	ID         uuid.UUID `json:"id"`
	ClientID   uuid.UUID `json:"client_id"`
	ClientName string    `json:"client_name"`
	Type       string    `json:"type"`
	Method     string    `json:"method"`
	Amount     int64     `json:"amount"`
	Reference  *string   `json:"reference,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsTerminal reports whether the transaction has reached a terminal status.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusRejected
}

// BalanceDelta returns the signed balance effect an approval of this
// transaction would apply: positive for deposits, negative for withdrawals.
func (t *Transaction) BalanceDelta() int64 {
	if t.Type == TransactionTypeWithdrawal {
		return -t.Amount
	}
	return t.Amount
}

// DepositRequest is the DTO for incoming deposit request API calls. The
// mobile-money reference is required so the operator can verify receipt.
type DepositRequest struct {
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// WithdrawalRequest is the DTO for incoming withdrawal request API calls.
type WithdrawalRequest struct {
	Amount int64 `json:"amount"`
}

// SettlementResult reports the outcome of a successful settlement to the
// operator: the terminal status written and, for approvals, the balance the
// account holds after the atomic unit committed.
type SettlementResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ClientID      uuid.UUID `json:"client_id"`
	Status        string    `json:"status"`
	NewBalance    int64     `json:"new_balance,omitempty"`
}
