/**
 * @description
 * This file defines the event payloads published to RabbitMQ when portal
 * records change. The watch hub consumes these events to push fresh snapshots
 * to subscribed dashboard streams, and they are available to any other
 * consumer bound to the portal events exchange.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Exchange and routing keys for portal events.
const (
	PortalEventsExchange = "portal.events"

	AccountCreatedKey     = "account.created"
	AccountUpdatedKey     = "account.updated"
	TransactionCreatedKey = "transaction.created"
	TransactionSettledKey = "transaction.settled"
)

// AccountEvent is published whenever an account record is created or its
// balance changes. It carries a full snapshot so consumers never need a
// follow-up read.
type AccountEvent struct {
	Account   Account   `json:"account"`
	Timestamp time.Time `json:"timestamp"`
}

// TransactionCreatedEvent is published when a client logs a new deposit or
// withdrawal request.
type TransactionCreatedEvent struct {
	Transaction Transaction `json:"transaction"`
	Timestamp   time.Time   `json:"timestamp"`
}

// TransactionSettledEvent is published after a settlement commits. NewBalance
// is only meaningful for approvals.
type TransactionSettledEvent struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	ClientID      uuid.UUID `json:"client_id"`
	Status        string    `json:"status"`
	NewBalance    int64     `json:"new_balance"`
	Timestamp     time.Time `json:"timestamp"`
}
