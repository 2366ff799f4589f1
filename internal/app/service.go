/**
 * @description
 * This file contains the core business logic for the portal-service. The
 * `Service` struct orchestrates registration, login, transaction request
 * creation, settlement, and admin reporting, coordinating between the
 * database repository, the identity provider, and the message broker.
 *
 * Key features:
 * - Registration creates the identity and the zero-balance account together.
 * - Deposit/withdrawal requests only ever create `pending` records; the
 *   settlement engine is the single path that mutates balances.
 * - Publishes events to RabbitMQ so dashboard streams update without polling.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store, internal/identity: Models, data access,
 *   and credential management.
 * - pkg/rabbitmq: Event publishing.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/unitymfi/portal-service/internal/domain"
	"github.com/unitymfi/portal-service/internal/identity"
	"github.com/unitymfi/portal-service/internal/store"
	"github.com/unitymfi/portal-service/pkg/rabbitmq"
)

var (
	// ErrValidation wraps all input rejections raised before any store interaction.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidDecision is returned when a settlement decision is neither approve nor reject.
	ErrInvalidDecision = errors.New("settlement decision must be approve or reject")
	// ErrWithdrawalExceedsBalance is the advisory creation-time check. The
	// authoritative guard runs inside the settlement atomic unit.
	ErrWithdrawalExceedsBalance = errors.New("withdrawal amount exceeds balance")
)

// Service provides the core business logic for the portal.
type Service struct {
	repo          store.Repository
	idp           *identity.Provider
	eventProducer rabbitmq.Publisher
}

// NewService creates a new portal service instance.
func NewService(repo store.Repository, idp *identity.Provider, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		idp:           idp,
		eventProducer: producer,
	}
}

// RegisterClient creates an authentication identity and the client's account
// record, then issues a session so the new client lands signed in. The account
// opens with a zero balance; profile fields are immutable afterwards.
func (s *Service) RegisterClient(ctx context.Context, req domain.RegistrationRequest) (*domain.Account, *identity.Session, error) {
	profile := req.Profile()
	if missing := profile.MissingFields(); len(missing) > 0 {
		return nil, nil, fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	loginKey := s.idp.ClientLoginKey(profile.PhoneNumber)
	identityID, err := s.idp.CreateIdentity(ctx, loginKey, req.Password, domain.RoleClient)
	if err != nil {
		return nil, nil, err
	}

	account := &domain.Account{
		ID:               uuid.New(),
		IdentityID:       identityID,
		FullName:         profile.FullName,
		PhoneNumber:      profile.PhoneNumber,
		NationalID:       profile.NationalID,
		BusinessName:     profile.BusinessName,
		BusinessLocation: profile.BusinessLocation,
		TaxStatus:        profile.TaxStatus,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		// The identity exists but the account write failed. The client can
		// not log in to anything useful until this is resolved.
		log.Printf("level=error component=app msg=\"CRITICAL: identity created but account write failed\" identity_id=%s err=%v", identityID, err)
		return nil, nil, err
	}

	session, err := s.idp.Authenticate(ctx, loginKey, req.Password)
	if err != nil {
		// The account exists, so do not fail the registration. The client
		// can still log in through the regular flow.
		log.Printf("level=warn component=app msg=\"post-registration session issue failed\" identity_id=%s err=%v", identityID, err)
		session = nil
	}

	s.publish(ctx, domain.AccountCreatedKey, domain.AccountEvent{Account: *account, Timestamp: time.Now().UTC()})
	return account, session, nil
}

// LoginClient authenticates a client by phone number and password.
func (s *Service) LoginClient(ctx context.Context, req domain.LoginRequest) (*identity.Session, error) {
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" || req.Password == "" {
		return nil, identity.ErrAuthFailure
	}
	session, err := s.idp.Authenticate(ctx, s.idp.ClientLoginKey(phone), req.Password)
	if err != nil {
		return nil, err
	}
	if session.Role != domain.RoleClient {
		return nil, identity.ErrAuthFailure
	}
	return session, nil
}

// LoginAdmin authenticates an operator by email address and password.
func (s *Service) LoginAdmin(ctx context.Context, req domain.AdminLoginRequest) (*identity.Session, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, identity.ErrAuthFailure
	}
	session, err := s.idp.Authenticate(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	if session.Role != domain.RoleAdmin {
		return nil, identity.ErrAuthFailure
	}
	return session, nil
}

// AccountForIdentity resolves the account owned by an authenticated identity.
func (s *Service) AccountForIdentity(ctx context.Context, identityID string) (*domain.Account, error) {
	return s.repo.FindAccountByIdentityID(ctx, identityID)
}

// Account retrieves an account by its id.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, id)
}

// RecentTransactions returns a client's latest transactions, newest first.
func (s *Service) RecentTransactions(ctx context.Context, clientID uuid.UUID, limit int) ([]domain.Transaction, error) {
	return s.repo.FindRecentTransactionsByClientID(ctx, clientID, limit)
}

// CreateDeposit logs a pending deposit request. It has no balance effect
// until an admin approves it.
func (s *Service) CreateDeposit(ctx context.Context, identityID string, req domain.DepositRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: mobile money reference is required", ErrValidation)
	}

	account, err := s.repo.FindAccountByIdentityID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:         uuid.New(),
		ClientID:   account.ID,
		ClientName: account.FullName,
		Type:       domain.TransactionTypeDeposit,
		Method:     domain.TransactionMethodMobileMoney,
		Amount:     req.Amount,
		Reference:  &reference,
		Status:     domain.TransactionStatusPending,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.TransactionCreatedKey, domain.TransactionCreatedEvent{Transaction: *tx, Timestamp: time.Now().UTC()})
	return tx, nil
}

// CreateWithdrawal logs a pending withdrawal request. The balance comparison
// here is advisory: it reads the balance outside any atomic unit and merely
// keeps obviously hopeless requests out of the approval queue. The
// authoritative non-negative guard runs inside the settlement engine.
func (s *Service) CreateWithdrawal(ctx context.Context, identityID string, req domain.WithdrawalRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	account, err := s.repo.FindAccountByIdentityID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if req.Amount > account.AccountBalance {
		return nil, ErrWithdrawalExceedsBalance
	}

	tx := &domain.Transaction{
		ID:         uuid.New(),
		ClientID:   account.ID,
		ClientName: account.FullName,
		Type:       domain.TransactionTypeWithdrawal,
		Method:     domain.TransactionMethodAgentCash,
		Amount:     req.Amount,
		Status:     domain.TransactionStatusPending,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	s.publish(ctx, domain.TransactionCreatedKey, domain.TransactionCreatedEvent{Transaction: *tx, Timestamp: time.Now().UTC()})
	return tx, nil
}

// Settle runs the settlement engine against a pending transaction. Approve
// applies the balance effect atomically; reject only writes the terminal
// status. Either way the transaction leaves `pending` exactly once.
func (s *Service) Settle(ctx context.Context, transactionID uuid.UUID, decision string) (*domain.SettlementResult, error) {
	var (
		result *domain.SettlementResult
		err    error
	)
	switch decision {
	case domain.SettlementDecisionApprove:
		result, err = s.repo.ApproveTransaction(ctx, transactionID)
	case domain.SettlementDecisionReject:
		result, err = s.repo.RejectTransaction(ctx, transactionID)
	default:
		return nil, ErrInvalidDecision
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, domain.TransactionSettledKey, domain.TransactionSettledEvent{
		TransactionID: result.TransactionID,
		ClientID:      result.ClientID,
		Status:        result.Status,
		NewBalance:    result.NewBalance,
		Timestamp:     time.Now().UTC(),
	})
	if result.Status == domain.TransactionStatusCompleted {
		// Push the fresh snapshot so client dashboards update immediately.
		if account, accErr := s.repo.FindAccountByID(ctx, result.ClientID); accErr == nil {
			s.publish(ctx, domain.AccountUpdatedKey, domain.AccountEvent{Account: *account, Timestamp: time.Now().UTC()})
		} else {
			log.Printf("level=warn component=app msg=\"settled but account snapshot read failed\" client_id=%s err=%v", result.ClientID, accErr)
		}
	}
	return result, nil
}

// PendingTransactions returns the approval queue, oldest first.
func (s *Service) PendingTransactions(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.FindPendingTransactions(ctx)
}

// Stats computes the admin dashboard figures.
func (s *Service) Stats(ctx context.Context) (*domain.PortalStats, error) {
	totalClients, err := s.repo.CountAccounts(ctx)
	if err != nil {
		return nil, err
	}
	totalSavings, err := s.repo.SumAccountBalances(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.CountPendingTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.PortalStats{
		TotalClients:        totalClients,
		TotalSavings:        totalSavings,
		PendingTransactions: pending,
	}, nil
}

// publish sends a portal event, logging but not failing on broker errors.
// Record writes have already committed by the time events go out.
func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, domain.PortalEventsExchange, routingKey, body); err != nil {
		log.Printf("level=warn component=app msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
