/**
 * @description
 * This file contains the HTTP handlers for the portal service. Handlers
 * decode requests, invoke the application service, and translate service
 * errors into HTTP status codes.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - github.com/google/uuid: Parsing id path parameters.
 * - internal/app, internal/domain, internal/identity, internal/store
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/unitymfi/portal-service/internal/app"
	"github.com/unitymfi/portal-service/internal/domain"
	"github.com/unitymfi/portal-service/internal/identity"
	"github.com/unitymfi/portal-service/internal/store"
)

// PortalHandlers holds dependencies for the HTTP handlers.
type PortalHandlers struct {
	service       *app.Service
	watchHub      *app.WatchHub
	rateLimiter   app.RateLimiter
	loginLimit    int
	registerLimit int
}

// NewPortalHandlers creates a new PortalHandlers with its dependencies.
// rateLimiter may be nil, in which case login and registration are not
// throttled.
func NewPortalHandlers(service *app.Service, watchHub *app.WatchHub, rateLimiter app.RateLimiter, loginLimit, registerLimit int) *PortalHandlers {
	return &PortalHandlers{
		service:       service,
		watchHub:      watchHub,
		rateLimiter:   rateLimiter,
		loginLimit:    loginLimit,
		registerLimit: registerLimit,
	}
}

// HandleRegister handles POST /auth/register. It creates a client identity
// plus a zero-balance account and returns a session for the new client.
func (h *PortalHandlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if !h.allowRate(w, r, "register", h.registerLimit) {
		return
	}

	var req domain.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	account, session, err := h.service.RegisterClient(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrDuplicateIdentity):
			writeError(w, http.StatusConflict, "An account with this phone number already exists")
		default:
			log.Printf("level=error component=api msg=\"registration failed\" error=%v", err)
			writeError(w, http.StatusInternalServerError, "Failed to register")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"account": account,
		"session": session,
	})
}

// HandleClientLogin handles POST /auth/login for client phone+password
// credentials.
func (h *PortalHandlers) HandleClientLogin(w http.ResponseWriter, r *http.Request) {
	if !h.allowRate(w, r, "login", h.loginLimit) {
		return
	}

	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.service.LoginClient(r.Context(), req)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

// HandleAdminLogin handles POST /auth/admin/login for staff email+password
// credentials.
func (h *PortalHandlers) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if !h.allowRate(w, r, "login", h.loginLimit) {
		return
	}

	var req domain.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.service.LoginAdmin(r.Context(), req)
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (h *PortalHandlers) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrAuthFailure):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	default:
		log.Printf("level=error component=api msg=\"login failed\" error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to log in")
	}
}

// HandleMe handles GET /portal/me and returns the caller's account,
// including the current settled balance.
func (h *PortalHandlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// HandleMyTransactions handles GET /portal/me/transactions. It returns the
// caller's most recent transactions, newest first. An optional `limit`
// query parameter caps the page size.
func (h *PortalHandlers) HandleMyTransactions(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	transactions, err := h.service.RecentTransactions(r.Context(), account.ID, limit)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to list transactions\" client_id=%s error=%v", account.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// HandleCreateDeposit handles POST /portal/deposits. The created
// transaction is pending and has no effect on the balance until a staff
// member approves it.
func (h *PortalHandlers) HandleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	identityID, ok := GetIdentityID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.CreateDeposit(r.Context(), identityID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "Account not found")
		default:
			log.Printf("level=error component=api msg=\"failed to create deposit\" identity_id=%s error=%v", identityID, err)
			writeError(w, http.StatusInternalServerError, "Failed to create deposit request")
		}
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// HandleCreateWithdrawal handles POST /portal/withdrawals. The advisory
// balance check here gives the client early feedback; the binding check
// happens at settlement time.
func (h *PortalHandlers) HandleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	identityID, ok := GetIdentityID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req domain.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.service.CreateWithdrawal(r.Context(), identityID, req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrWithdrawalExceedsBalance):
			writeError(w, http.StatusBadRequest, "Withdrawal amount exceeds current balance")
		case errors.Is(err, store.ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "Account not found")
		default:
			log.Printf("level=error component=api msg=\"failed to create withdrawal\" identity_id=%s error=%v", identityID, err)
			writeError(w, http.StatusInternalServerError, "Failed to create withdrawal request")
		}
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// HandleAdminStats handles GET /admin/stats.
func (h *PortalHandlers) HandleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to compute stats\" error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandlePendingTransactions handles GET /admin/transactions/pending. The
// queue is returned oldest first so staff work requests in arrival order.
func (h *PortalHandlers) HandlePendingTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := h.service.PendingTransactions(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to list pending transactions\" error=%v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch pending transactions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": transactions})
}

// HandleApproveTransaction handles POST /admin/transactions/{id}/approve.
func (h *PortalHandlers) HandleApproveTransaction(w http.ResponseWriter, r *http.Request) {
	h.handleSettle(w, r, domain.SettlementDecisionApprove)
}

// HandleRejectTransaction handles POST /admin/transactions/{id}/reject.
func (h *PortalHandlers) HandleRejectTransaction(w http.ResponseWriter, r *http.Request) {
	h.handleSettle(w, r, domain.SettlementDecisionReject)
}

func (h *PortalHandlers) handleSettle(w http.ResponseWriter, r *http.Request, decision string) {
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction id")
		return
	}

	result, err := h.service.Settle(r.Context(), txID, decision)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTransactionNotFound):
			writeError(w, http.StatusNotFound, "Transaction not found")
		case errors.Is(err, store.ErrTransactionNotPending):
			writeError(w, http.StatusConflict, "Transaction has already been settled")
		case errors.Is(err, store.ErrInsufficientFunds):
			writeError(w, http.StatusUnprocessableEntity, "Approval would make the balance negative")
		case errors.Is(err, store.ErrSettlementConflict):
			writeError(w, http.StatusConflict, "Settlement conflicted with a concurrent operation, please retry")
		case errors.Is(err, app.ErrInvalidDecision):
			writeError(w, http.StatusBadRequest, "Invalid settlement decision")
		default:
			log.Printf("level=error component=api msg=\"settlement failed\" transaction_id=%s decision=%s error=%v", txID, decision, err)
			writeError(w, http.StatusInternalServerError, "Failed to settle transaction")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// callerAccount resolves the authenticated caller's account. It writes the
// error response itself and reports whether the caller may proceed.
func (h *PortalHandlers) callerAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	identityID, ok := GetIdentityID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}

	account, err := h.service.AccountForIdentity(r.Context(), identityID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return nil, false
		}
		log.Printf("level=error component=api msg=\"failed to resolve account\" identity_id=%s error=%v", identityID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch account")
		return nil, false
	}
	return account, true
}

// allowRate applies a fixed-window rate limit keyed by the caller's remote
// address. It fails open when the limiter backend is unavailable.
func (h *PortalHandlers) allowRate(w http.ResponseWriter, r *http.Request, scope string, limit int) bool {
	if h.rateLimiter == nil || limit <= 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	count, retryAfter, err := h.rateLimiter.ConsumeRateLimit(ctx, scope, r.RemoteAddr, limit, time.Minute)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable, allowing request\" scope=%s error=%v", scope, err)
		return true
	}
	if count > limit {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
		return false
	}
	return true
}

// writeJSON is a helper to write a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("level=error component=api msg=\"failed to write json response\" error=%v", err)
		}
	}
}

// writeError is a helper to write a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
