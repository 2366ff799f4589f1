package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/unitymfi/portal-service/internal/app"
	"github.com/unitymfi/portal-service/internal/domain"
	"github.com/unitymfi/portal-service/internal/identity"
	"github.com/unitymfi/portal-service/internal/store"
)

const testAdminEmail = "ops@unitymfi.com"
const testAdminPassword = "admin-pass"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := store.NewMemoryRepository()
	idp := identity.NewProvider(repo, "test-secret", "unitymfi.com", time.Hour)
	if err := idp.EnsureIdentity(context.Background(), testAdminEmail, testAdminPassword, domain.RoleAdmin); err != nil {
		t.Fatalf("admin seed failed: %v", err)
	}
	svc := app.NewService(repo, idp, nil)
	handlers := NewPortalHandlers(svc, app.NewWatchHub(), nil, 0, 0)
	return PortalRoutes(handlers, idp, []string{"http://*"})
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response failed: %v (body: %s)", err, rec.Body.String())
	}
}

func registrationBody(phone string) map[string]string {
	return map[string]string{
		"full_name":         "Amina Okafor",
		"phone_number":      phone,
		"national_id":       "CM901234567",
		"business_name":     "Okafor Provisions",
		"business_location": "Central Market, Stall 14",
		"tax_status":        "informal",
		"password":          "s3cure-pass",
	}
}

func registerClient(t *testing.T, router http.Handler, phone string) (accountID string, token string) {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", registrationBody(phone))
	if rec.Code != http.StatusCreated {
		t.Fatalf("registration failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
		Session struct {
			Token string `json:"token"`
		} `json:"session"`
	}
	decodeBody(t, rec, &resp)
	if resp.Account.ID == "" || resp.Session.Token == "" {
		t.Fatalf("incomplete registration response: %s", rec.Body.String())
	}
	return resp.Account.ID, resp.Session.Token
}

func adminToken(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/auth/admin/login", "", map[string]string{
		"email":    testAdminEmail,
		"password": testAdminPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login failed: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Session struct {
			Token string `json:"token"`
		} `json:"session"`
	}
	decodeBody(t, rec, &resp)
	return resp.Session.Token
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRegisterThenFetchOwnAccount(t *testing.T) {
	router := newTestRouter(t)
	_, token := registerClient(t, router, "0771234567")

	rec := doJSON(t, router, http.MethodGet, "/portal/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var account domain.Account
	decodeBody(t, rec, &account)
	if account.AccountBalance != 0 {
		t.Fatalf("expected zero opening balance, got %d", account.AccountBalance)
	}
	if account.FullName != "Amina Okafor" || account.PhoneNumber != "0771234567" {
		t.Fatalf("profile did not round-trip: %+v", account)
	}
}

func TestRegister_DuplicatePhoneConflicts(t *testing.T) {
	router := newTestRouter(t)
	registerClient(t, router, "0771234567")

	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", registrationBody("0771234567"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRegister_MissingFieldsRejected(t *testing.T) {
	router := newTestRouter(t)
	body := registrationBody("0771234567")
	body["business_name"] = ""

	rec := doJSON(t, router, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestClientLogin_WrongPassword(t *testing.T) {
	router := newTestRouter(t)
	registerClient(t, router, "0771234567")

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "", map[string]string{
		"phone_number": "0771234567",
		"password":     "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestPortalRoutes_RequireClientSession(t *testing.T) {
	router := newTestRouter(t)
	staffToken := adminToken(t, router)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"malformed header", "not-a-token", http.StatusUnauthorized},
		{"admin token on client route", staffToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodGet, "/portal/me", tt.token, nil)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAdminRoutes_RejectClientSession(t *testing.T) {
	router := newTestRouter(t)
	_, clientToken := registerClient(t, router, "0771234567")

	rec := doJSON(t, router, http.MethodGet, "/admin/stats", clientToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestDepositApprovalFlow(t *testing.T) {
	router := newTestRouter(t)
	_, clientToken := registerClient(t, router, "0771234567")
	staffToken := adminToken(t, router)

	// Client files a deposit request.
	rec := doJSON(t, router, http.MethodPost, "/portal/deposits", clientToken, map[string]any{
		"amount":    150000,
		"reference": "MM-78-001",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	var tx domain.Transaction
	decodeBody(t, rec, &tx)
	if tx.Status != domain.TransactionStatusPending {
		t.Fatalf("expected pending, got %q", tx.Status)
	}

	// It shows up in the admin queue.
	rec = doJSON(t, router, http.MethodGet, "/admin/transactions/pending", staffToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var queue struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeBody(t, rec, &queue)
	if len(queue.Transactions) != 1 || queue.Transactions[0].ID != tx.ID {
		t.Fatalf("expected the deposit in the pending queue, got %+v", queue.Transactions)
	}

	// Approval applies the balance effect.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/admin/transactions/%s/approve", tx.ID), staffToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var result domain.SettlementResult
	decodeBody(t, rec, &result)
	if result.Status != domain.TransactionStatusCompleted || result.NewBalance != 150000 {
		t.Fatalf("unexpected settlement result: %+v", result)
	}

	// A second approval conflicts.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/admin/transactions/%s/approve", tx.ID), staffToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on double approval, got %d %s", rec.Code, rec.Body.String())
	}

	// The client sees the new balance.
	rec = doJSON(t, router, http.MethodGet, "/portal/me", clientToken, nil)
	var account domain.Account
	decodeBody(t, rec, &account)
	if account.AccountBalance != 150000 {
		t.Fatalf("expected balance 150000, got %d", account.AccountBalance)
	}
}

func TestWithdrawalBeyondBalanceRejectedAtCreation(t *testing.T) {
	router := newTestRouter(t)
	_, clientToken := registerClient(t, router, "0771234567")

	rec := doJSON(t, router, http.MethodPost, "/portal/withdrawals", clientToken, map[string]any{
		"amount": 5000,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestApproveUnprocessableWithdrawalKeepsItPending(t *testing.T) {
	router := newTestRouter(t)
	_, clientToken := registerClient(t, router, "0771234567")
	staffToken := adminToken(t, router)

	// Fund the account, then drain most of it so the pending withdrawal can
	// no longer be honored.
	fund := doJSON(t, router, http.MethodPost, "/portal/deposits", clientToken, map[string]any{"amount": 100000, "reference": "MM-1"})
	var fundTx domain.Transaction
	decodeBody(t, fund, &fundTx)
	doJSON(t, router, http.MethodPost, fmt.Sprintf("/admin/transactions/%s/approve", fundTx.ID), staffToken, nil)

	withdrawRec := doJSON(t, router, http.MethodPost, "/portal/withdrawals", clientToken, map[string]any{"amount": 80000})
	var withdrawTx domain.Transaction
	decodeBody(t, withdrawRec, &withdrawTx)

	drainRec := doJSON(t, router, http.MethodPost, "/portal/withdrawals", clientToken, map[string]any{"amount": 70000})
	var drainTx domain.Transaction
	decodeBody(t, drainRec, &drainTx)
	doJSON(t, router, http.MethodPost, fmt.Sprintf("/admin/transactions/%s/approve", drainTx.ID), staffToken, nil)

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/admin/transactions/%s/approve", withdrawTx.ID), staffToken, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rec.Code, rec.Body.String())
	}

	// Still pending, available for rejection.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/admin/transactions/%s/reject", withdrawTx.ID), staffToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on reject, got %d %s", rec.Code, rec.Body.String())
	}
	var result domain.SettlementResult
	decodeBody(t, rec, &result)
	if result.Status != domain.TransactionStatusRejected {
		t.Fatalf("expected rejected, got %q", result.Status)
	}
}

func TestSettleUnknownTransaction(t *testing.T) {
	router := newTestRouter(t)
	staffToken := adminToken(t, router)

	rec := doJSON(t, router, http.MethodPost, "/admin/transactions/0b84dbd2-54c2-4b3f-9d6a-111111111111/approve", staffToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, router, http.MethodPost, "/admin/transactions/not-a-uuid/approve", staffToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminStats(t *testing.T) {
	router := newTestRouter(t)
	_, clientToken := registerClient(t, router, "0771234567")
	staffToken := adminToken(t, router)

	doJSON(t, router, http.MethodPost, "/portal/deposits", clientToken, map[string]any{"amount": 20000, "reference": "MM-1"})

	rec := doJSON(t, router, http.MethodGet, "/admin/stats", staffToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var stats domain.PortalStats
	decodeBody(t, rec, &stats)
	if stats.TotalClients != 1 || stats.PendingTransactions != 1 || stats.TotalSavings != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestMyTransactionsListsOwnHistory(t *testing.T) {
	router := newTestRouter(t)
	_, clientToken := registerClient(t, router, "0771234567")

	for i := 0; i < 3; i++ {
		rec := doJSON(t, router, http.MethodPost, "/portal/deposits", clientToken, map[string]any{
			"amount":    10000 + i,
			"reference": fmt.Sprintf("MM-%d", i),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("deposit %d failed: %d %s", i, rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/portal/me/transactions?limit=2", clientToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(resp.Transactions))
	}

	rec = doJSON(t, router, http.MethodGet, "/portal/me/transactions?limit=oops", clientToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d %s", rec.Code, rec.Body.String())
	}
}
