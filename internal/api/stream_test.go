package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/unitymfi/portal-service/internal/app"
	"github.com/unitymfi/portal-service/internal/domain"
	"github.com/unitymfi/portal-service/internal/identity"
	"github.com/unitymfi/portal-service/internal/store"
)

func TestAccountStream_SnapshotThenLiveUpdate(t *testing.T) {
	repo := store.NewMemoryRepository()
	idp := identity.NewProvider(repo, "test-secret", "unitymfi.com", time.Hour)
	svc := app.NewService(repo, idp, nil)
	hub := app.NewWatchHub()
	handlers := NewPortalHandlers(svc, hub, nil, 0, 0)
	router := PortalRoutes(handlers, idp, []string{"http://*"})

	account, session, err := svc.RegisterClient(context.Background(), domain.RegistrationRequest{
		FullName:         "Amina Okafor",
		PhoneNumber:      "0771234567",
		NationalID:       "CM901234567",
		BusinessName:     "Okafor Provisions",
		BusinessLocation: "Central Market",
		TaxStatus:        "informal",
		Password:         "s3cure-pass",
	})
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/portal/me/stream", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(rec, req)
	}()

	// Broadcast the live update repeatedly so at least one lands after the
	// handler has subscribed, regardless of goroutine scheduling. The body is
	// only inspected after the handler returns.
	updated := *account
	updated.AccountBalance = 45000
	for i := 0; i < 20; i++ {
		hub.Broadcast(domain.AccountEvent{Account: updated, Timestamp: time.Now().UTC()})
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not return after context cancellation")
	}

	body := rec.Body.String()
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", got)
	}
	if strings.Count(body, "event: account") < 2 {
		t.Fatalf("expected initial snapshot plus a live update, got:\n%s", body)
	}

	// The last emitted snapshot carries the updated balance.
	lines := strings.Split(body, "\n")
	var lastData string
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			lastData = strings.TrimPrefix(line, "data: ")
		}
	}
	var snapshot domain.Account
	if err := json.Unmarshal([]byte(lastData), &snapshot); err != nil {
		t.Fatalf("failed to decode stream payload %q: %v", lastData, err)
	}
	if snapshot.AccountBalance != 45000 {
		t.Fatalf("expected live balance 45000, got %d", snapshot.AccountBalance)
	}
}

func TestAccountStream_RequiresAuth(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/portal/me/stream", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
