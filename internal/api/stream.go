/**
 * @description
 * This file implements the live account stream endpoint. Clients keep the
 * dashboard current by holding an SSE connection open; the handler pushes a
 * fresh account snapshot whenever the watch hub sees a change, so an
 * approved deposit shows up without a page refresh.
 *
 * @dependencies
 * - encoding/json, log, net/http, time: Standard Go libraries.
 * - internal/app: Watch hub subscriptions.
 * - internal/domain: Account event payloads.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/unitymfi/portal-service/internal/domain"
)

// streamHeartbeatInterval keeps intermediaries from closing idle
// connections.
const streamHeartbeatInterval = 30 * time.Second

// HandleAccountStream handles GET /portal/me/stream. It emits the caller's
// current account immediately, then an event per subsequent change.
func (h *PortalHandlers) HandleAccountStream(w http.ResponseWriter, r *http.Request) {
	account, ok := h.callerAccount(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, cancel := h.watchHub.Subscribe(account.ID)
	defer cancel()

	// Initial snapshot so the client renders without waiting for a change.
	writeStreamEvent(w, *account)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			writeStreamEvent(w, event.Account)
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, account domain.Account) {
	payload, err := json.Marshal(account)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to marshal stream event\" error=%v", err)
		return
	}
	if _, err := w.Write([]byte("event: account\ndata: " + string(payload) + "\n\n")); err != nil {
		log.Printf("level=warn component=api msg=\"stream write failed\" error=%v", err)
	}
}
