package domain

import "time"

// PortalStats aggregates the figures shown on the admin dashboard header.
type PortalStats struct {
	TotalClients        int64 `json:"total_clients"`
	TotalSavings        int64 `json:"total_savings"`
	PendingTransactions int64 `json:"pending_transactions"`
}

// StatsSnapshot is a point-in-time copy of PortalStats persisted by the
// scheduled reporting job.
type StatsSnapshot struct {
	ID                  int64     `json:"id"`
	TotalClients        int64     `json:"total_clients"`
	TotalSavings        int64     `json:"total_savings"`
	PendingTransactions int64     `json:"pending_transactions"`
	CapturedAt          time.Time `json:"captured_at"`
}
