package domain

import "time"

// Identity roles.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Identity is a login credential record managed by the identity provider.
// Exactly one client account references a client identity; admin identities
// have no account record.
type Identity struct {
	ID           string    `json:"id"`
	LoginKey     string    `json:"login_key"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
