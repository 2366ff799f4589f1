/**
 * @description
 * This file defines the core account domain models for the portal-service.
 * An Account is the per-client record holding the immutable business profile
 * captured at registration and the running balance mutated only by the
 * settlement engine.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (XAF has no
 *   subunit, so one unit equals one franc), which avoids floating-point
 *   inaccuracies with financial data.
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account represents a microfinance client's record. The profile fields are
// written once at registration; AccountBalance changes only through settlement.
type Account struct {
	ID               uuid.UUID `json:"id"`
	IdentityID       string    `json:"-"`
	FullName         string    `json:"full_name"`
	PhoneNumber      string    `json:"phone_number"`
	NationalID       string    `json:"national_id"`
	BusinessName     string    `json:"business_name"`
	BusinessLocation string    `json:"business_location"`
	TaxStatus        string    `json:"tax_status"`
	AccountBalance   int64     `json:"account_balance"`
	CreatedAt        time.Time `json:"created_at"`
}

// RegistrationRequest is the DTO for incoming client registration API requests.
type RegistrationRequest struct {
	FullName         string `json:"full_name"`
	PhoneNumber      string `json:"phone_number"`
	NationalID       string `json:"national_id"`
	BusinessName     string `json:"business_name"`
	BusinessLocation string `json:"business_location"`
	TaxStatus        string `json:"tax_status"`
	Password         string `json:"password"`
}

// Profile extracts the account profile fields from a registration request,
// trimming surrounding whitespace.
func (r RegistrationRequest) Profile() AccountProfile {
	return AccountProfile{
		FullName:         strings.TrimSpace(r.FullName),
		PhoneNumber:      strings.TrimSpace(r.PhoneNumber),
		NationalID:       strings.TrimSpace(r.NationalID),
		BusinessName:     strings.TrimSpace(r.BusinessName),
		BusinessLocation: strings.TrimSpace(r.BusinessLocation),
		TaxStatus:        strings.TrimSpace(r.TaxStatus),
	}
}

// AccountProfile carries the descriptive fields captured at registration.
type AccountProfile struct {
	FullName         string `json:"full_name"`
	PhoneNumber      string `json:"phone_number"`
	NationalID       string `json:"national_id"`
	BusinessName     string `json:"business_name"`
	BusinessLocation string `json:"business_location"`
	TaxStatus        string `json:"tax_status"`
}

// MissingFields returns the names of required profile fields that are empty.
// Every profile field is required at registration.
func (p AccountProfile) MissingFields() []string {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"full_name", p.FullName},
		{"phone_number", p.PhoneNumber},
		{"national_id", p.NationalID},
		{"business_name", p.BusinessName},
		{"business_location", p.BusinessLocation},
		{"tax_status", p.TaxStatus},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

// LoginRequest is the DTO for client logins. The login key is derived from the
// phone number by the identity layer.
type LoginRequest struct {
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

// AdminLoginRequest is the DTO for admin logins, which use a free-form email
// address rather than a derived login key.
type AdminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
