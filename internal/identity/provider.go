/**
 * @description
 * This package implements the identity provider the portal depends on:
 * credential creation, authentication, and bearer-token resolution. Client
 * login keys are derived from the phone number by appending the portal's
 * domain suffix, so clients sign in with phone + password while the identity
 * layer only ever sees email-shaped login keys. Admin identities use a
 * free-form email address.
 *
 * Passwords are stored as bcrypt hashes; sessions are HS256 JWTs carrying the
 * identity id and role.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Session token issuance and validation.
 * - golang.org/x/crypto/bcrypt: Password hashing.
 * - internal/domain, internal/store: Credential records and persistence.
 */

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/unitymfi/portal-service/internal/domain"
	"github.com/unitymfi/portal-service/internal/store"
)

var (
	ErrDuplicateIdentity = errors.New("login key already registered")
	ErrAuthFailure       = errors.New("invalid credentials")
	ErrInvalidToken      = errors.New("invalid session token")
)

// Session is the result of a successful authentication.
type Session struct {
	Token      string    `json:"token"`
	IdentityID string    `json:"identity_id"`
	Role       string    `json:"role"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Claims is the JWT payload carried by a session token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// CredentialStore is the slice of the repository the provider needs.
type CredentialStore interface {
	CreateIdentity(ctx context.Context, identity *domain.Identity) error
	FindIdentityByLoginKey(ctx context.Context, loginKey string) (*domain.Identity, error)
}

// Provider issues and verifies portal identities.
type Provider struct {
	creds       CredentialStore
	jwtSecret   []byte
	loginDomain string
	sessionTTL  time.Duration
}

// NewProvider creates an identity provider. loginDomain is the suffix
// appended to client phone numbers (e.g. "unitymfi.com").
func NewProvider(creds CredentialStore, jwtSecret, loginDomain string, sessionTTL time.Duration) *Provider {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Provider{
		creds:       creds,
		jwtSecret:   []byte(jwtSecret),
		loginDomain: strings.TrimPrefix(strings.TrimSpace(loginDomain), "@"),
		sessionTTL:  sessionTTL,
	}
}

// ClientLoginKey derives the login key for a client phone number.
func (p *Provider) ClientLoginKey(phoneNumber string) string {
	return fmt.Sprintf("%s@%s", strings.TrimSpace(phoneNumber), p.loginDomain)
}

// CreateIdentity registers a new credential and returns its identity id.
func (p *Provider) CreateIdentity(ctx context.Context, loginKey, secret, role string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrAuthFailure
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	record := &domain.Identity{
		ID:           uuid.NewString(),
		LoginKey:     loginKey,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := p.creds.CreateIdentity(ctx, record); err != nil {
		if errors.Is(err, store.ErrDuplicateIdentity) {
			return "", ErrDuplicateIdentity
		}
		return "", err
	}
	return record.ID, nil
}

// Authenticate verifies a login key and secret and returns a session. Unknown
// login keys and wrong passwords are indistinguishable to the caller.
func (p *Provider) Authenticate(ctx context.Context, loginKey, secret string) (*Session, error) {
	record, err := p.creds.FindIdentityByLoginKey(ctx, loginKey)
	if err != nil {
		if errors.Is(err, store.ErrIdentityNotFound) {
			return nil, ErrAuthFailure
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(secret)) != nil {
		return nil, ErrAuthFailure
	}
	return p.issueSession(record.ID, record.Role)
}

func (p *Provider) issueSession(identityID, role string) (*Session, error) {
	expiresAt := time.Now().Add(p.sessionTTL)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return &Session{
		Token:      signed,
		IdentityID: identityID,
		Role:       role,
		ExpiresAt:  expiresAt,
	}, nil
}

// CurrentUser resolves the identity behind a bearer token.
func (p *Provider) CurrentUser(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// EnsureIdentity creates a credential if the login key is not yet registered.
// Used to seed the bootstrap admin at startup; an existing identity is left
// untouched.
func (p *Provider) EnsureIdentity(ctx context.Context, loginKey, secret, role string) error {
	_, err := p.CreateIdentity(ctx, loginKey, secret, role)
	if errors.Is(err, ErrDuplicateIdentity) {
		return nil
	}
	return err
}
