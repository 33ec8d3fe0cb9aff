// Package video mints access tokens for the hosted video platform. Tokens
// follow the Twilio access token format so the browser SDK can join rooms.
package video

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNotConfigured is returned when platform credentials are missing.
	ErrNotConfigured = errors.New("video credentials not configured")
	// ErrMissingField is returned when identity or room is empty.
	ErrMissingField = errors.New("identity and room name are required")
)

// DefaultTTL is the lifetime of a token when none is configured.
const DefaultTTL = 4 * time.Hour

const contentType = "twilio-fpa;v=1"

// Credentials identify the account that signs room tokens.
type Credentials struct {
	AccountSID   string
	APIKeySID    string
	APIKeySecret string
}

// Configured reports whether all credential fields are present.
func (c Credentials) Configured() bool {
	return c.AccountSID != "" && c.APIKeySID != "" && c.APIKeySecret != ""
}

// RoomGrant limits the token to a single room.
type RoomGrant struct {
	Room string `json:"room"`
}

// Grants is the grant set carried by the token.
type Grants struct {
	Identity string    `json:"identity"`
	Video    RoomGrant `json:"video"`
}

// Claims is the access token payload.
type Claims struct {
	Grants Grants `json:"grants"`
	jwt.RegisteredClaims
}

// TokenIssuer signs room tokens.
type TokenIssuer struct {
	creds Credentials
	ttl   time.Duration
	now   func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. A non-positive ttl uses DefaultTTL.
func NewTokenIssuer(creds Credentials, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenIssuer{creds: creds, ttl: ttl, now: time.Now}
}

// Issue returns a signed token that lets identity join room.
func (i *TokenIssuer) Issue(identity, room string) (string, error) {
	if identity == "" || room == "" {
		return "", ErrMissingField
	}
	if !i.creds.Configured() {
		return "", ErrNotConfigured
	}

	now := i.now()
	claims := Claims{
		Grants: Grants{
			Identity: identity,
			Video:    RoomGrant{Room: room},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("%s-%d", i.creds.APIKeySID, now.Unix()),
			Issuer:    i.creds.APIKeySID,
			Subject:   i.creds.AccountSID,
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["cty"] = contentType
	signed, err := token.SignedString([]byte(i.creds.APIKeySecret))
	if err != nil {
		return "", fmt.Errorf("sign video token: %w", err)
	}
	return signed, nil
}
