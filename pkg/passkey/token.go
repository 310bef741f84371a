package passkey

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL bounds token lifetime when no TTL is configured. The
// upstream design kept tokens valid for the signing key's lifetime; expiry is
// enforced here as a hardening measure.
const DefaultSessionTTL = 7 * 24 * time.Hour

// SessionClaims is the payload embedded in a session token. Validity is
// solely a function of the signature and the expiry claim; there is no
// server-side session state.
type SessionClaims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// UUID parses the user id claim.
func (c *SessionClaims) UUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// TokenAuthority mints and validates HS256-signed session tokens.
type TokenAuthority struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

// NewTokenAuthority creates a TokenAuthority signing with secret. A zero ttl
// falls back to DefaultSessionTTL.
func NewTokenAuthority(secret []byte, ttl time.Duration) (*TokenAuthority, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenAuthority{secret: secret, ttl: ttl, issuer: "regeester"}, nil
}

// Issue mints a token bound to the user's identity.
func (a *TokenAuthority) Issue(user *User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", wrap("sign session token", err)
	}
	return signed, nil
}

// Validate checks the signature and claims of a presented token. Any
// format, signature, or expiry problem yields ErrInvalidToken; no parsing
// detail escapes this boundary.
func (a *TokenAuthority) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (a *TokenAuthority) TTL() time.Duration { return a.ttl }
