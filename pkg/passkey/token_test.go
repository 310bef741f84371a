package passkey

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenAuthority(t *testing.T) {
	_, err := NewTokenAuthority(nil, time.Hour)
	require.Error(t, err)

	authority, err := NewTokenAuthority([]byte("secret"), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultSessionTTL, authority.TTL())

	authority, err = NewTokenAuthority([]byte("secret"), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, authority.TTL())
}

func TestTokenAuthority_IssueValidate(t *testing.T) {
	authority, err := NewTokenAuthority([]byte("secret"), time.Hour)
	require.NoError(t, err)

	user := &User{ID: uuid.New(), Email: "alice@example.com", Name: "Alice"}
	token, err := authority.Issue(user)
	require.NoError(t, err)

	claims, err := authority.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.Name)

	id, err := claims.UUID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestTokenAuthority_ValidateRejects(t *testing.T) {
	authority, err := NewTokenAuthority([]byte("secret"), time.Hour)
	require.NoError(t, err)
	user := &User{ID: uuid.New(), Email: "alice@example.com"}

	sign := func(claims SessionClaims, method jwt.SigningMethod, key any) string {
		signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return signed
	}
	base := func() SessionClaims {
		now := time.Now()
		return SessionClaims{
			UserID: user.ID.String(),
			Email:  user.Email,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "regeester",
				Subject:   user.ID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"wrong key", sign(base(), jwt.SigningMethodHS256, []byte("other-secret"))},
		{"wrong issuer", func() string {
			c := base()
			c.Issuer = "someone-else"
			return sign(c, jwt.SigningMethodHS256, []byte("secret"))
		}()},
		{"expired", func() string {
			c := base()
			c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
			return sign(c, jwt.SigningMethodHS256, []byte("secret"))
		}()},
		{"no expiry", func() string {
			c := base()
			c.ExpiresAt = nil
			return sign(c, jwt.SigningMethodHS256, []byte("secret"))
		}()},
		{"unsigned", func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodNone, base())
			signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return signed
		}()},
		{"bad user id", func() string {
			c := base()
			c.UserID = "not-a-uuid"
			return sign(c, jwt.SigningMethodHS256, []byte("secret"))
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authority.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenAuthority_KeyRotationInvalidates(t *testing.T) {
	old, err := NewTokenAuthority([]byte("old-secret"), time.Hour)
	require.NoError(t, err)
	current, err := NewTokenAuthority([]byte("new-secret"), time.Hour)
	require.NoError(t, err)

	token, err := old.Issue(&User{ID: uuid.New(), Email: "alice@example.com"})
	require.NoError(t, err)

	_, err = current.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
