package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	t.Parallel()

	s := NewFlowTokenService("secret", "a55pay")
	token, expires, err := s.Issue("sess-1")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(RelayTokenDuration), expires, 5*time.Second)

	claims, err := s.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "sess-1", claims.SessionID)
	require.Equal(t, "a55pay", claims.Issuer)
}

func TestIssueRequiresSession(t *testing.T) {
	t.Parallel()

	_, _, err := NewFlowTokenService("secret", "a55pay").Issue("")
	require.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	s := NewFlowTokenService("secret", "a55pay")

	t.Run("expired", func(t *testing.T) {
		old := NewFlowTokenService("secret", "a55pay")
		old.now = func() time.Time { return time.Now().Add(-2 * RelayTokenDuration) }
		token, _, err := old.Issue("sess-1")
		require.NoError(t, err)

		_, err = s.Validate(token)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewFlowTokenService("other", "a55pay").Issue("sess-1")
		require.NoError(t, err)

		_, err = s.Validate(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, _, err := NewFlowTokenService("secret", "someone-else").Issue("sess-1")
		require.NoError(t, err)

		_, err = s.Validate(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong token type", func(t *testing.T) {
		claims := Claims{
			SessionID: "sess-1",
			TokenType: "access",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "a55pay",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = s.Validate(token)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.Validate("not-a-token")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}
