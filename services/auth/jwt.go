package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RelayTokenDuration bounds how long a page can relay events for its session.
const RelayTokenDuration = time.Hour

const relayTokenType = "relay"

var (
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// FlowTokenService issues the tokens the browser shim presents when relaying
// frame messages and provider callbacks back to its page session.
type FlowTokenService struct {
	secretKey []byte
	issuer    string
	duration  time.Duration
	now       func() time.Time
}

type Claims struct {
	SessionID string `json:"session_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func NewFlowTokenService(secretKey, issuer string) *FlowTokenService {
	return &FlowTokenService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		duration:  RelayTokenDuration,
		now:       time.Now,
	}
}

// Issue gera um token de relay para a sessão
func (s *FlowTokenService) Issue(sessionID string) (string, time.Time, error) {
	if sessionID == "" {
		return "", time.Time{}, fmt.Errorf("session id is required")
	}
	now := s.now()
	expires := now.Add(s.duration)
	claims := Claims{
		SessionID: sessionID,
		TokenType: relayTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing relay token: %v", err)
	}
	return signed, expires, nil
}

// Validate returns the claims of a relay token.
func (s *FlowTokenService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != relayTokenType || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
