// Package authn issues and validates the short-lived challenge token a
// peer must present before its WebSocket upgrade is accepted. The gateway
// validates it before the upgrade; internal/ratelimit's origin and
// connection checks run after it.
//
// Adapted from the teacher's internal/security/jwt.go: same HS256 +
// golang-jwt/jwt/v5 shape, trimmed to the issue/validate pair a connection
// handshake needs. The teacher's role-based AuthMiddleware and its
// http.Request-scoped claims context are dropped — this core has no
// business RPC roles to gate, only "is this peer who it claims to be".
package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the challenge token is malformed or
	// its signature does not verify.
	ErrInvalidToken = errors.New("authn: invalid challenge token")
	// ErrExpiredToken is returned when the challenge token's window has
	// elapsed.
	ErrExpiredToken = errors.New("authn: challenge token expired")
)

// DefaultChallengeTTL bounds how long a peer has to complete the
// authenticated handshake after the challenge is issued.
const DefaultChallengeTTL = 30 * time.Second

// Claims identifies the connecting peer once its challenge has verified.
type Claims struct {
	SessionKey string `json:"session_key"`
	IssuedAt   int64  `json:"iat"`
	ExpiresAt  int64  `json:"exp"`
}

type challengeClaims struct {
	SessionKey string `json:"session_key"`
	jwt.RegisteredClaims
}

// Issuer issues and validates HS256 challenge tokens against a fixed
// secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer builds an Issuer. ttl of zero uses DefaultChallengeTTL.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &Issuer{secret: secret, ttl: ttl}
}

// Issue mints a challenge token scoped to sessionKey.
func (i *Issuer) Issue(sessionKey string) (string, error) {
	now := time.Now()
	claims := challengeClaims{
		SessionKey: sessionKey,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses and validates a challenge token, returning the peer's
// claims.
func (i *Issuer) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &challengeClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	cc, ok := token.Claims.(*challengeClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Claims{
		SessionKey: cc.SessionKey,
		IssuedAt:   cc.IssuedAt.Unix(),
		ExpiresAt:  cc.ExpiresAt.Unix(),
	}, nil
}
