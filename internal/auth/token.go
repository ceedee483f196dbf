package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
)

// TokenManager issues and validates the bearer tokens presented by callers.
// Tokens are minted by the external session gateway; Generate exists for
// the CLI and tests and signs with the same secret.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret, issuer string, ttl time.Duration, clk clock.Clock) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, clock: clk}
}

// Claims describes JWT payload. The caller id travels in "sub".
type Claims struct {
	Role  domain.Role `json:"role"`
	Email string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken builds and signs a JWT for the caller.
func (tm *TokenManager) GenerateToken(caller domain.Caller) (string, time.Time, error) {
	now := tm.clock.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Role:  caller.Role,
		Email: caller.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.ID,
			Issuer:    tm.issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates the token and returns the caller it identifies.
func (tm *TokenManager) ParseToken(tokenStr string) (domain.Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if tm.issuer != "" {
		opts = append(opts, jwt.WithIssuer(tm.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return domain.Caller{}, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Caller{}, errors.New("invalid token claims")
	}

	caller := domain.Caller{ID: claims.Subject, Role: claims.Role, Email: claims.Email}
	if !caller.Authenticated() {
		return domain.Caller{}, fmt.Errorf("token carries no usable subject or role %q", claims.Role)
	}
	return caller, nil
}
