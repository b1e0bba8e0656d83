// Package auth resolves who is calling.
//
// SESSION FLOW:
//  1. Sign-in (GitHub today) ends with AuthService.SignIn, which upserts the
//     user and issues a session token.
//  2. The token travels in an HttpOnly cookie named SessionCookie.
//  3. On every request Identify reads the cookie, asks an Authenticator to
//     turn it into a *model.User and stores the result in the context.
//  4. Procedures read the caller with UserFromContext. A nil caller is
//     "not logged in"; each procedure decides what that means.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<openId>","jti":"<xid>","iss":"taskboard","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// The subject is the user's openId, not the numeric row id, so a token keeps
// meaning the same person even if the store is rebuilt. The jti lets logout
// revoke a single token (see RedisRevoker).
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "taskboard"

// DefaultSessionTTL is used when NewTokenService is given a zero ttl.
const DefaultSessionTTL = 24 * time.Hour

// TokenService signs and verifies session tokens.
//
// It holds the HMAC secret key used for both operations. The same secret must
// be configured on every instance that serves requests.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret and lifetime.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of tokens issued by Issue.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Session is what a valid token says about its bearer.
type Session struct {
	OpenID    string
	TokenID   string
	ExpiresAt time.Time
}

// claims is the JWT payload. "sub" carries the openId and "jti" a unique
// token id.
type claims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a session token for openID with the service's TTL.
func (s *TokenService) Issue(openID string) (string, Session, error) {
	return s.IssueWithDuration(openID, s.ttl)
}

// IssueWithDuration creates a token with a custom lifetime. A negative d
// yields an already expired token, which tests use.
func (s *TokenService) IssueWithDuration(openID string, d time.Duration) (string, Session, error) {
	if openID == "" {
		return "", Session{}, errors.New("auth: open id must not be empty")
	}

	now := s.now()
	session := Session{
		OpenID:    openID,
		TokenID:   xid.New().String(),
		ExpiresAt: now.Add(d),
	}

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Subject:   openID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, session, nil
}

// Validate parses and verifies a token string.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired, and has an expiry at all
//   - Issuer matches "taskboard"
//   - Algorithm is HS256 (prevents the "alg: none" confusion attack)
func (s *TokenService) Validate(tokenStr string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return &Session{
		OpenID:    c.Subject,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
