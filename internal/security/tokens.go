package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or fails
	// signature or issuer checks.
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// RefreshClaims holds JWT claims for the refresh token. The subject is the
// auth identity id; the token itself is bound to the stored rotation hash.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

// TokenProvider issues and validates HS256 access and refresh tokens.
// Access and refresh tokens are signed with distinct secrets so a leaked
// refresh secret cannot mint access tokens and vice versa.
type TokenProvider struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenProvider returns a TokenProvider using the given secrets and TTLs.
// issuer is set on claims and validated on every parse.
func NewTokenProvider(accessSecret, refreshSecret []byte, issuer string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccess issues a short-lived access JWT for the given auth identity.
// Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(authID, email string, roles []string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   authID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
		Roles: roles,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.accessSecret)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT for the given auth identity.
// Caller must persist the rotation hash of the returned token.
func (p *TokenProvider) IssueRefresh(authID string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   authID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.refreshSecret)
	return token, expiresAt, err
}

// ValidateAccess parses and validates the access token (signature, exp, iss).
// Returns the auth identity id, email, and roles, or ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (authID, email string, roles []string, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.accessSecret, nil
	})
	if err != nil {
		return "", "", nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return "", "", nil, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", "", nil, ErrInvalidToken
	}
	return claims.Subject, claims.Email, claims.Roles, nil
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss).
// Returns the auth identity id, or ErrInvalidToken. Callers must additionally
// compare the token against the persisted rotation hash; a cryptographically
// valid but rotated-out token is not sufficient.
func (p *TokenProvider) ValidateRefresh(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &RefreshClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.refreshSecret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*RefreshClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
