// Package provider verifies externally issued identity credentials. The
// google and apple subpackages validate ID tokens against the provider's
// published key set and exchange authorization codes; this package holds the
// shared verification machinery and the error taxonomy they surface.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Identity is the verified result of an external credential. It is consumed
// once by the auth service to find or create an AuthIdentity and is never
// persisted.
type Identity struct {
	ProviderID string
	Email      string
	FirstName  string
	LastName   string
	Picture    string
}

// Verification failures. Each maps to an authentication failure upstream;
// the distinctions exist so operators can tell a misconfigured audience or a
// stale key set apart from a forged token.
var (
	ErrInvalidTokenFormat = errors.New("credential is not a well-formed JWT")
	ErrNoMatchingKey      = errors.New("credential does not reference a known signing key")
	ErrSignatureInvalid   = errors.New("credential signature verification failed")
	ErrTokenExpired       = errors.New("credential has expired")
	ErrIssuerInvalid      = errors.New("credential issuer is not recognized")
	ErrAudienceInvalid    = errors.New("credential audience does not match any configured client id")
	ErrMissingClaims      = errors.New("credential is missing required claims")
	ErrNotConfigured      = errors.New("provider is not configured for this platform")
	ErrKeySetUnavailable  = errors.New("provider key set could not be fetched")
	// ErrProviderUnavailable marks a failed or timed-out provider network call
	// (token exchange, userinfo). An outage, not a rejected credential.
	ErrProviderUnavailable = errors.New("provider endpoint is unreachable")
)

// WrapExchangeError classifies a token-endpoint or userinfo failure.
// Transport errors and 5xx responses mean the provider is down and wrap
// ErrProviderUnavailable; a 4xx response is the provider rejecting the
// credential and stays an authentication failure.
func WrapExchangeError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.Response == nil || retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// KeySet lazily fetches a provider's JWKS and verifies JWT signatures
// against it. The remote set is created on first use; Refresh discards it so
// the next verification refetches, which covers provider key rotation.
type KeySet struct {
	jwksURL string

	mu     sync.Mutex
	remote *oidc.RemoteKeySet
}

func NewKeySet(jwksURL string) *KeySet {
	return &KeySet{jwksURL: jwksURL}
}

// Ready reports whether the key set has been fetched at least once.
func (k *KeySet) Ready() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.remote != nil
}

// Refresh drops the cached key set. Idempotent; the next verification
// refetches from the JWKS endpoint.
func (k *KeySet) Refresh(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.remote = nil
}

func (k *KeySet) keySet(ctx context.Context) *oidc.RemoteKeySet {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.remote == nil {
		k.remote = oidc.NewRemoteKeySet(context.WithoutCancel(ctx), k.jwksURL)
	}
	return k.remote
}

// verifySignature checks the JWT signature and returns the raw payload. A
// failure triggers one refresh-and-retry so a freshly rotated provider key
// does not fail live traffic.
func (k *KeySet) verifySignature(ctx context.Context, rawToken string) ([]byte, error) {
	payload, err := k.keySet(ctx).VerifySignature(ctx, rawToken)
	if err == nil {
		return payload, nil
	}
	k.Refresh(ctx)
	payload, err = k.keySet(ctx).VerifySignature(ctx, rawToken)
	if err == nil {
		return payload, nil
	}
	if strings.Contains(err.Error(), "fetching keys") {
		return nil, ErrKeySetUnavailable
	}
	return nil, ErrSignatureInvalid
}

// Claims are the validated claims of a provider-issued ID token.
type Claims struct {
	Issuer     string
	Subject    string
	Audience   []string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
	Expiry     time.Time
}

// Expectation describes what an ID token must satisfy to be accepted.
type Expectation struct {
	Issuers      []string
	Audiences    []string
	RequireEmail bool
}

// audience accepts both the string and array forms of the aud claim.
type audience []string

func (a *audience) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = []string{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(data, &ss); err != nil {
		return err
	}
	*a = ss
	return nil
}

type rawClaims struct {
	Issuer     string   `json:"iss"`
	Subject    string   `json:"sub"`
	Audience   audience `json:"aud"`
	Expiry     int64    `json:"exp"`
	Email      string   `json:"email"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Picture    string   `json:"picture"`
}

// VerifyIDToken validates format, signature, expiry, issuer, audience, and
// required claims of a provider ID token, in that order, so each failure is
// attributable. now is a hook for tests; pass the zero value in production.
func VerifyIDToken(ctx context.Context, keys *KeySet, rawToken string, want Expectation, now time.Time) (*Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, ErrInvalidTokenFormat
	}
	if kid, _ := parsed.Header["kid"].(string); kid == "" {
		return nil, ErrNoMatchingKey
	}

	payload, err := keys.verifySignature(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	var raw rawClaims
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ErrInvalidTokenFormat
	}

	if now.IsZero() {
		now = time.Now()
	}
	expiry := time.Unix(raw.Expiry, 0)
	if raw.Expiry == 0 || expiry.Before(now) {
		return nil, ErrTokenExpired
	}
	if !contains(want.Issuers, raw.Issuer) {
		return nil, ErrIssuerInvalid
	}
	if !intersects(want.Audiences, raw.Audience) {
		return nil, ErrAudienceInvalid
	}
	if raw.Subject == "" || (want.RequireEmail && raw.Email == "") {
		return nil, ErrMissingClaims
	}

	return &Claims{
		Issuer:     raw.Issuer,
		Subject:    raw.Subject,
		Audience:   raw.Audience,
		Email:      raw.Email,
		GivenName:  raw.GivenName,
		FamilyName: raw.FamilyName,
		Picture:    raw.Picture,
		Expiry:     expiry,
	}, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(allowed, got []string) bool {
	for _, g := range got {
		if contains(allowed, g) {
			return true
		}
	}
	return false
}
