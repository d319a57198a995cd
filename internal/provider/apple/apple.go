// Package apple verifies Sign in with Apple credentials: ID tokens signed
// against Apple's JWKS, and authorization codes exchanged using a
// client-secret JWT signed with the operator's Apple key.
package apple

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"identity-core/internal/identity/domain"
	"identity-core/internal/provider"
	"identity-core/internal/security"
)

const (
	issuer   = "https://appleid.apple.com"
	jwksURL  = "https://appleid.apple.com/auth/keys"
	tokenURL = "https://appleid.apple.com/auth/token"

	// Apple caps client-secret lifetime at six months; issue short ones.
	clientSecretTTL = 10 * time.Minute
)

// Config carries the per-platform Apple client registration plus the signing
// material for the token endpoint. ExtraAudiences extends the accepted
// audience set with bundle-id and service-id variants.
type Config struct {
	IOSClientID     string
	AndroidClientID string
	ExtraAudiences  []string
	TeamID          string
	KeyID           string
	PrivateKeyPEM   string
}

// Verifier validates Apple ID tokens and exchanges authorization codes.
type Verifier struct {
	cfg  Config
	keys *provider.KeySet

	// overridable for tests
	tokenURL string
	nowF     func() time.Time
}

func NewVerifier(cfg Config) *Verifier {
	return &Verifier{
		cfg:      cfg,
		keys:     provider.NewKeySet(jwksURL),
		tokenURL: tokenURL,
		nowF:     func() time.Time { return time.Time{} },
	}
}

// Ready reports whether the Apple key set has been fetched.
func (v *Verifier) Ready() bool { return v.keys.Ready() }

// Refresh forces a key set refetch on the next verification.
func (v *Verifier) Refresh(ctx context.Context) { v.keys.Refresh(ctx) }

// ClientIDFor returns the configured client id for the platform, or "".
func (v *Verifier) ClientIDFor(platform domain.Platform) string {
	switch platform {
	case domain.PlatformIOS:
		return v.cfg.IOSClientID
	case domain.PlatformAndroid:
		return v.cfg.AndroidClientID
	default:
		return ""
	}
}

func (v *Verifier) audiencesFor(platform domain.Platform) []string {
	primary := v.ClientIDFor(platform)
	if primary == "" {
		return nil
	}
	return append([]string{primary}, v.cfg.ExtraAudiences...)
}

// VerifyIDToken validates an Apple ID token for the platform. Email is not
// required: Apple only includes it on the user's first authorization.
func (v *Verifier) VerifyIDToken(ctx context.Context, rawToken string, platform domain.Platform) (*provider.Identity, error) {
	audiences := v.audiencesFor(platform)
	if len(audiences) == 0 {
		return nil, provider.ErrNotConfigured
	}
	claims, err := provider.VerifyIDToken(ctx, v.keys, rawToken, provider.Expectation{
		Issuers:   []string{issuer},
		Audiences: audiences,
	}, v.nowF())
	if err != nil {
		return nil, err
	}
	return &provider.Identity{
		ProviderID: claims.Subject,
		Email:      claims.Email,
	}, nil
}

// ExchangeCode swaps a mobile authorization code for Apple's token response
// and verifies the ID token it contains.
func (v *Verifier) ExchangeCode(ctx context.Context, code, codeVerifier string, platform domain.Platform) (*provider.Identity, error) {
	clientID := v.ClientIDFor(platform)
	if clientID == "" {
		return nil, provider.ErrNotConfigured
	}
	secret, err := v.ClientSecret(clientID)
	if err != nil {
		return nil, err
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		Endpoint:     oauth2.Endpoint{TokenURL: v.tokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	token, err := cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, provider.WrapExchangeError("apple token exchange", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, provider.ErrMissingClaims
	}
	return v.VerifyIDToken(ctx, rawIDToken, platform)
}

// ClientSecret builds the ES256 client-secret JWT Apple requires at its
// token endpoint: issued by the team, keyed by the operator's key id,
// addressed to Apple, on behalf of the client id.
func (v *Verifier) ClientSecret(clientID string) (string, error) {
	if v.cfg.TeamID == "" || v.cfg.KeyID == "" || v.cfg.PrivateKeyPEM == "" {
		return "", provider.ErrNotConfigured
	}
	key, err := security.ParseECPrivateKey(v.cfg.PrivateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("parsing apple signing key: %w", err)
	}

	now := v.nowF()
	if now.IsZero() {
		now = time.Now()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    v.cfg.TeamID,
		Subject:   clientID,
		Audience:  jwt.ClaimStrings{issuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(clientSecretTTL)),
	})
	token.Header["kid"] = v.cfg.KeyID
	return token.SignedString(key)
}
