// Package google verifies Google-issued credentials: ID tokens signed
// against Google's JWKS, and authorization codes exchanged (with PKCE) for
// user info.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"identity-core/internal/identity/domain"
	"identity-core/internal/provider"
)

const (
	jwksURL     = "https://www.googleapis.com/oauth2/v3/certs"
	authURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL    = "https://oauth2.googleapis.com/token"
	userinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// issuers Google has used for ID tokens; both forms appear in the wild.
var issuers = []string{"https://accounts.google.com", "accounts.google.com"}

// Config carries the per-platform Google client registration. Empty fields
// mean the platform is not configured.
type Config struct {
	WebClientID     string
	WebClientSecret string
	WebRedirectURL  string
	IOSClientID     string
	AndroidClientID string
}

// Verifier validates Google ID tokens and exchanges authorization codes.
type Verifier struct {
	cfg  Config
	keys *provider.KeySet

	// overridable for tests
	tokenURL    string
	userinfoURL string
	nowF        func() time.Time
}

func NewVerifier(cfg Config) *Verifier {
	return &Verifier{
		cfg:         cfg,
		keys:        provider.NewKeySet(jwksURL),
		tokenURL:    tokenURL,
		userinfoURL: userinfoURL,
		nowF:        func() time.Time { return time.Time{} },
	}
}

// Ready reports whether the Google key set has been fetched.
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

// VerifyIDToken validates a mobile Google ID token. The audience must equal
// the client id configured for the platform.
func (v *Verifier) VerifyIDToken(ctx context.Context, rawToken string, platform domain.Platform) (*provider.Identity, error) {
	clientID := v.ClientIDFor(platform)
	if clientID == "" {
		return nil, provider.ErrNotConfigured
	}
	claims, err := provider.VerifyIDToken(ctx, v.keys, rawToken, provider.Expectation{
		Issuers:      issuers,
		Audiences:    []string{clientID},
		RequireEmail: true,
	}, v.nowF())
	if err != nil {
		return nil, err
	}
	return &provider.Identity{
		ProviderID: claims.Subject,
		Email:      claims.Email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
		Picture:    claims.Picture,
	}, nil
}

// ExchangeCode swaps a mobile authorization code plus its PKCE verifier for
// an access token and fetches the user's info with it.
func (v *Verifier) ExchangeCode(ctx context.Context, code, codeVerifier string, platform domain.Platform) (*provider.Identity, error) {
	clientID := v.ClientIDFor(platform)
	if clientID == "" {
		return nil, provider.ErrNotConfigured
	}
	cfg := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{AuthURL: authURL, TokenURL: v.tokenURL},
	}
	token, err := cfg.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, provider.WrapExchangeError("google token exchange", err)
	}
	return v.fetchUserinfo(ctx, cfg, token)
}

// WebAuthCodeURL builds the browser redirect URL for the web OAuth flow.
func (v *Verifier) WebAuthCodeURL(state string) (string, error) {
	cfg, err := v.webConfig()
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// ExchangeWebCode swaps the code from the web redirect for an access token
// and fetches the user's info.
func (v *Verifier) ExchangeWebCode(ctx context.Context, code string) (*provider.Identity, error) {
	cfg, err := v.webConfig()
	if err != nil {
		return nil, err
	}
	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, provider.WrapExchangeError("google token exchange", err)
	}
	return v.fetchUserinfo(ctx, cfg, token)
}

func (v *Verifier) webConfig() (*oauth2.Config, error) {
	if v.cfg.WebClientID == "" || v.cfg.WebClientSecret == "" || v.cfg.WebRedirectURL == "" {
		return nil, provider.ErrNotConfigured
	}
	return &oauth2.Config{
		ClientID:     v.cfg.WebClientID,
		ClientSecret: v.cfg.WebClientSecret,
		RedirectURL:  v.cfg.WebRedirectURL,
		Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: v.tokenURL},
		Scopes:       []string{"openid", "profile", "email"},
	}, nil
}

func (v *Verifier) fetchUserinfo(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*provider.Identity, error) {
	client := cfg.Client(ctx, token)
	resp, err := client.Get(v.userinfoURL)
	if err != nil {
		return nil, provider.WrapExchangeError("google userinfo", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("google userinfo: status %d: %w", resp.StatusCode, provider.ErrProviderUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, provider.WrapExchangeError("google userinfo", err)
	}

	var info struct {
		Sub        string `json:"sub"`
		Email      string `json:"email"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, provider.ErrMissingClaims
	}
	return &provider.Identity{
		ProviderID: info.Sub,
		Email:      info.Email,
		FirstName:  info.GivenName,
		LastName:   info.FamilyName,
		Picture:    info.Picture,
	}, nil
}
