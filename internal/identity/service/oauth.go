package service

import (
	"context"
	"log"
	"time"

	"identity-core/internal/apperr"
	"identity-core/internal/audit"
	"identity-core/internal/command"
	identitydomain "identity-core/internal/identity/domain"
	identityrepo "identity-core/internal/identity/repository"
	profiledomain "identity-core/internal/profile/domain"
	profilerepo "identity-core/internal/profile/repository"
	"identity-core/internal/provider"
)

const (
	providerGoogle = "google"
	providerApple  = "apple"
)

// WebOAuthInitiation is the outcome of starting the web flow: where to send
// the browser, and the state nonce the redirect must echo.
type WebOAuthInitiation struct {
	RedirectURL string
	State       string
}

// InitiateWebGoogle starts the web Google flow: it issues a one-time state
// nonce and builds the provider redirect URL carrying it.
func (s *AuthService) InitiateWebGoogle(ctx context.Context) (*WebOAuthInitiation, error) {
	if s.google == nil || s.states == nil {
		return nil, apperr.New(apperr.KindConfiguration, "provider_not_configured", "google sign-in is not configured")
	}
	state, err := s.states.Issue(ctx, s.stateTTL)
	if err != nil {
		return nil, err
	}
	url, err := s.google.WebAuthCodeURL(state)
	if err != nil {
		return nil, mapProviderError(err, providerGoogle, "")
	}
	return &WebOAuthInitiation{RedirectURL: url, State: state}, nil
}

// HandleWebGoogleRedirect completes the web flow: the state must match a
// live nonce, the code is exchanged for user info, and the account is found
// or created.
func (s *AuthService) HandleWebGoogleRedirect(ctx context.Context, state, code string) (*AuthResult, error) {
	if s.google == nil || s.states == nil {
		return nil, apperr.New(apperr.KindConfiguration, "provider_not_configured", "google sign-in is not configured")
	}
	if !s.states.Consume(ctx, state) {
		return nil, apperr.New(apperr.KindUnauthorized, "state_mismatch", "oauth state does not match an active sign-in")
	}
	ext, err := s.google.ExchangeWebCode(ctx, code)
	if err != nil {
		return nil, mapProviderError(err, providerGoogle, "")
	}
	return s.completeOAuth(ctx, ext, providerGoogle, "")
}

// MobileGoogleAuth authenticates a mobile Google credential: either a
// verified ID token or an authorization code plus PKCE verifier.
func (s *AuthService) MobileGoogleAuth(ctx context.Context, data identitydomain.MobileOAuthData) (*AuthResult, error) {
	if err := identitydomain.ValidateMobileOAuthData(data); err != nil {
		return nil, err
	}
	if s.google == nil || s.google.ClientIDFor(data.Platform) == "" {
		return nil, apperr.New(apperr.KindConfiguration, "provider_not_configured",
			"google sign-in is not configured for platform "+string(data.Platform))
	}

	var ext *provider.Identity
	var err error
	if data.IDToken != "" {
		ext, err = s.google.VerifyIDToken(ctx, data.IDToken, data.Platform)
	} else {
		ext, err = s.google.ExchangeCode(ctx, data.Code, data.CodeVerifier, data.Platform)
	}
	if err != nil {
		return nil, mapProviderError(err, providerGoogle, data.Platform)
	}
	return s.completeOAuth(ctx, ext, providerGoogle, data.Platform)
}

// MobileAppleAuth authenticates a mobile Apple credential, analogous to
// MobileGoogleAuth.
func (s *AuthService) MobileAppleAuth(ctx context.Context, data identitydomain.MobileOAuthData) (*AuthResult, error) {
	if err := identitydomain.ValidateMobileOAuthData(data); err != nil {
		return nil, err
	}
	if s.apple == nil || s.apple.ClientIDFor(data.Platform) == "" {
		return nil, apperr.New(apperr.KindConfiguration, "provider_not_configured",
			"apple sign-in is not configured for platform "+string(data.Platform))
	}

	var ext *provider.Identity
	var err error
	if data.IDToken != "" {
		ext, err = s.apple.VerifyIDToken(ctx, data.IDToken, data.Platform)
	} else {
		ext, err = s.apple.ExchangeCode(ctx, data.Code, data.CodeVerifier, data.Platform)
	}
	if err != nil {
		return nil, mapProviderError(err, providerApple, data.Platform)
	}
	return s.completeOAuth(ctx, ext, providerApple, data.Platform)
}

// completeOAuth runs the shared find-or-create path and establishes a
// session for the verified external identity.
func (s *AuthService) completeOAuth(ctx context.Context, ext *provider.Identity, providerName string, platform identitydomain.Platform) (*AuthResult, error) {
	identity, err := s.findOrCreateFromProvider(ctx, ext, providerName)
	if err != nil {
		return nil, err
	}
	s.backfillProfileNames(ctx, identity.ID, ext)

	pair, err := s.issueSession(ctx, identity)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByAuthID(ctx, identity.ID)
	if err != nil {
		log.Printf("auth: oauth %s: profile fetch failed: %v", identity.ID, err)
		profile = nil
	}
	s.audit.LogEvent(ctx, identity.ID, audit.ActionOAuthLogin, "auth_identity",
		"provider="+providerName+" platform="+string(platform))
	return &AuthResult{TokenPair: *pair, AuthID: identity.ID, Profile: profile}, nil
}

// findOrCreateFromProvider resolves an external identity to an AuthIdentity:
// by provider subject first, then by email (linking the subject), and
// finally by running the registration path with no password.
func (s *AuthService) findOrCreateFromProvider(ctx context.Context, ext *provider.Identity, providerName string) (*identitydomain.AuthIdentity, error) {
	identity, err := s.findByProviderID(ctx, ext.ProviderID, providerName)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		return identity, nil
	}

	if ext.Email == "" {
		// No subject match and no email to link or register with.
		return nil, apperr.New(apperr.KindUnauthorized, "missing_claims",
			providerName+" credential carries no email and matches no account")
	}
	email := identitydomain.NormalizeEmail(ext.Email)
	identity, err = s.identities.GetByEmail(ctx, email, false)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		if err := s.linkProviderID(ctx, identity.ID, ext.ProviderID, providerName); err != nil {
			return nil, err
		}
		return s.identities.GetByID(ctx, identity.ID, false)
	}

	now := time.Now().UTC()
	created := &identitydomain.AuthIdentity{
		ID:        identitydomain.NewAuthID(),
		Email:     email,
		Roles:     []identitydomain.Role{identitydomain.RoleUser},
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch providerName {
	case providerGoogle:
		created.GoogleID = ext.ProviderID
	case providerApple:
		created.AppleID = ext.ProviderID
	}
	if err := s.commands.Execute(ctx, command.CreateAuthIdentity{
		Identity:  created,
		ProfileID: profiledomain.NewProfileID(),
		FirstName: ext.FirstName,
		LastName:  ext.LastName,
	}); err != nil {
		return nil, err
	}
	return s.waitForIdentity(ctx, created.ID)
}

func (s *AuthService) findByProviderID(ctx context.Context, providerID, providerName string) (*identitydomain.AuthIdentity, error) {
	switch providerName {
	case providerGoogle:
		return s.identities.GetByGoogleID(ctx, providerID)
	case providerApple:
		return s.identities.GetByAppleID(ctx, providerID)
	default:
		return nil, apperr.New(apperr.KindConfiguration, "provider_not_configured", "unknown provider "+providerName)
	}
}

func (s *AuthService) linkProviderID(ctx context.Context, authID, providerID, providerName string) error {
	fields := identityrepo.UpdateFields{}
	switch providerName {
	case providerGoogle:
		fields.GoogleID = &providerID
	case providerApple:
		fields.AppleID = &providerID
	}
	return s.identities.Update(ctx, authID, fields)
}

// backfillProfileNames fills empty profile name fields from provider data.
// A value the user already has is never overwritten. Best-effort.
func (s *AuthService) backfillProfileNames(ctx context.Context, authID string, ext *provider.Identity) {
	if ext.FirstName == "" && ext.LastName == "" {
		return
	}
	profile, err := s.profiles.GetByAuthID(ctx, authID)
	if err != nil || profile == nil {
		return
	}
	fields := profilerepo.UpdateFields{}
	changed := false
	if profile.Name == "" && ext.FirstName != "" {
		fields.Name = &ext.FirstName
		changed = true
	}
	if profile.Lastname == "" && ext.LastName != "" {
		fields.Lastname = &ext.LastName
		changed = true
	}
	if !changed {
		return
	}
	if err := s.profiles.Update(ctx, profile.ID, fields); err != nil {
		log.Printf("auth: profile name backfill for %s failed: %v", authID, err)
	}
}
