// Package service implements the identity orchestrator: it coordinates the
// domain rules, the external identity verifiers, the stores, and the token
// provider for registration, login, token rotation, and the OAuth flows.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	"identity-core/internal/apperr"
	"identity-core/internal/audit"
	"identity-core/internal/command"
	identitydomain "identity-core/internal/identity/domain"
	identityrepo "identity-core/internal/identity/repository"
	profiledomain "identity-core/internal/profile/domain"
	profilerepo "identity-core/internal/profile/repository"
	"identity-core/internal/provider"
	"identity-core/internal/security"
)

// TokenPair is an issued access+refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// AuthResult is the outcome of an operation that establishes a session.
// Profile may be nil right after registration: its creation is eventual.
type AuthResult struct {
	TokenPair
	AuthID  string
	Profile *profiledomain.Profile
}

// GoogleVerifier is the slice of the Google provider the orchestrator needs.
type GoogleVerifier interface {
	ClientIDFor(platform identitydomain.Platform) string
	VerifyIDToken(ctx context.Context, rawToken string, platform identitydomain.Platform) (*provider.Identity, error)
	ExchangeCode(ctx context.Context, code, codeVerifier string, platform identitydomain.Platform) (*provider.Identity, error)
	WebAuthCodeURL(state string) (string, error)
	ExchangeWebCode(ctx context.Context, code string) (*provider.Identity, error)
}

// AppleVerifier is the slice of the Apple provider the orchestrator needs.
type AppleVerifier interface {
	ClientIDFor(platform identitydomain.Platform) string
	VerifyIDToken(ctx context.Context, rawToken string, platform identitydomain.Platform) (*provider.Identity, error)
	ExchangeCode(ctx context.Context, code, codeVerifier string, platform identitydomain.Platform) (*provider.Identity, error)
}

// StateStore issues and consumes the one-time CSRF state of the web flow.
type StateStore interface {
	Issue(ctx context.Context, ttl time.Duration) (string, error)
	Consume(ctx context.Context, state string) bool
}

// AuthService coordinates registration, login, token rotation, and OAuth.
type AuthService struct {
	identities identityrepo.Repository
	profiles   profilerepo.Repository
	commands   command.Bus
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	google     GoogleVerifier
	apple      AppleVerifier
	states     StateStore
	audit      audit.AuditLogger

	visibilityTimeout time.Duration
	pollInterval      time.Duration
	stateTTL          time.Duration
}

// NewAuthService returns an AuthService with the given dependencies.
// google, apple, and states may be nil when the matching flows are disabled.
func NewAuthService(
	identities identityrepo.Repository,
	profiles profilerepo.Repository,
	commands command.Bus,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	google GoogleVerifier,
	apple AppleVerifier,
	states StateStore,
	auditLogger audit.AuditLogger,
	visibilityTimeout time.Duration,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &AuthService{
		identities:        identities,
		profiles:          profiles,
		commands:          commands,
		hasher:            hasher,
		tokens:            tokens,
		google:            google,
		apple:             apple,
		states:            states,
		audit:             auditLogger,
		visibilityTimeout: visibilityTimeout,
		pollInterval:      50 * time.Millisecond,
		stateTTL:          10 * time.Minute,
	}
}

// Register creates an auth identity and, through the saga, its profile.
// It blocks until the identity is visible (bounded) and returns a session.
// The profile in the result may still be nil: its creation is eventual.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string, age int) (*AuthResult, error) {
	email = identitydomain.NormalizeEmail(email)
	if err := identitydomain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := identitydomain.ValidatePassword(password); err != nil {
		return nil, err
	}
	existing, err := s.identities.GetByEmail(ctx, email, false)
	if err != nil {
		return nil, err
	}
	if err := identitydomain.CanCreate(existing); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	identity := &identitydomain.AuthIdentity{
		ID:           identitydomain.NewAuthID(),
		Email:        email,
		PasswordHash: hashed,
		Roles:        []identitydomain.Role{identitydomain.RoleUser},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profileID := profiledomain.NewProfileID()

	if err := s.commands.Execute(ctx, command.CreateAuthIdentity{
		Identity:  identity,
		ProfileID: profileID,
		FirstName: firstName,
		LastName:  lastName,
		Age:       age,
	}); err != nil {
		return nil, err
	}

	visible, err := s.waitForIdentity(ctx, identity.ID)
	if err != nil {
		return nil, err
	}

	pair, err := s.issueSession(ctx, visible)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByAuthID(ctx, identity.ID)
	if err != nil {
		log.Printf("auth: register %s: profile fetch failed: %v", identity.ID, err)
		profile = nil
	}
	s.audit.LogEvent(ctx, identity.ID, audit.ActionRegister, "auth_identity", "provider=password")
	return &AuthResult{TokenPair: *pair, AuthID: identity.ID, Profile: profile}, nil
}

// Login authenticates an email/password pair and returns a fresh session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = identitydomain.NormalizeEmail(email)
	if err := identitydomain.ValidateEmail(email); err != nil {
		return nil, err
	}
	identity, err := s.identities.GetByEmail(ctx, email, true)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, apperr.New(apperr.KindNotFound, "identity_not_found", "no account exists for this email")
	}
	if identity.PasswordHash == "" {
		// Provider-only account; it has no password to check.
		s.audit.LogEvent(ctx, identity.ID, audit.ActionLoginFailure, "auth_identity", "email="+email)
		return nil, apperr.New(apperr.KindUnauthorized, "invalid_credentials", "email or password is incorrect")
	}
	if err := s.hasher.Compare(identity.PasswordHash, []byte(password)); err != nil {
		s.audit.LogEvent(ctx, identity.ID, audit.ActionLoginFailure, "auth_identity", "email="+email)
		return nil, apperr.New(apperr.KindUnauthorized, "invalid_credentials", "email or password is incorrect")
	}

	pair, err := s.issueSession(ctx, identity)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.GetByAuthID(ctx, identity.ID)
	if err != nil {
		log.Printf("auth: login %s: profile fetch failed: %v", identity.ID, err)
		profile = nil
	}
	s.audit.LogEvent(ctx, identity.ID, audit.ActionLogin, "auth_identity", "provider=password")
	return &AuthResult{TokenPair: *pair, AuthID: identity.ID, Profile: profile}, nil
}

// RefreshToken rotates a refresh token: the presented token must match the
// persisted hash, and the newly issued token replaces it, so each refresh
// token is usable exactly once.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResult, error) {
	authID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid_token", "refresh token is invalid or expired")
	}
	identity, err := s.identities.GetByID(ctx, authID, true)
	if err != nil {
		return nil, err
	}
	if identity == nil || identity.RefreshTokenHash == "" {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid_token", "refresh token is invalid or expired")
	}
	if !security.RefreshTokenHashEqual(refreshToken, identity.RefreshTokenHash) {
		return nil, apperr.New(apperr.KindUnauthorized, "invalid_token", "refresh token is invalid or expired")
	}

	pair, err := s.issueSession(ctx, identity)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, identity.ID, audit.ActionRefresh, "auth_identity", "")
	return &AuthResult{TokenPair: *pair, AuthID: identity.ID}, nil
}

// Logout clears the stored refresh-token hash. Idempotent: logging out an
// already logged-out or unknown identity succeeds.
func (s *AuthService) Logout(ctx context.Context, authID string) error {
	if err := s.identities.ClearRefreshToken(ctx, authID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, authID, audit.ActionLogout, "auth_identity", "")
	return nil
}

// ChangePassword verifies the old password, stores the new hash, and clears
// the refresh-token hash so every device has to log in again.
func (s *AuthService) ChangePassword(ctx context.Context, authID, oldPassword, newPassword string) error {
	if err := identitydomain.ValidatePasswordChange(oldPassword, newPassword); err != nil {
		return err
	}
	identity, err := s.identities.GetByID(ctx, authID, true)
	if err != nil {
		return err
	}
	if identity == nil {
		return apperr.New(apperr.KindNotFound, "identity_not_found", "auth identity not found")
	}
	if identity.PasswordHash == "" {
		return apperr.New(apperr.KindUnauthorized, "invalid_credentials", "password is incorrect")
	}
	if err := s.hasher.Compare(identity.PasswordHash, []byte(oldPassword)); err != nil {
		return apperr.New(apperr.KindUnauthorized, "invalid_credentials", "password is incorrect")
	}
	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePasswordHash(ctx, authID, hashed); err != nil {
		return err
	}
	if err := s.identities.ClearRefreshToken(ctx, authID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, authID, audit.ActionPasswordChange, "auth_identity", "")
	return nil
}

// DeleteByAuthID removes an identity and its profile in one deletion
// command. Both must exist, and the requester must be the owner or an admin.
func (s *AuthService) DeleteByAuthID(ctx context.Context, authID, requesterID string, isAdmin bool) error {
	identity, err := s.identities.GetByID(ctx, authID, false)
	if err != nil {
		return err
	}
	if identity == nil {
		return apperr.New(apperr.KindNotFound, "identity_not_found", "auth identity not found")
	}
	if err := identitydomain.CanDelete(identity, requesterID, isAdmin); err != nil {
		return err
	}
	profile, err := s.profiles.GetByAuthID(ctx, authID)
	if err != nil {
		return err
	}
	if profile == nil {
		return apperr.New(apperr.KindNotFound, "profile_not_found", "profile not found")
	}
	if err := s.commands.Execute(ctx, command.DeleteAuthIdentity{AuthID: authID, ProfileID: profile.ID}); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, authID, audit.ActionDelete, "auth_identity", "requester="+requesterID)
	return nil
}

// issueSession issues an access+refresh pair, persists the refresh-token
// hash (overwriting any previous one), and stamps lastLoginAt.
func (s *AuthService) issueSession(ctx context.Context, identity *identitydomain.AuthIdentity) (*TokenPair, error) {
	access, expiresAt, err := s.tokens.IssueAccess(identity.ID, identity.Email, roleStrings(identity.Roles))
	if err != nil {
		return nil, err
	}
	refresh, _, err := s.tokens.IssueRefresh(identity.ID)
	if err != nil {
		return nil, err
	}
	if err := s.identities.UpdateRefreshTokenHash(ctx, identity.ID, security.HashRefreshToken(refresh)); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.identities.Update(ctx, identity.ID, identityrepo.UpdateFields{LastLoginAt: &now}); err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt}, nil
}

// waitForIdentity polls until the created identity is readable. Creation
// goes through the command bus, which may be asynchronous relative to store
// visibility, so the wait is bounded rather than assumed instant. A rollback
// by the saga during the wait surfaces as a conflict.
func (s *AuthService) waitForIdentity(ctx context.Context, authID string) (*identitydomain.AuthIdentity, error) {
	deadline := time.Now().Add(s.visibilityTimeout)
	for {
		identity, err := s.identities.GetByID(ctx, authID, false)
		if err != nil {
			return nil, err
		}
		if identity != nil {
			return identity, nil
		}
		if time.Now().After(deadline) {
			return nil, apperr.New(apperr.KindUnavailable, "registration_timeout",
				"registration did not complete in time; please retry")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func roleStrings(roles []identitydomain.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

// mapProviderError translates verifier failures into the stable error
// vocabulary. Audience mismatches keep their own code so a misconfigured
// client id is diagnosable without logging the token.
func mapProviderError(err error, providerName string, platform identitydomain.Platform) error {
	code := "invalid_provider_token"
	kind := apperr.KindUnauthorized
	switch {
	case errors.Is(err, provider.ErrNotConfigured):
		return apperr.New(apperr.KindConfiguration, "provider_not_configured",
			fmt.Sprintf("%s sign-in is not configured for platform %q", providerName, platform))
	case errors.Is(err, provider.ErrKeySetUnavailable), errors.Is(err, provider.ErrProviderUnavailable), isTransportError(err):
		return apperr.New(apperr.KindUnavailable, "provider_unavailable",
			fmt.Sprintf("%s is unreachable", providerName))
	case errors.Is(err, provider.ErrAudienceInvalid):
		code = "audience_mismatch"
	case errors.Is(err, provider.ErrTokenExpired):
		code = "token_expired"
	case errors.Is(err, provider.ErrInvalidTokenFormat):
		code = "invalid_token_format"
	case errors.Is(err, provider.ErrSignatureInvalid):
		code = "signature_invalid"
	case errors.Is(err, provider.ErrIssuerInvalid):
		code = "issuer_invalid"
	case errors.Is(err, provider.ErrMissingClaims):
		code = "missing_claims"
	case errors.Is(err, provider.ErrNoMatchingKey):
		code = "no_matching_key"
	}
	log.Printf("auth: %s verification failed (platform=%s): %s", providerName, platform, code)
	return apperr.New(kind, code, fmt.Sprintf("%s credential verification failed", providerName))
}

// isTransportError reports whether err is a network failure the verifiers
// did not already classify. An outage must never look like a rejected
// credential.
func isTransportError(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr)
}
