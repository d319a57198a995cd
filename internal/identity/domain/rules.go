package domain

import (
	"regexp"
	"strings"

	"identity-core/internal/apperr"
)

// Pure validation and decision rules for the auth aggregate. No I/O; errors
// only ever signal the described condition.

// Platform is a mobile OAuth target platform.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail lowercases and trims an email address. Lookups and the
// uniqueness constraint are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	if email == "" {
		return apperr.New(apperr.KindValidation, "email_required", "email is required")
	}
	if !emailRe.MatchString(email) {
		return apperr.New(apperr.KindValidation, "invalid_email", "invalid email format")
	}
	return nil
}

// ValidatePassword checks password strength: at least 8 characters with an
// uppercase letter, a lowercase letter, and a digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return apperr.New(apperr.KindValidation, "weak_password", "password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return apperr.New(apperr.KindValidation, "weak_password", "password must contain upper and lower case letters and a digit")
	}
	return nil
}

// ValidatePasswordChange checks the new password's strength and that it
// differs from the old one. Both are plaintext; the comparison happens before
// any hashing.
func ValidatePasswordChange(oldPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	if newPassword == oldPassword {
		return apperr.New(apperr.KindValidation, "password_unchanged", "new password must differ from the old password")
	}
	return nil
}

// CanCreate reports whether a new identity may be created given the existing
// identity for the same email (nil when none).
func CanCreate(existing *AuthIdentity) error {
	if existing != nil {
		return apperr.New(apperr.KindConflict, "email_taken", "user with this email already exists")
	}
	return nil
}

// CanDelete reports whether requester may delete the given identity: either
// the identity is the requester's own, or the requester is an admin.
func CanDelete(identity *AuthIdentity, requesterID string, requesterIsAdmin bool) error {
	if identity.ID == requesterID || requesterIsAdmin {
		return nil
	}
	return apperr.New(apperr.KindUnauthorized, "delete_forbidden", "only the account owner or an admin may delete this account")
}

// MobileOAuthData is the credential payload of a mobile OAuth request:
// exactly one of IDToken or Code must be set.
type MobileOAuthData struct {
	IDToken      string
	Code         string
	CodeVerifier string
	Platform     Platform
}

// ValidateMobileOAuthData checks the credential-mode shape of a mobile OAuth
// request. Both-present and neither-present are distinct failures; a code
// without its PKCE verifier is rejected; the platform must be supported.
func ValidateMobileOAuthData(data MobileOAuthData) error {
	if data.IDToken != "" && data.Code != "" {
		return apperr.New(apperr.KindValidation, "ambiguous_credential", "provide either an id token or an authorization code, not both")
	}
	if data.IDToken == "" && data.Code == "" {
		return apperr.New(apperr.KindValidation, "missing_credential", "either an id token or an authorization code is required")
	}
	if data.Code != "" {
		if data.CodeVerifier == "" {
			return apperr.New(apperr.KindValidation, "missing_code_verifier", "code_verifier is required with an authorization code")
		}
		if err := ValidateCodeVerifier(data.CodeVerifier); err != nil {
			return err
		}
	}
	switch data.Platform {
	case PlatformIOS, PlatformAndroid:
	default:
		return apperr.New(apperr.KindValidation, "unsupported_platform", "platform must be ios or android")
	}
	return nil
}

// ValidateCodeVerifier checks the PKCE code verifier format per RFC 7636:
// 43–128 characters from [A-Za-z0-9-._~].
func ValidateCodeVerifier(verifier string) error {
	if len(verifier) < 43 || len(verifier) > 128 {
		return apperr.New(apperr.KindValidation, "invalid_code_verifier", "code_verifier must be 43 to 128 characters")
	}
	for _, r := range verifier {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '.' || r == '_' || r == '~':
		default:
			return apperr.New(apperr.KindValidation, "invalid_code_verifier", "code_verifier contains invalid characters")
		}
	}
	return nil
}
