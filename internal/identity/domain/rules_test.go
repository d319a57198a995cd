package domain

import (
	"strings"
	"testing"

	"identity-core/internal/apperr"
)

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@b.com", "user.name+tag@example.co.uk", "A@B.IO"}
	for _, e := range valid {
		if err := ValidateEmail(e); err != nil {
			t.Errorf("ValidateEmail(%q) = %v, want nil", e, err)
		}
	}
	invalid := []string{"", "bad-email", "a@b", "@b.com", "a b@c.com"}
	for _, e := range invalid {
		err := ValidateEmail(e)
		if err == nil {
			t.Errorf("ValidateEmail(%q) should fail", e)
			continue
		}
		if !apperr.IsKind(err, apperr.KindValidation) {
			t.Errorf("ValidateEmail(%q) kind = %v, want validation", e, apperr.KindOf(err))
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@B.Com "); got != "a@b.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestValidatePassword(t *testing.T) {
	valid := []string{"Secret123", "Abcdefg1", "xY9xxxxxxxxxxxxx"}
	for _, p := range valid {
		if err := ValidatePassword(p); err != nil {
			t.Errorf("ValidatePassword(%q) = %v, want nil", p, err)
		}
	}
	invalid := []string{"", "Short1a", "nouppercase1", "NOLOWERCASE1", "NoDigitsHere"}
	for _, p := range invalid {
		if err := ValidatePassword(p); err == nil {
			t.Errorf("ValidatePassword(%q) should fail", p)
		}
	}
}

func TestValidatePasswordChange(t *testing.T) {
	if err := ValidatePasswordChange("Old12345", "New12345"); err != nil {
		t.Fatalf("valid change: %v", err)
	}
	err := ValidatePasswordChange("Same1234", "Same1234")
	if err == nil {
		t.Fatal("new == old should fail")
	}
	if apperr.CodeOf(err) != "password_unchanged" {
		t.Errorf("code = %q, want password_unchanged", apperr.CodeOf(err))
	}
	if err := ValidatePasswordChange("Old12345", "weak"); err == nil {
		t.Error("weak new password should fail")
	}
}

func TestCanCreate(t *testing.T) {
	if err := CanCreate(nil); err != nil {
		t.Errorf("CanCreate(nil) = %v, want nil", err)
	}
	err := CanCreate(&AuthIdentity{ID: "auth-1"})
	if err == nil {
		t.Fatal("CanCreate with existing identity should fail")
	}
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Errorf("kind = %v, want conflict", apperr.KindOf(err))
	}
}

func TestCanDelete(t *testing.T) {
	identity := &AuthIdentity{ID: "auth-1"}
	if err := CanDelete(identity, "auth-1", false); err != nil {
		t.Errorf("owner delete: %v", err)
	}
	if err := CanDelete(identity, "auth-2", true); err != nil {
		t.Errorf("admin delete: %v", err)
	}
	if err := CanDelete(identity, "auth-2", false); err == nil {
		t.Error("stranger delete should fail")
	}
}

func TestValidateMobileOAuthData_DistinctModes(t *testing.T) {
	verifier := strings.Repeat("a", 43)

	both := ValidateMobileOAuthData(MobileOAuthData{IDToken: "t", Code: "c", CodeVerifier: verifier, Platform: PlatformIOS})
	if both == nil {
		t.Fatal("both modes should fail")
	}
	neither := ValidateMobileOAuthData(MobileOAuthData{Platform: PlatformIOS})
	if neither == nil {
		t.Fatal("neither mode should fail")
	}
	if both.Error() == neither.Error() {
		t.Error("both-present and neither-present must have distinct messages")
	}
	if apperr.CodeOf(both) == apperr.CodeOf(neither) {
		t.Error("both-present and neither-present must have distinct codes")
	}
}

func TestValidateMobileOAuthData(t *testing.T) {
	verifier := strings.Repeat("a", 43)
	if err := ValidateMobileOAuthData(MobileOAuthData{IDToken: "t", Platform: PlatformIOS}); err != nil {
		t.Errorf("id token mode: %v", err)
	}
	if err := ValidateMobileOAuthData(MobileOAuthData{Code: "c", CodeVerifier: verifier, Platform: PlatformAndroid}); err != nil {
		t.Errorf("code mode: %v", err)
	}
	err := ValidateMobileOAuthData(MobileOAuthData{Code: "c", Platform: PlatformIOS})
	if apperr.CodeOf(err) != "missing_code_verifier" {
		t.Errorf("code without verifier: code = %q", apperr.CodeOf(err))
	}
	err = ValidateMobileOAuthData(MobileOAuthData{IDToken: "t", Platform: "web"})
	if apperr.CodeOf(err) != "unsupported_platform" {
		t.Errorf("bad platform: code = %q", apperr.CodeOf(err))
	}
}

func TestValidateCodeVerifier(t *testing.T) {
	charset := "ABCXYZabcxyz0189-._~"
	min := strings.Repeat("a", 43)
	max := strings.Repeat(charset, 7)[:128]
	if err := ValidateCodeVerifier(min); err != nil {
		t.Errorf("43-char verifier: %v", err)
	}
	if err := ValidateCodeVerifier(max); err != nil {
		t.Errorf("128-char verifier: %v", err)
	}
	if err := ValidateCodeVerifier(strings.Repeat("a", 42)); err == nil {
		t.Error("42-char verifier should fail")
	}
	if err := ValidateCodeVerifier(strings.Repeat("a", 129)); err == nil {
		t.Error("129-char verifier should fail")
	}
	if err := ValidateCodeVerifier(strings.Repeat("a", 42) + "+"); err == nil {
		t.Error("verifier containing + should fail")
	}
}

func TestHasRoleAndIsAdmin(t *testing.T) {
	a := &AuthIdentity{Roles: []Role{RoleUser}}
	if !a.HasRole(RoleUser) || a.IsAdmin() {
		t.Error("USER-only identity: HasRole(USER) true, IsAdmin false")
	}
	a.Roles = append(a.Roles, RoleAdmin)
	if !a.IsAdmin() {
		t.Error("identity with ADMIN role should be admin")
	}
}

func TestNewAuthID(t *testing.T) {
	id := NewAuthID()
	if !strings.HasPrefix(id, "auth-") {
		t.Errorf("NewAuthID = %q, want auth- prefix", id)
	}
	if id == NewAuthID() {
		t.Error("NewAuthID should be unique")
	}
}
