package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Message(t *testing.T) {
	err := New(KindValidation, "weak_password", "password does not meet strength requirements")
	want := "weak_password: password does not meet strength requirements"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestError_CauseNotInMessage(t *testing.T) {
	cause := errors.New("pq: duplicate key value violates unique constraint")
	err := Wrap(KindConflict, "email_taken", "email is already registered", cause)
	if got := err.Error(); got != "email_taken: email is already registered" {
		t.Errorf("Error() leaks cause: %q", got)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
}

func TestKindOf(t *testing.T) {
	err := New(KindUnauthorized, "invalid_credentials", "invalid credentials")
	if KindOf(err) != KindUnauthorized {
		t.Errorf("KindOf = %v, want KindUnauthorized", KindOf(err))
	}
	wrapped := fmt.Errorf("login: %w", err)
	if KindOf(wrapped) != KindUnauthorized {
		t.Error("KindOf should see through fmt.Errorf wrapping")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("KindOf of unclassified error should be 0")
	}
}

func TestIsKindAndCodeOf(t *testing.T) {
	err := New(KindConfiguration, "platform_not_configured", "no client id configured for platform")
	if !IsKind(err, KindConfiguration) {
		t.Error("IsKind should match")
	}
	if IsKind(err, KindUnauthorized) {
		t.Error("IsKind should not match a different kind")
	}
	if CodeOf(err) != "platform_not_configured" {
		t.Errorf("CodeOf = %q", CodeOf(err))
	}
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		KindValidation:    "validation_error",
		KindNotFound:      "not_found",
		KindUnauthorized:  "unauthorized",
		KindConflict:      "conflict",
		KindConfiguration: "configuration_error",
		KindUnavailable:   "unavailable",
		Kind(0):           "unknown",
	}
	for k, want := range cases {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want)
		}
	}
}
