package domain

import (
	"strings"
	"testing"
)

func TestNewProfileID(t *testing.T) {
	id := NewProfileID()
	if !strings.HasPrefix(id, "profile-") {
		t.Errorf("NewProfileID = %q, want profile- prefix", id)
	}
	if id == NewProfileID() {
		t.Error("NewProfileID should be unique")
	}
}

func TestProfile_Validate(t *testing.T) {
	p := &Profile{ID: "profile-1", AuthID: "auth-1", Name: "Ada", Lastname: "Lovelace", Age: 36}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	cases := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"missing auth id", func(p *Profile) { p.AuthID = "" }},
		{"negative age", func(p *Profile) { p.Age = -1 }},
		{"absurd age", func(p *Profile) { p.Age = 200 }},
		{"name too long", func(p *Profile) { p.Name = strings.Repeat("x", 101) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bad := *p
			tc.mutate(&bad)
			if err := bad.Validate(); err == nil {
				t.Error("Validate should fail")
			}
		})
	}
}

func TestCanUpdate(t *testing.T) {
	p := &Profile{ID: "profile-1", AuthID: "auth-1"}
	if err := CanUpdate(p, "auth-1", false); err != nil {
		t.Errorf("owner update: %v", err)
	}
	if err := CanUpdate(p, "auth-2", true); err != nil {
		t.Errorf("admin update: %v", err)
	}
	if err := CanUpdate(p, "auth-2", false); err == nil {
		t.Error("stranger update should fail")
	}
}
