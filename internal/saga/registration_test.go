package saga

import (
	"context"
	"testing"
	"time"

	"identity-core/internal/command"
	"identity-core/internal/event"
	identitydomain "identity-core/internal/identity/domain"
	identityrepo "identity-core/internal/identity/repository"
	profilerepo "identity-core/internal/profile/repository"
)

// newFlow wires a full in-process registration flow: memory stores, command
// dispatcher, synchronous event bus, and the saga subscribed to it.
func newFlow(t *testing.T) (*identityrepo.Memory, *profilerepo.Memory, *command.Dispatcher, *event.MemoryBus) {
	t.Helper()
	identities := identityrepo.NewMemory()
	profiles := profilerepo.NewMemory()
	bus := event.NewMemoryBus()
	dispatcher := command.NewDispatcher()
	command.NewHandlers(identities, profiles, bus).RegisterAll(dispatcher)
	NewRegistration(dispatcher).Register(bus)
	return identities, profiles, dispatcher, bus
}

func seedIdentity(id, email string) *identitydomain.AuthIdentity {
	now := time.Now().UTC()
	return &identitydomain.AuthIdentity{
		ID:        id,
		Email:     email,
		Roles:     []identitydomain.Role{identitydomain.RoleUser},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRegistrationCreatesProfileAfterIdentity(t *testing.T) {
	ctx := context.Background()
	identities, profiles, dispatcher, _ := newFlow(t)

	err := dispatcher.Execute(ctx, command.CreateAuthIdentity{
		Identity:  seedIdentity("auth-1", "ada@example.com"),
		ProfileID: "profile-1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Age:       36,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	a, err := identities.GetByID(ctx, "auth-1", false)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a == nil {
		t.Fatal("identity missing after registration")
	}
	p, err := profiles.GetByAuthID(ctx, "auth-1")
	if err != nil {
		t.Fatalf("GetByAuthID: %v", err)
	}
	if p == nil {
		t.Fatal("profile missing after registration")
	}
	if p.ID != "profile-1" || p.Name != "Ada" || p.Lastname != "Lovelace" || p.Age != 36 {
		t.Errorf("profile = %#v, want fields from the registration", p)
	}
}

func TestRegistrationCompensatesWhenProfileFails(t *testing.T) {
	ctx := context.Background()
	identities, profiles, dispatcher, _ := newFlow(t)
	profiles.FailCreate = true

	err := dispatcher.Execute(ctx, command.CreateAuthIdentity{
		Identity:  seedIdentity("auth-1", "ada@example.com"),
		ProfileID: "profile-1",
		FirstName: "Ada",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	a, err := identities.GetByID(ctx, "auth-1", false)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a != nil {
		t.Error("identity still visible after compensation")
	}
	if p, _ := profiles.GetByAuthID(ctx, "auth-1"); p != nil {
		t.Error("profile present despite forced failure")
	}
}

func TestRegistrationCompensationFreesEmailForRetry(t *testing.T) {
	ctx := context.Background()
	identities, profiles, dispatcher, _ := newFlow(t)

	profiles.FailCreate = true
	if err := dispatcher.Execute(ctx, command.CreateAuthIdentity{
		Identity:  seedIdentity("auth-1", "ada@example.com"),
		ProfileID: "profile-1",
	}); err != nil {
		t.Fatalf("first attempt: %v", err)
	}

	profiles.FailCreate = false
	if err := dispatcher.Execute(ctx, command.CreateAuthIdentity{
		Identity:  seedIdentity("auth-2", "ada@example.com"),
		ProfileID: "profile-2",
	}); err != nil {
		t.Fatalf("retry after compensation: %v", err)
	}

	a, err := identities.GetByEmail(ctx, "ada@example.com", false)
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if a == nil || a.ID != "auth-2" {
		t.Fatalf("identity = %#v, want the retried auth-2", a)
	}
}

func TestHandleIgnoresUnknownEvents(t *testing.T) {
	s := NewRegistration(command.NewDispatcher())
	if err := s.Handle(context.Background(), unknownEvent{}); err != nil {
		t.Fatalf("unknown event should be ignored, got %v", err)
	}
}

type unknownEvent struct{}

func (unknownEvent) EventName() string { return "something.else" }
