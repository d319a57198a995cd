package command

import (
	"context"
	"fmt"
	"time"

	"identity-core/internal/event"
	identityrepo "identity-core/internal/identity/repository"
	profiledomain "identity-core/internal/profile/domain"
	profilerepo "identity-core/internal/profile/repository"
)

// Handlers binds the registration commands to the identity and profile
// stores and to the event bus.
type Handlers struct {
	identities identityrepo.Repository
	profiles   profilerepo.Repository
	events     event.Bus
}

func NewHandlers(identities identityrepo.Repository, profiles profilerepo.Repository, events event.Bus) *Handlers {
	return &Handlers{identities: identities, profiles: profiles, events: events}
}

// RegisterAll wires every registration command into the dispatcher.
func (h *Handlers) RegisterAll(d *Dispatcher) {
	d.Register(NameCreateAuthIdentity, h.HandleCreateAuthIdentity)
	d.Register(NameCreateProfile, h.HandleCreateProfile)
	d.Register(NameDeleteAuthIdentity, h.HandleDeleteAuthIdentity)
}

// HandleCreateAuthIdentity stores the identity and publishes
// AuthIdentityCreated. The event is published only after the row is durable,
// so a consumer never reacts to an identity that does not exist.
func (h *Handlers) HandleCreateAuthIdentity(ctx context.Context, cmd Command) error {
	c, ok := cmd.(CreateAuthIdentity)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}
	if err := h.identities.Create(ctx, c.Identity); err != nil {
		return err
	}
	return h.events.Publish(ctx, event.AuthIdentityCreated{
		AuthID:    c.Identity.ID,
		ProfileID: c.ProfileID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Age:       c.Age,
	})
}

// HandleCreateProfile creates the profile for a newly registered identity.
// A store rejection is not an error for the caller: it is announced as
// ProfileCreationFailed so the compensation can run.
func (h *Handlers) HandleCreateProfile(ctx context.Context, cmd Command) error {
	c, ok := cmd.(CreateProfile)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}
	now := time.Now().UTC()
	p := &profiledomain.Profile{
		ID:        c.ProfileID,
		AuthID:    c.AuthID,
		Name:      c.FirstName,
		Lastname:  c.LastName,
		Age:       c.Age,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := p.Validate()
	if err == nil {
		err = h.profiles.Create(ctx, p)
	}
	if err == nil {
		return nil
	}
	return h.events.Publish(ctx, event.ProfileCreationFailed{
		AuthID:    c.AuthID,
		ProfileID: c.ProfileID,
		Reason:    err.Error(),
	})
}

// HandleDeleteAuthIdentity removes the profile and soft-deletes the
// identity. Both deletes are idempotent, so replayed compensations are
// harmless.
func (h *Handlers) HandleDeleteAuthIdentity(ctx context.Context, cmd Command) error {
	c, ok := cmd.(DeleteAuthIdentity)
	if !ok {
		return fmt.Errorf("unexpected command type %T", cmd)
	}
	if c.ProfileID != "" {
		if err := h.profiles.Delete(ctx, c.ProfileID); err != nil {
			return err
		}
	} else if p, err := h.profiles.GetByAuthID(ctx, c.AuthID); err != nil {
		return err
	} else if p != nil {
		if err := h.profiles.Delete(ctx, p.ID); err != nil {
			return err
		}
	}
	return h.identities.SoftDelete(ctx, c.AuthID)
}
