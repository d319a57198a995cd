// Package saga coordinates the registration flow across the identity and
// profile stores. The saga itself is stateless: each event carries
// everything needed to decide the next command, so any number of saga
// instances can process events concurrently.
package saga

import (
	"context"
	"log"

	"identity-core/internal/command"
	"identity-core/internal/event"
)

// Registration reacts to registration events with follow-up commands:
// a created auth identity gets a profile, and a failed profile creation
// rolls the auth identity back.
type Registration struct {
	commands command.Bus
}

func NewRegistration(commands command.Bus) *Registration {
	return &Registration{commands: commands}
}

// Register subscribes the saga to the event bus.
func (s *Registration) Register(bus event.Bus) {
	bus.Subscribe(s.Handle)
}

// Handle applies the saga rules to one event. Unknown events are ignored so
// the topic can grow without breaking deployed workers.
func (s *Registration) Handle(ctx context.Context, e event.Event) error {
	switch ev := e.(type) {
	case event.AuthIdentityCreated:
		return s.commands.Execute(ctx, command.CreateProfile{
			ProfileID: ev.ProfileID,
			AuthID:    ev.AuthID,
			FirstName: ev.FirstName,
			LastName:  ev.LastName,
			Age:       ev.Age,
		})
	case event.ProfileCreationFailed:
		log.Printf("saga: rolling back auth identity %s: %s", ev.AuthID, ev.Reason)
		return s.commands.Execute(ctx, command.DeleteAuthIdentity{
			AuthID:    ev.AuthID,
			ProfileID: ev.ProfileID,
		})
	default:
		return nil
	}
}
