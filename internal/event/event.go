// Package event defines the registration domain events and the bus that
// carries them to the saga. Events are transient: published by command
// handlers, owned by the messaging substrate until delivery, and consumed
// only by the registration saga.
package event

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event is a domain event.
type Event interface {
	EventName() string
}

const (
	NameAuthIdentityCreated   = "auth_identity.created"
	NameProfileCreationFailed = "profile.creation_failed"
)

// AuthIdentityCreated is published after an auth identity is durably stored.
// The saga reacts by issuing the profile-creation command.
type AuthIdentityCreated struct {
	AuthID    string `json:"authId"`
	ProfileID string `json:"profileId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
}

func (AuthIdentityCreated) EventName() string { return NameAuthIdentityCreated }

// ProfileCreationFailed is published when the profile store rejects the
// creation. The saga reacts with the compensating auth-identity delete.
type ProfileCreationFailed struct {
	AuthID    string `json:"authId"`
	ProfileID string `json:"profileId"`
	Reason    string `json:"reason"`
}

func (ProfileCreationFailed) EventName() string { return NameProfileCreationFailed }

// Handler processes one delivered event. A non-nil error tells the transport
// not to acknowledge the delivery, so the event is retried (at-least-once).
type Handler func(ctx context.Context, e Event) error

// Bus publishes events and delivers them to subscribed handlers at least once.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(h Handler)
}

// envelope is the wire form of an event.
type envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Marshal encodes an event for transport.
func Marshal(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Name: e.EventName(), Payload: payload})
}

// Unmarshal decodes a transported event by its envelope name.
func Unmarshal(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding event envelope: %w", err)
	}
	switch env.Name {
	case NameAuthIdentityCreated:
		var e AuthIdentityCreated
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", env.Name, err)
		}
		return e, nil
	case NameProfileCreationFailed:
		var e ProfileCreationFailed
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", env.Name, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event %q", env.Name)
	}
}
