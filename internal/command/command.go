// Package command defines the registration commands and the dispatcher that
// routes them to handlers. Commands are the only way the orchestrator and the
// saga mutate the identity and profile stores during registration, so the
// whole flow stays replayable over the same three operations.
package command

import (
	"context"
	"fmt"
	"sync"

	identitydomain "identity-core/internal/identity/domain"
)

// Command is a request to change state.
type Command interface {
	CommandName() string
}

const (
	NameCreateAuthIdentity = "auth_identity.create"
	NameCreateProfile      = "profile.create"
	NameDeleteAuthIdentity = "auth_identity.delete"
)

// CreateAuthIdentity stores a fully prepared auth identity and announces it.
// ProfileID and the profile fields travel with the command so the
// announcement carries everything the saga needs.
type CreateAuthIdentity struct {
	Identity  *identitydomain.AuthIdentity
	ProfileID string
	FirstName string
	LastName  string
	Age       int
}

func (CreateAuthIdentity) CommandName() string { return NameCreateAuthIdentity }

// CreateProfile creates the profile belonging to a freshly created auth
// identity.
type CreateProfile struct {
	ProfileID string
	AuthID    string
	FirstName string
	LastName  string
	Age       int
}

func (CreateProfile) CommandName() string { return NameCreateProfile }

// DeleteAuthIdentity removes an auth identity (and its profile, if any). It
// serves both the compensation path and the user-initiated delete.
type DeleteAuthIdentity struct {
	AuthID    string
	ProfileID string
}

func (DeleteAuthIdentity) CommandName() string { return NameDeleteAuthIdentity }

// Bus executes commands.
type Bus interface {
	Execute(ctx context.Context, cmd Command) error
}

// HandlerFunc processes one command.
type HandlerFunc func(ctx context.Context, cmd Command) error

// Dispatcher routes commands to registered handlers by name.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

func (d *Dispatcher) Register(name string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = h
}

func (d *Dispatcher) Execute(ctx context.Context, cmd Command) error {
	d.mu.RLock()
	h, ok := d.handlers[cmd.CommandName()]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for command %q", cmd.CommandName())
	}
	return h(ctx, cmd)
}
