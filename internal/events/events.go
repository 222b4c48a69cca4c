// Package events publishes a record of every authentication-related action (logins,
// rejected callbacks, logouts, and changes to the user list) so that other services
// can audit or react to them.
package events

import (
	"context"
	"time"
)

type Type string

const (
	TypeLogin         Type = "login"
	TypeLoginRejected Type = "login_rejected"
	TypeLogout        Type = "logout"
	TypeUserAdded     Type = "user_added"
	TypeUserRemoved   Type = "user_removed"
)

// Event is the JSON payload of a single published message
type Event struct {
	Type      Type      `json:"type"`
	Profile   string    `json:"profile,omitempty"`
	Session   string    `json:"session,omitempty"`
	User      string    `json:"user,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New returns an event of the given type, timestamped now
func New(t Type, profile, sessionId string) Event {
	return Event{
		Type:      t,
		Profile:   profile,
		Session:   sessionId,
		Timestamp: time.Now().UTC(),
	}
}

// WithUser returns a copy of the event that names the affected user record
func (ev Event) WithUser(name string) Event {
	ev.User = name
	return ev
}

// Producer sends events to interested consumers. Failure to send an event should be
// logged by the caller, but should never fail the request that triggered it.
type Producer interface {
	Send(ctx context.Context, ev Event) error
}

type discard struct{}

func (discard) Send(ctx context.Context, ev Event) error {
	return nil
}

// Discard is a Producer that drops all events
var Discard Producer = discard{}
