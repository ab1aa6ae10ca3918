package provider

import (
	"fmt"
	"time"
)

// State describes a credential's availability.
type State string

const (
	StateAvailable State = "available"
	StateCooling   State = "cooling"
	StateExhausted State = "exhausted"
)

// Credential is one API key bound to a named provider. Priority orders
// providers during selection (lower value first).
type Credential struct {
	Provider string
	Key      string
	Model    string
	Priority int
}

// ID returns a loggable identifier that does not leak the key.
func (c Credential) ID() string {
	tail := c.Key
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return fmt.Sprintf("%s_%s", c.Provider, tail)
}

// credential carries the mutable selection state. All fields below
// Credential are guarded by the pool mutex.
type credential struct {
	Credential

	coolingUntil time.Time
	exhausted    bool
	inFlight     bool
}

// stateAt reports the credential's state for a request issued at now.
// Cooldown expiry is lazy: a credential is available again once now has
// reached its deadline.
func (c *credential) stateAt(now time.Time) State {
	switch {
	case c.exhausted:
		return StateExhausted
	case now.Before(c.coolingUntil):
		return StateCooling
	default:
		return StateAvailable
	}
}
