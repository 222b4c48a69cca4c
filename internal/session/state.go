package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// Rotation controls how often StateTokens mints a new state value
type Rotation string

const (
	// RotationStatic mints one state value per scope and profile and then reuses it
	// for the lifetime of the process
	RotationStatic Rotation = "static"
	// RotationPerLogin mints a new state value every time one is requested, which
	// supersedes the previous value; a value is also consumed once it's been checked
	RotationPerLogin Rotation = "per-login"
)

// ParseRotation converts a config value to a Rotation
func ParseRotation(s string) (Rotation, error) {
	switch Rotation(s) {
	case RotationStatic, RotationPerLogin:
		return Rotation(s), nil
	}
	return "", fmt.Errorf("unsupported state rotation '%s'", s)
}

type slot struct {
	sessionId string
	profile   string
}

func slotFor(scope Scope, profile string) slot {
	return slot{
		sessionId: scope.SessionID(),
		profile:   profile,
	}
}

// StateTokens generates the opaque 'state' values that we send to the identity
// provider with every authorization request, and verifies the values that come back
// to our callback
type StateTokens struct {
	rotation Rotation
	values   map[slot]string
	mu       sync.Mutex

	newValue func() string
}

func NewStateTokens(rotation Rotation) *StateTokens {
	return &StateTokens{
		rotation: rotation,
		values:   make(map[slot]string),
		newValue: generateValue,
	}
}

// Generate returns the state value that the next authorization request should carry
func (s *StateTokens) Generate(scope Scope, profile string) string {
	k := slotFor(scope, profile)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rotation != RotationPerLogin {
		if value, ok := s.values[k]; ok {
			return value
		}
	}
	value := s.newValue()
	s.values[k] = value
	return value
}

// Check returns true iff the presented value is exactly the current state value for
// the given scope and profile
func (s *StateTokens) Check(scope Scope, profile, presented string) bool {
	k := slotFor(scope, profile)

	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[k]
	if !ok || value != presented {
		return false
	}
	if s.rotation == RotationPerLogin {
		delete(s.values, k)
	}
	return true
}

func generateValue() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)
}
