package session

import (
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore holds at most one access token per scope and profile
type TokenStore struct {
	tokens map[slot]*oauth2.Token
	mu     sync.RWMutex
}

func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[slot]*oauth2.Token),
	}
}

// Get returns the stored token, or nil if there is none
func (s *TokenStore) Get(scope Scope, profile string) *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[slotFor(scope, profile)]
}

// Set stores the given token, replacing any existing one. Setting a nil token is
// equivalent to Delete.
func (s *TokenStore) Set(scope Scope, profile string, token *oauth2.Token) {
	if token == nil {
		s.Delete(scope, profile)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[slotFor(scope, profile)] = token
}

// Delete clears the stored token, if any
func (s *TokenStore) Delete(scope Scope, profile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, slotFor(scope, profile))
}
