package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// Scope identifies the slot that auth state is stored under. It exposes only a session
// ID, never the request it was resolved from.
type Scope interface {
	SessionID() string
}

type sessionId string

func (id sessionId) SessionID() string {
	return string(id)
}

// NewScope returns the Scope with the given session ID
func NewScope(id string) Scope {
	return sessionId(id)
}

// Global is the scope shared by all requests when sessions are not isolated
var Global = NewScope("global")

// Keyer resolves the Scope for an incoming request. It may write to the response (e.g.
// to issue a session cookie), so it must be called before the response body is written.
type Keyer interface {
	Scope(res http.ResponseWriter, req *http.Request) (Scope, error)
}

// GlobalKeyer resolves every request to the Global scope
type GlobalKeyer struct{}

func (GlobalKeyer) Scope(res http.ResponseWriter, req *http.Request) (Scope, error) {
	return Global, nil
}

const sessionIdKey = "sid"

// CookieKeyer resolves each browser to its own scope, using a random session ID that's
// stored in a cookie managed by gorilla/sessions
type CookieKeyer struct {
	name  string
	store *sessions.CookieStore
}

// ErrInvalidEncryptionKey is returned when a cookie encryption key is not a valid AES
// key
var ErrInvalidEncryptionKey = errors.New("cookie encryption key must be 16, 24, or 32 bytes")

// NewCookieKeyer initializes a CookieKeyer that issues cookies with the given name.
// If signingKey is empty, random keys are generated, which means that sessions will
// not survive a restart. An empty encryptionKey leaves cookies signed but unencrypted.
func NewCookieKeyer(name string, signingKey, encryptionKey []byte) (*CookieKeyer, error) {
	if len(signingKey) == 0 {
		signingKey = securecookie.GenerateRandomKey(64)
		encryptionKey = securecookie.GenerateRandomKey(32)
	}
	if len(encryptionKey) == 0 {
		// securecookie treats any non-nil key as an AES key
		encryptionKey = nil
	} else {
		switch len(encryptionKey) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidEncryptionKey, len(encryptionKey))
		}
	}
	store := sessions.NewCookieStore(signingKey, encryptionKey)
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	return &CookieKeyer{
		name:  name,
		store: store,
	}, nil
}

func (k *CookieKeyer) Scope(res http.ResponseWriter, req *http.Request) (Scope, error) {
	// A cookie that fails to decode (e.g. signed with an old key) still yields a new,
	// empty session: we just start over with a fresh session ID
	s, _ := k.store.Get(req, k.name)
	if id, ok := s.Values[sessionIdKey].(string); ok && id != "" {
		return sessionId(id), nil
	}

	id := uuid.NewString()
	s.Values[sessionIdKey] = id
	if err := s.Save(req, res); err != nil {
		return nil, err
	}
	return sessionId(id), nil
}
