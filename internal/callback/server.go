package callback

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golden-vcr/gatekeeper/internal/events"
	"github.com/golden-vcr/gatekeeper/internal/session"
	"github.com/golden-vcr/server-common/entry"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"
)

var (
	ErrStateMismatch    = errors.New("state mismatch")
	ErrProviderExchange = errors.New("failed to exchange authorization code")
)

type CheckStateFunc func(scope session.Scope, profile, state string) bool
type ExchangeFunc func(ctx context.Context, profile, code string) (*oauth2.Token, error)
type StoreTokenFunc func(scope session.Scope, profile string, token *oauth2.Token)

type Server struct {
	keyer      session.Keyer
	checkState CheckStateFunc
	exchange   ExchangeFunc
	storeToken StoreTokenFunc
	producer   events.Producer
	timeout    time.Duration
	locks      keyedMutex
}

func NewServer(keyer session.Keyer, states *session.StateTokens, tokens *session.TokenStore, configs map[string]*oauth2.Config, producer events.Producer, timeout time.Duration) *Server {
	return &Server{
		keyer:      keyer,
		checkState: states.Check,
		exchange: func(ctx context.Context, profile, code string) (*oauth2.Token, error) {
			c, ok := configs[profile]
			if !ok {
				return nil, fmt.Errorf("no client configured for profile '%s'", profile)
			}
			return c.Exchange(ctx, code)
		},
		storeToken: tokens.Set,
		producer:   producer,
		timeout:    timeout,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Path("/callback/{profile}").Methods("GET").HandlerFunc(s.handleCallback)
}

// Complete verifies the state value that accompanied a callback, exchanges the
// authorization code for an access token, and commits that token for the given scope.
// On failure, nothing is stored.
func (s *Server) Complete(ctx context.Context, scope session.Scope, profile, code, state string) (*oauth2.Token, error) {
	unlock := s.locks.lock(scope.SessionID())
	defer unlock()

	// Never call the provider for a callback we didn't initiate
	if !s.checkState(scope, profile, state) {
		return nil, ErrStateMismatch
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	token, err := s.exchange(ctx, profile, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderExchange, err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token in response", ErrProviderExchange)
	}

	s.storeToken(scope, profile, token)
	return token, nil
}

func (s *Server) handleCallback(res http.ResponseWriter, req *http.Request) {
	profile := mux.Vars(req)["profile"]
	logger := entry.Log(req).With("profile", profile)

	scope, err := s.keyer.Scope(res, req)
	if err != nil {
		logger.Error("Failed to resolve session", "error", err)
		http.Error(res, "failed to resolve session", http.StatusInternalServerError)
		return
	}

	q := req.URL.Query()
	state := q.Get("state")
	if state == "" {
		http.Error(res, "'state' value not found in URL query params", http.StatusBadRequest)
		return
	}

	// If the user declined to grant access, the provider sends us an error code in
	// place of an authorization code
	if errorValue := q.Get("error"); errorValue != "" {
		logger.Info("Authorization was not granted", "error", errorValue)
		http.Error(res, fmt.Sprintf("authorization was not granted: %s", errorValue), http.StatusUnauthorized)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(res, "'code' value not found in URL query params", http.StatusBadRequest)
		return
	}

	if _, err := s.Complete(req.Context(), scope, profile, code, state); err != nil {
		if errors.Is(err, ErrStateMismatch) {
			logger.Warn("Rejected callback with invalid state")
			s.publish(req, events.New(events.TypeLoginRejected, profile, scope.SessionID()))
			http.Error(res, "CSRF token verification failed", http.StatusBadRequest)
			return
		}
		logger.Error("Failed to complete login", "error", err)
		http.Error(res, "failed to complete login", http.StatusBadGateway)
		return
	}

	logger.Info("User logged in")
	s.publish(req, events.New(events.TypeLogin, profile, scope.SessionID()))
	http.Redirect(res, req, "/", http.StatusSeeOther)
}

func (s *Server) publish(req *http.Request, ev events.Event) {
	if err := s.producer.Send(req.Context(), ev); err != nil {
		entry.Log(req).Error("Failed to publish event", "error", err, "eventType", ev.Type)
	}
}

// keyedMutex serializes callbacks within a session, while letting callbacks for
// different sessions proceed concurrently
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
