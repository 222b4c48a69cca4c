package userauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golden-vcr/gatekeeper"
	"github.com/golden-vcr/gatekeeper/internal/events"
	"github.com/golden-vcr/gatekeeper/internal/gate"
	"github.com/golden-vcr/gatekeeper/internal/session"
	"github.com/golden-vcr/server-common/entry"
	"github.com/gorilla/mux"
)

// FetchUserInfoFunc calls the identity provider's userinfo API, authorizing the
// request with the given headers, and returns the JSON response body
type FetchUserInfoFunc func(ctx context.Context, url string, header http.Header) (json.RawMessage, error)

type Server struct {
	keyer         session.Keyer
	gate          *gate.Gate
	profile       gatekeeper.Profile
	fetchUserInfo FetchUserInfoFunc
	producer      events.Producer
}

func NewServer(keyer session.Keyer, g *gate.Gate, profile gatekeeper.Profile, producer events.Producer, timeout time.Duration) *Server {
	return &Server{
		keyer:         keyer,
		gate:          g,
		profile:       profile,
		fetchUserInfo: newUserInfoFetcher(&http.Client{Timeout: timeout}),
		producer:      producer,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Path("/").Methods("GET").HandlerFunc(s.handleIndex)
	r.Path("/login/{profile}").Methods("GET").HandlerFunc(s.handleLogin)
	r.Path("/logout/{profile}").Methods("GET").HandlerFunc(s.handleLogout)
}

// handleIndex (GET /) shows the logged-in user's details, or a login link if the user
// hasn't logged in
func (s *Server) handleIndex(res http.ResponseWriter, req *http.Request) {
	logger := entry.Log(req)

	scope, err := s.keyer.Scope(res, req)
	if err != nil {
		logger.Error("Failed to resolve session", "error", err)
		http.Error(res, "failed to resolve session", http.StatusInternalServerError)
		return
	}

	if s.gate.Authorized(scope, s.profile.Name) {
		header, err := s.gate.TokenHeaders(scope, s.profile.Name)
		if err == nil {
			logoutURL, err := s.gate.LogoutURL(s.profile.Name)
			if err != nil {
				logger.Error("Failed to resolve logout link", "error", err)
				http.Error(res, err.Error(), http.StatusInternalServerError)
				return
			}
			s.renderUser(res, req, header, logoutURL)
			return
		}
		// The user logged out between our two checks
		if !errors.Is(err, gate.ErrNotAuthorized) {
			logger.Error("Failed to get token headers", "error", err)
			http.Error(res, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	// Only a logged-out user needs a consent URL, and resolving one may mint a new state
	// value
	links, err := s.gate.Profiles(scope, s.profile.Name)
	if err != nil {
		logger.Error("Failed to resolve login links", "error", err)
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := renderPage(res, loginPage, loginPageData{
		ProviderName: s.profile.DisplayName,
		LoginURL:     links.Login,
	}); err != nil {
		logger.Error("Failed to render login page", "error", err)
	}
}

func (s *Server) renderUser(res http.ResponseWriter, req *http.Request, header http.Header, logoutURL string) {
	logger := entry.Log(req)

	user, err := s.fetchUserInfo(req.Context(), s.profile.UserInfoURL, header)
	if err != nil {
		logger.Error("Failed to fetch user info", "error", err)
		http.Error(res, "failed to fetch user info", http.StatusBadGateway)
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, user, "", "\t"); err != nil {
		logger.Error("Failed to format user info", "error", err)
		http.Error(res, "failed to format user info", http.StatusBadGateway)
		return
	}

	if err := renderPage(res, userPage, userPageData{
		User:      pretty.String(),
		LogoutURL: logoutURL,
	}); err != nil {
		logger.Error("Failed to render user page", "error", err)
	}
}

// handleLogin (GET /login/{profile}) sends the user to the identity provider's consent
// page
func (s *Server) handleLogin(res http.ResponseWriter, req *http.Request) {
	profile := mux.Vars(req)["profile"]
	logger := entry.Log(req).With("profile", profile)

	scope, err := s.keyer.Scope(res, req)
	if err != nil {
		logger.Error("Failed to resolve session", "error", err)
		http.Error(res, "failed to resolve session", http.StatusInternalServerError)
		return
	}

	links, err := s.gate.Profiles(scope, profile)
	if err != nil {
		if errors.Is(err, gate.ErrUnknownProfile) {
			http.Error(res, fmt.Sprintf("unknown profile '%s'", profile), http.StatusNotFound)
			return
		}
		logger.Error("Failed to resolve login links", "error", err)
		http.Error(res, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(res, req, links.Login, http.StatusSeeOther)
}

// handleLogout (GET /logout/{profile}) discards the stored access token, then sends
// the user back to the login page
func (s *Server) handleLogout(res http.ResponseWriter, req *http.Request) {
	profile := mux.Vars(req)["profile"]
	logger := entry.Log(req).With("profile", profile)

	scope, err := s.keyer.Scope(res, req)
	if err != nil {
		logger.Error("Failed to resolve session", "error", err)
		http.Error(res, "failed to resolve session", http.StatusInternalServerError)
		return
	}

	s.gate.Logout(scope, profile)
	logger.Info("User logged out")
	if err := s.producer.Send(req.Context(), events.New(events.TypeLogout, profile, scope.SessionID())); err != nil {
		logger.Error("Failed to publish event", "error", err, "eventType", events.TypeLogout)
	}
	http.Redirect(res, req, "/", http.StatusSeeOther)
}

func newUserInfoFetcher(client *http.Client) FetchUserInfoFunc {
	return func(ctx context.Context, url string, header http.Header) (json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, values := range header {
			req.Header[k] = values
		}

		res, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("got response %d from userinfo request", res.StatusCode)
		}
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("userinfo response is not valid JSON")
		}
		return body, nil
	}
}
