package users

import (
	"encoding/json"
	"net/http"

	"github.com/golden-vcr/gatekeeper/internal/events"
	"github.com/golden-vcr/gatekeeper/internal/gate"
	"github.com/golden-vcr/gatekeeper/internal/session"
	"github.com/golden-vcr/server-common/entry"
	"github.com/gorilla/mux"
)

// ListResponse is the JSON body returned by GET /users
type ListResponse struct {
	Users []User `json:"users"`
}

type Server struct {
	keyer    session.Keyer
	profile  string
	store    Store
	producer events.Producer
}

func NewServer(keyer session.Keyer, profile string, store Store, producer events.Producer) *Server {
	return &Server{
		keyer:    keyer,
		profile:  profile,
		store:    store,
		producer: producer,
	}
}

// RegisterRoutes installs the user list routes, all of which require the caller to be
// logged in: anyone else is sent back to the login page at /
func (s *Server) RegisterRoutes(g *gate.Gate, r *mux.Router) {
	secured := func(h http.HandlerFunc) http.Handler {
		return g.Require(s.keyer, s.profile, "/", h)
	}
	r.Path("/users").Methods("GET").Handler(secured(s.handleListUsers))
	r.Path("/users/add/{name}").Methods("GET").Handler(secured(s.handleAddUser))
	r.Path("/users/remove/{name}").Methods("GET").Handler(secured(s.handleRemoveUser))
}

// handleListUsers (GET /users) returns all users in the order they were added
func (s *Server) handleListUsers(res http.ResponseWriter, req *http.Request) {
	logger := entry.Log(req)

	users, err := s.store.ListUsers(req.Context())
	if err != nil {
		logger.Error("Failed to list users", "error", err)
		http.Error(res, "failed to list users", http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(res).Encode(ListResponse{Users: users}); err != nil {
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}

// handleAddUser (GET /users/add/{name}) adds a user, then redirects to the list
func (s *Server) handleAddUser(res http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	logger := entry.Log(req).With("user", name)

	if err := s.store.AddUser(req.Context(), name); err != nil {
		logger.Error("Failed to add user", "error", err)
		http.Error(res, "failed to add user", http.StatusInternalServerError)
		return
	}
	logger.Info("Added user")
	s.publish(res, req, events.TypeUserAdded, name)
	http.Redirect(res, req, "/users", http.StatusSeeOther)
}

// handleRemoveUser (GET /users/remove/{name}) removes a user, then redirects to the
// list
func (s *Server) handleRemoveUser(res http.ResponseWriter, req *http.Request) {
	name := mux.Vars(req)["name"]
	logger := entry.Log(req).With("user", name)

	if err := s.store.RemoveUser(req.Context(), name); err != nil {
		logger.Error("Failed to remove user", "error", err)
		http.Error(res, "failed to remove user", http.StatusInternalServerError)
		return
	}
	logger.Info("Removed user")
	s.publish(res, req, events.TypeUserRemoved, name)
	http.Redirect(res, req, "/users", http.StatusSeeOther)
}

func (s *Server) publish(res http.ResponseWriter, req *http.Request, t events.Type, name string) {
	logger := entry.Log(req)
	sessionId := ""
	if scope, err := s.keyer.Scope(res, req); err == nil {
		sessionId = scope.SessionID()
	}
	ev := events.New(t, s.profile, sessionId).WithUser(name)
	if err := s.producer.Send(req.Context(), ev); err != nil {
		logger.Error("Failed to publish event", "error", err, "eventType", ev.Type)
	}
}
