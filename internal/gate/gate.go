// Package gate implements the authorization check that every protected route passes
// through: a request is authorized iff we hold an access token for its scope.
package gate

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/golden-vcr/gatekeeper/internal/session"
	"github.com/golden-vcr/server-common/entry"
	"golang.org/x/oauth2"
)

var (
	ErrNotAuthorized  = errors.New("not authorized")
	ErrUnknownProfile = errors.New("unknown profile")
)

// Links are the URLs that a user can follow to log in or log out with a profile
type Links struct {
	// Login is the identity provider's consent URL, carrying our current state value
	Login string
	// Logout is our own route that discards the stored access token
	Logout string
}

type Gate struct {
	states  *session.StateTokens
	tokens  *session.TokenStore
	configs map[string]*oauth2.Config
}

func New(states *session.StateTokens, tokens *session.TokenStore, configs map[string]*oauth2.Config) *Gate {
	return &Gate{
		states:  states,
		tokens:  tokens,
		configs: configs,
	}
}

// Authorized reports whether an access token is stored for the given scope and
// profile. The token's content (including its expiry) is not examined.
func (g *Gate) Authorized(scope session.Scope, profile string) bool {
	return g.tokens.Get(scope, profile) != nil
}

// TokenHeaders returns the headers required to call the identity provider's APIs on
// the user's behalf
func (g *Gate) TokenHeaders(scope session.Scope, profile string) (http.Header, error) {
	token := g.tokens.Get(scope, profile)
	if token == nil {
		return nil, ErrNotAuthorized
	}
	header := make(http.Header)
	header.Set("Authorization", token.Type()+" "+token.AccessToken)
	return header, nil
}

// Profiles returns login and logout links for the given profile
func (g *Gate) Profiles(scope session.Scope, profile string) (*Links, error) {
	c, ok := g.configs[profile]
	if !ok {
		return nil, ErrUnknownProfile
	}
	return &Links{
		Login:  c.AuthCodeURL(g.states.Generate(scope, profile)),
		Logout: logoutURL(profile),
	}, nil
}

// LogoutURL returns the logout link for the given profile. Unlike Profiles, it leaves
// the profile's state value untouched.
func (g *Gate) LogoutURL(profile string) (string, error) {
	if _, ok := g.configs[profile]; !ok {
		return "", ErrUnknownProfile
	}
	return logoutURL(profile), nil
}

func logoutURL(profile string) string {
	return "/logout/" + url.PathEscape(profile)
}

// Logout discards the access token stored for the given scope and profile
func (g *Gate) Logout(scope session.Scope, profile string) {
	g.tokens.Delete(scope, profile)
}

// Require wraps a handler so that it's only invoked for authorized requests: any other
// request is redirected to redirectUrl, and next never sees it
func (g *Gate) Require(keyer session.Keyer, profile, redirectUrl string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(res http.ResponseWriter, req *http.Request) {
		scope, err := keyer.Scope(res, req)
		if err != nil {
			entry.Log(req).Error("Failed to resolve session", "error", err)
			http.Error(res, "failed to resolve session", http.StatusInternalServerError)
			return
		}
		if !g.Authorized(scope, profile) {
			http.Redirect(res, req, redirectUrl, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(res, req)
	})
}
