package gatekeeper

import (
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultProfileName identifies the profile that gates the user-facing routes
const DefaultProfileName = "google"

// Profiles declares all of the OAuth 2.0 identity providers that users can log in with
var Profiles = ProfileSet{
	{
		Name:        DefaultProfileName,
		DisplayName: "Google",
		Endpoint:    google.Endpoint,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		UserInfoURL: "https://www.googleapis.com/oauth2/v1/userinfo",
	},
}

// Profile describes an identity provider along with the scopes we request from it
// and the API we call (with the resulting access token) to identify the user
type Profile struct {
	Name        string
	DisplayName string
	Endpoint    oauth2.Endpoint
	Scopes      []string
	UserInfoURL string
}

// ProfileSet is a list of profiles, unique by name
type ProfileSet []Profile

// Get returns the profile with the given name, if any
func (s ProfileSet) Get(name string) (*Profile, bool) {
	for i := range s {
		if s[i].Name == name {
			return &s[i], true
		}
	}
	return nil, false
}

// OAuthConfig returns the client configuration used to build consent URLs and to
// exchange authorization codes for this profile. The provider redirects back to
// {origin}/callback/{name} once the user has granted (or denied) access.
func (p *Profile) OAuthConfig(clientId, clientSecret, origin string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		Endpoint:     p.Endpoint,
		Scopes:       p.Scopes,
		RedirectURL:  origin + "/callback/" + p.Name,
	}
}
