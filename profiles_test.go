package gatekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func Test_ProfileSet_Get(t *testing.T) {
	profiles := ProfileSet{
		{Name: "google"},
		{Name: "other"},
	}

	got, ok := profiles.Get("other")
	assert.True(t, ok)
	assert.Equal(t, "other", got.Name)

	got, ok = profiles.Get("github")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func Test_Profiles_includesDefault(t *testing.T) {
	got, ok := Profiles.Get(DefaultProfileName)
	assert.True(t, ok)
	assert.NotEmpty(t, got.Scopes)
	assert.NotEmpty(t, got.UserInfoURL)
}

func Test_Profile_OAuthConfig(t *testing.T) {
	p := &Profile{
		Name: "google",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://provider.example/auth",
			TokenURL: "https://provider.example/token",
		},
		Scopes: []string{"profile"},
	}
	got := p.OAuthConfig("my-client", "my-secret", "https://gate.example")
	assert.Equal(t, &oauth2.Config{
		ClientID:     "my-client",
		ClientSecret: "my-secret",
		Endpoint:     p.Endpoint,
		Scopes:       []string{"profile"},
		RedirectURL:  "https://gate.example/callback/google",
	}, got)
}
