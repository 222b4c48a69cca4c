// Package session holds the mutable authentication state shared by all requests: the
// anti-forgery state token that we round-trip through the identity provider's consent
// page, and the access token we obtain once the user has logged in.
//
// Both values are kept in memory and are lost when the process restarts. They're
// stored per Scope: by default every request resolves to the same global scope, which
// means that a single login is shared by every browser that talks to this server. The
// CookieKeyer can be used instead to give each browser its own scope, identified by a
// random session ID carried in a signed and encrypted cookie.
package session
