// Package callback completes the OAuth 2.0 authorization code flow, as described in
// https://datatracker.ietf.org/doc/html/rfc6749#section-4.1
//
// Once the user has granted access on the identity provider's consent page, the
// provider redirects them back to GET /callback/{profile} with two query params: 'code'
// (a short-lived authorization code) and 'state' (the value we sent along with the
// authorization request). We only accept the callback if 'state' matches the value we
// generated; otherwise a third party could trick the user's browser into completing a
// login that we never initiated. If the state checks out, we exchange the code for an
// access token by calling the provider's token endpoint, and we store that token: from
// that point on, the user's requests are authorized.
//
// Verifying the state, exchanging the code, and storing the token happen as a single
// critical section per session, so two racing callbacks can't interleave.
package callback
