// Package userauth serves the pages a user sees while logging in and out.
//
// GET / is the landing page: if the user hasn't logged in, it renders a link to the
// identity provider's consent page (the link carries our current 'state' value, so
// that the callback handled by package callback can be verified). Once the user has
// logged in, GET / instead calls the provider's userinfo API with the stored access
// token and shows the result.
//
// GET /login/{profile} redirects straight to the consent page, and GET
// /logout/{profile} discards the stored access token.
package userauth
