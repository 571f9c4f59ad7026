// Package auth obtains third-party identity tokens for the Google login
// exchange, supporting the browser authorization-code flow with PKCE and the
// device-code flow for headless environments.
package auth
