// Package session owns the client-side authentication session: durable token
// storage across file, OS keychain, and in-memory backends, and the state
// machine that bootstraps, establishes, and tears down the current user.
package session
