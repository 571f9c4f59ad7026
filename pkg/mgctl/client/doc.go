// Package client implements the HTTP client for the MediGuide API, including
// the authenticated request pipeline that attaches the stored bearer token
// and performs a single refresh-and-retry cycle on authorization failures,
// plus services for credential exchanges and profile operations.
package client
