package client

// TokenPair is the access/refresh token pair issued by the MediGuide identity
// endpoints. Either field may be empty when read back from a token store; a
// pair missing either half is treated as an unauthenticated session.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Complete reports whether both tokens are present.
func (p TokenPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// TokenStore is the durable persistence the client reads bearer credentials
// from. Implementations live in the session package; the client only consumes
// this surface.
type TokenStore interface {
	// Read returns whatever is currently persisted; either field may be absent.
	Read() (TokenPair, error)
	// Write persists both tokens.
	Write(pair TokenPair) error
	// Clear removes both tokens.
	Clear() error
}

// User is the profile object returned by the identity and /me endpoints.
type User struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Mobile            string   `json:"mobile,omitempty"`
	Username          string   `json:"username,omitempty"`
	PreferredLanguage string   `json:"preferred_language,omitempty"`
	Theme             string   `json:"theme,omitempty"`
	LocationMode      string   `json:"location_mode,omitempty"`
	LocationLabel     string   `json:"location_label,omitempty"`
	Lat               *float64 `json:"lat,omitempty"`
	Lng               *float64 `json:"lng,omitempty"`
	HasUploads        bool     `json:"has_uploads,omitempty"`
	CreatedAt         string   `json:"created_at,omitempty"`
	LastLoginAt       string   `json:"last_login_at,omitempty"`
}

// Credentials is the result of a successful credential exchange: a token pair
// plus the profile the server resolved for it.
type Credentials struct {
	Tokens TokenPair
	User   User
}

// tokenEnvelope is the wire shape of every token-issuing endpoint.
type tokenEnvelope struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// userEnvelope wraps /me style responses.
type userEnvelope struct {
	Data User `json:"data"`
}

// Location is the subset of profile fields owned by the location endpoints.
type Location struct {
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	LocationLabel string   `json:"location_label"`
}

type locationEnvelope struct {
	Data Location `json:"data"`
}

// messageResponse is returned by endpoints that only acknowledge.
type messageResponse struct {
	Message string `json:"message"`
}

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Password          string   `json:"password"`
	PreferredLanguage string   `json:"preferred_language,omitempty"`
	LocationMode      string   `json:"location_mode,omitempty"`
	LocationLabel     string   `json:"location_label,omitempty"`
	Lat               *float64 `json:"lat,omitempty"`
	Lng               *float64 `json:"lng,omitempty"`
	Mobile            string   `json:"mobile,omitempty"`
}

// UserUpdate is the payload for PATCH /me. Nil fields are left untouched.
type UserUpdate struct {
	Name              *string  `json:"name,omitempty"`
	PreferredLanguage *string  `json:"preferred_language,omitempty"`
	Theme             *string  `json:"theme,omitempty"`
	LocationMode      *string  `json:"location_mode,omitempty"`
	LocationLabel     *string  `json:"location_label,omitempty"`
	Lat               *float64 `json:"lat,omitempty"`
	Lng               *float64 `json:"lng,omitempty"`
}
