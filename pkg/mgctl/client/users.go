package client

import (
	"context"
	"net/http"
)

// UserService covers the profile endpoints: /me, username, password, and the
// location setters.
type UserService struct {
	client *Client
}

func (c *Client) Users() *UserService {
	return &UserService{client: c}
}

func (s *UserService) Me(ctx context.Context) (*User, error) {
	var resp userEnvelope
	if err := s.client.Do(ctx, http.MethodGet, "api/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (s *UserService) Update(ctx context.Context, update UserUpdate) (*User, error) {
	var resp userEnvelope
	if err := s.client.Do(ctx, http.MethodPatch, "api/me", update, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

type usernameRequest struct {
	Username string `json:"username"`
}

func (s *UserService) SetUsername(ctx context.Context, username string) error {
	return s.client.Do(ctx, http.MethodPatch, "api/user/username", usernameRequest{Username: username}, nil)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *UserService) ChangePassword(ctx context.Context, current, next string) error {
	return s.client.Do(ctx, http.MethodPost, "api/user/change-password", changePasswordRequest{CurrentPassword: current, NewPassword: next}, nil)
}

type locationAutoRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type locationManualRequest struct {
	Query string `json:"query"`
}

// SetLocationAuto reverse-geocodes the coordinates server-side and stores
// them on the profile.
func (s *UserService) SetLocationAuto(ctx context.Context, lat, lng float64) (*Location, error) {
	var resp locationEnvelope
	if err := s.client.Do(ctx, http.MethodPost, "api/location/set-auto", locationAutoRequest{Lat: lat, Lng: lng}, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// SetLocationManual geocodes a free-text query server-side.
func (s *UserService) SetLocationManual(ctx context.Context, query string) (*Location, error) {
	var resp locationEnvelope
	if err := s.client.Do(ctx, http.MethodPost, "api/location/set-manual", locationManualRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
