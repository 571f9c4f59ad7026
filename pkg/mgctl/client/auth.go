package client

import (
	"context"
	"net/http"
)

// AuthService exposes the credential-exchange endpoints. Every exchange is a
// pure request/response call; persisting the returned tokens and replacing
// the current user is the session's job.
type AuthService struct {
	client *Client
}

func (c *Client) Auth() *AuthService {
	return &AuthService{client: c}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

type otpRequest struct {
	Identifier string `json:"identifier"`
}

type otpVerifyRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*Credentials, error) {
	return s.exchange(ctx, "api/auth/login", loginRequest{Email: email, Password: password})
}

// LoginWithIDToken trades a third-party identity token (Google) for a
// MediGuide session. The account is auto-created on first sight.
func (s *AuthService) LoginWithIDToken(ctx context.Context, idToken string) (*Credentials, error) {
	return s.exchange(ctx, "api/auth/google", googleLoginRequest{IDToken: idToken})
}

// RequestOTP asks the server to dispatch a one-time code to the identifier
// (email address or mobile number). No session state changes.
func (s *AuthService) RequestOTP(ctx context.Context, identifier string) (string, error) {
	var resp messageResponse
	if err := s.client.Do(ctx, http.MethodPost, "api/auth/otp/request", otpRequest{Identifier: identifier}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (s *AuthService) VerifyOTP(ctx context.Context, identifier, otp string) (*Credentials, error) {
	return s.exchange(ctx, "api/auth/otp/verify", otpVerifyRequest{Identifier: identifier, OTP: otp})
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*Credentials, error) {
	return s.exchange(ctx, "api/auth/register", req)
}

// Refresh trades a refresh token for a new pair. The profile is unchanged,
// so no user object is returned. The presented token is revoked server-side.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	var resp tokenEnvelope
	if err := s.client.Do(ctx, http.MethodPost, "api/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// Logout revokes the server-side refresh tokens for the current bearer.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.client.Do(ctx, http.MethodPost, "api/auth/logout", nil, nil)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type verifyResetCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp messageResponse
	if err := s.client.Do(ctx, http.MethodPost, "api/auth/forgot-password", forgotPasswordRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (s *AuthService) VerifyResetCode(ctx context.Context, email, code string) error {
	return s.client.Do(ctx, http.MethodPost, "api/auth/verify-reset-code", verifyResetCodeRequest{Email: email, Code: code}, nil)
}

func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return s.client.Do(ctx, http.MethodPost, "api/auth/reset-password", resetPasswordRequest{Email: email, Code: code, NewPassword: newPassword}, nil)
}

func (s *AuthService) exchange(ctx context.Context, endpoint string, body any) (*Credentials, error) {
	var resp tokenEnvelope
	if err := s.client.Do(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	creds := &Credentials{
		Tokens: TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken},
	}
	if resp.User != nil {
		creds.User = *resp.User
	}
	return creds, nil
}
