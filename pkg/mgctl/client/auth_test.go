package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newExchangeServer(t *testing.T, path string, checkBody func(t *testing.T, body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, path, r.URL.Path)
		if checkBody != nil {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			checkBody(t, body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "bearer",
			"user": map[string]any{
				"id":    "u1",
				"name":  "Ada",
				"email": "ada@example.com",
			},
		})
	}))
}

func TestAuthLogin(t *testing.T) {
	server := newExchangeServer(t, "/api/auth/login", func(t *testing.T, body map[string]any) {
		require.Equal(t, "ada@example.com", body["email"])
		require.Equal(t, "hunter2", body["password"])
	})
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	creds, err := client.Auth().Login(context.Background(), "ada@example.com", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "access-1", creds.Tokens.AccessToken)
	require.Equal(t, "refresh-1", creds.Tokens.RefreshToken)
	require.True(t, creds.Tokens.Complete())
	require.Equal(t, "u1", creds.User.ID)
	require.Equal(t, "ada@example.com", creds.User.Email)
}

func TestAuthLoginWithIDToken(t *testing.T) {
	server := newExchangeServer(t, "/api/auth/google", func(t *testing.T, body map[string]any) {
		require.Equal(t, "google-id-token", body["id_token"])
	})
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	creds, err := client.Auth().LoginWithIDToken(context.Background(), "google-id-token")
	require.NoError(t, err)
	require.Equal(t, "Ada", creds.User.Name)
}

func TestAuthRegister(t *testing.T) {
	server := newExchangeServer(t, "/api/auth/register", func(t *testing.T, body map[string]any) {
		require.Equal(t, "Ada", body["name"])
		require.Equal(t, "ada@example.com", body["email"])
		require.Equal(t, "en", body["preferred_language"])
		require.Equal(t, 48.1, body["lat"])
	})
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	lat, lng := 48.1, 11.5
	creds, err := client.Auth().Register(context.Background(), RegisterRequest{
		Name:              "Ada",
		Email:             "ada@example.com",
		Password:          "hunter2",
		PreferredLanguage: "en",
		LocationMode:      "auto",
		Lat:               &lat,
		Lng:               &lng,
	})
	require.NoError(t, err)
	require.True(t, creds.Tokens.Complete())
}

func TestAuthRequestOTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/otp/request", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "+4915112345678", body["identifier"])
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "code sent"})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	msg, err := client.Auth().RequestOTP(context.Background(), "+4915112345678")
	require.NoError(t, err)
	require.Equal(t, "code sent", msg)
}

func TestAuthVerifyOTP(t *testing.T) {
	server := newExchangeServer(t, "/api/auth/otp/verify", func(t *testing.T, body map[string]any) {
		require.Equal(t, "ada@example.com", body["identifier"])
		require.Equal(t, "123456", body["otp"])
	})
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	creds, err := client.Auth().VerifyOTP(context.Background(), "ada@example.com", "123456")
	require.NoError(t, err)
	require.True(t, creds.Tokens.Complete())
}

func TestAuthRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/refresh", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-1", body["refresh_token"])
		writeTokens(w, TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	pair, err := client.Auth().Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	require.Equal(t, "access-2", pair.AccessToken)
	require.Equal(t, "refresh-2", pair.RefreshToken)
}

func TestAuthLogout(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/logout", r.URL.Path)
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	require.NoError(t, client.Auth().Logout(context.Background()))
	require.True(t, called)
}

func TestAuthPasswordReset(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/api/auth/forgot-password":
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "reset code sent"})
		case "/api/auth/verify-reset-code":
			w.WriteHeader(http.StatusOK)
		case "/api/auth/reset-password":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "ada@example.com", body["email"])
			require.Equal(t, "424242", body["code"])
			require.Equal(t, "s3cret!", body["new_password"])
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)
	authSvc := client.Auth()

	msg, err := authSvc.ForgotPassword(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, "reset code sent", msg)

	require.NoError(t, authSvc.VerifyResetCode(context.Background(), "ada@example.com", "424242"))
	require.NoError(t, authSvc.ResetPassword(context.Background(), "ada@example.com", "424242", "s3cret!"))

	require.Equal(t, []string{
		"/api/auth/forgot-password",
		"/api/auth/verify-reset-code",
		"/api/auth/reset-password",
	}, paths)
}
