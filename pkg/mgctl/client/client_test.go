package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "missing server",
			opts:    []Option{},
			wantErr: true,
		},
		{
			name: "valid config",
			opts: []Option{
				WithServer("https://example.com"),
				WithTokenStore(&memStore{}),
			},
			wantErr: false,
		},
		{
			name: "with custom user agent",
			opts: []Option{
				WithServer("https://example.com"),
				WithUserAgent("test-agent"),
			},
			wantErr: false,
		},
		{
			name: "empty server",
			opts: []Option{
				WithServer(""),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, client)
			} else {
				require.NoError(t, err)
				require.NotNil(t, client)
			}
		})
	}
}

func TestClientDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.Equal(t, "/api/me", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client, err := New(
		WithServer(server.URL),
		WithUserAgent("test-agent"),
	)
	require.NoError(t, err)

	var result map[string]string
	err = client.Do(context.Background(), http.MethodGet, "api/me", nil, &result)
	require.NoError(t, err)
	require.Equal(t, "ok", result["status"])
}

func TestClientDoErrorDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "email already registered"})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	err = client.Do(context.Background(), http.MethodPost, "api/auth/register", nil, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
	require.Equal(t, "email already registered", apiErr.Message)
}

func TestClientDoErrorFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{
			name:    "error field",
			body:    `{"error": "bad input"}`,
			status:  http.StatusBadRequest,
			message: "bad input",
		},
		{
			name:    "raw body",
			body:    "internal server error",
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
		{
			name:    "empty body falls back to status",
			body:    "",
			status:  http.StatusBadGateway,
			message: "502 Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := New(WithServer(server.URL))
			require.NoError(t, err)

			err = client.Do(context.Background(), http.MethodGet, "api/me", nil, nil)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, tt.status, apiErr.StatusCode)
			require.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{
		StatusCode: http.StatusForbidden,
		Message:    "access denied",
	}
	require.Equal(t, "request failed (403): access denied", err.Error())
}

func TestIsUnauthorized(t *testing.T) {
	require.True(t, IsUnauthorized(&APIError{StatusCode: http.StatusUnauthorized}))
	require.False(t, IsUnauthorized(&APIError{StatusCode: http.StatusForbidden}))
	require.False(t, IsUnauthorized(context.Canceled))
	require.False(t, IsUnauthorized(nil))
}

func TestTokenPairComplete(t *testing.T) {
	require.True(t, TokenPair{AccessToken: "a", RefreshToken: "r"}.Complete())
	require.False(t, TokenPair{AccessToken: "a"}.Complete())
	require.False(t, TokenPair{RefreshToken: "r"}.Complete())
	require.False(t, TokenPair{}.Complete())
}
