package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediguide/mgctl/pkg/mgctl/client"
)

// tokenFileForTest points MGCTL_TOKEN_FILE at a temp file, optionally
// pre-seeded with a pair.
func tokenFileForTest(t *testing.T, pair *client.TokenPair) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.json")
	t.Setenv("MGCTL_TOKEN_FILE", path)
	if pair != nil {
		content, err := json.Marshal(pair)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, content, 0o600))
	}
	return path
}

func testUser() map[string]any {
	return map[string]any{
		"id":    "u1",
		"name":  "Ada",
		"email": "ada@example.com",
	}
}

func TestAuthStatusNotAuthenticated(t *testing.T) {
	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, nil)

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"auth", "status", "--server", "https://api.mediguide.example"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Not authenticated")
}

func TestAuthStatusAuthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/me", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"data": testUser()})
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, &client.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"auth", "status", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Authenticated as ada@example.com")
}

func TestAuthLogout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/logout", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenPath := tokenFileForTest(t, &client.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"auth", "logout", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Logged out")

	_, err := os.Stat(tokenPath)
	assert.True(t, os.IsNotExist(err))
}

func TestAuthLoginWithIDToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/google", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "the-id-token", body["id_token"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"user":          testUser(),
		})
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenPath := tokenFileForTest(t, nil)

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"auth", "login", "--id-token", "the-id-token", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Logged in as ada@example.com")

	content, err := os.ReadFile(tokenPath)
	require.NoError(t, err)
	var pair client.TokenPair
	require.NoError(t, json.Unmarshal(content, &pair))
	assert.Equal(t, "access-1", pair.AccessToken)
	assert.Equal(t, "refresh-1", pair.RefreshToken)
}

func TestAuthOTPRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/otp/request", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "code sent to ada@example.com"})
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, nil)

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"auth", "otp", "request", "ada@example.com", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "code sent")
}

func TestAuthOTPVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/otp/verify", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "123456", body["otp"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"user":          testUser(),
		})
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, nil)

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"auth", "otp", "verify", "ada@example.com", "--code", "123456", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Logged in as ada@example.com")
}

func TestMeShowRequiresLogin(t *testing.T) {
	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, nil)

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"me", "show", "--server", "https://api.mediguide.example"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mgctl auth login")
}

func TestMeShowTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": testUser()})
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, &client.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"me", "show", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "ada@example.com")
	assert.Contains(t, buf.String(), "FIELD")
}

func TestMeShowJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": testUser()})
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, &client.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"me", "show", "--server", server.URL, "-o", "json"})
	require.NoError(t, root.Execute())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "u1", decoded["id"])
}

func TestMeUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "dark", body["theme"])
			require.NotContains(t, body, "name")
			_ = json.NewEncoder(w).Encode(map[string]any{"data": testUser()})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": testUser()})
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, &client.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"me", "update", "--theme", "dark", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Profile updated")
}

func TestMeUpdateNothingToDo(t *testing.T) {
	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, nil)

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"me", "update", "--server", "https://api.mediguide.example"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")
}

func TestLocationSetManual(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": testUser()})
	})
	mux.HandleFunc("/api/location/set-manual", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Munich", body["query"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"lat":            48.137,
				"lng":            11.575,
				"location_label": "Munich, Germany",
			},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, &client.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"location", "set", "--query", "Munich", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Munich, Germany")
}

func TestLocationSetRejectsMixedFlags(t *testing.T) {
	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenFileForTest(t, nil)

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{
		"location", "set",
		"--query", "Munich", "--lat", "48.1", "--lng", "11.5",
		"--server", "https://api.mediguide.example",
	})
	err := root.Execute()
	require.Error(t, err)

	root = NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"location", "set", "--server", "https://api.mediguide.example"})
	require.Error(t, root.Execute())
}

func TestTransparentRefreshDuringCommand(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "token expired"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": testUser()})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-1", body["refresh_token"])
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "access-2",
			"refresh_token": "refresh-2",
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	buf := &bytes.Buffer{}
	path := configPathForTest(t)
	tokenPath := tokenFileForTest(t, &client.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"})

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"me", "show", "--server", server.URL})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "ada@example.com")

	// The rotated pair was persisted for the next invocation.
	content, err := os.ReadFile(tokenPath)
	require.NoError(t, err)
	var pair client.TokenPair
	require.NoError(t, json.Unmarshal(content, &pair))
	assert.Equal(t, "access-2", pair.AccessToken)
	assert.Equal(t, "refresh-2", pair.RefreshToken)
}
