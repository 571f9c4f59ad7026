package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsersMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/me", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"id":                 "u1",
				"name":               "Ada",
				"email":              "ada@example.com",
				"preferred_language": "de",
				"location_mode":      "manual",
				"location_label":     "Munich",
				"has_uploads":        true,
			},
		})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	user, err := client.Users().Me(context.Background())
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, "de", user.PreferredLanguage)
	require.Equal(t, "Munich", user.LocationLabel)
	require.True(t, user.HasUploads)
	require.Nil(t, user.Lat)
}

func TestUsersUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/me", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "dark", body["theme"])
		// Nil fields must be omitted entirely, not sent as null.
		require.NotContains(t, body, "name")
		require.NotContains(t, body, "lat")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "u1", "theme": "dark"},
		})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	theme := "dark"
	user, err := client.Users().Update(context.Background(), UserUpdate{Theme: &theme})
	require.NoError(t, err)
	require.Equal(t, "dark", user.Theme)
}

func TestUsersSetUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/api/user/username", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ada42", body["username"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	require.NoError(t, client.Users().SetUsername(context.Background(), "ada42"))
}

func TestUsersChangePassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/user/change-password", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "old", body["current_password"])
		require.Equal(t, "new", body["new_password"])
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	require.NoError(t, client.Users().ChangePassword(context.Background(), "old", "new"))
}

func TestUsersSetLocationAuto(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/location/set-auto", r.URL.Path)
		var body map[string]float64
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 48.137, body["lat"])
		require.Equal(t, 11.575, body["lng"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"lat":            48.137,
				"lng":            11.575,
				"location_label": "Munich, Germany",
			},
		})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	loc, err := client.Users().SetLocationAuto(context.Background(), 48.137, 11.575)
	require.NoError(t, err)
	require.Equal(t, "Munich, Germany", loc.LocationLabel)
	require.NotNil(t, loc.Lat)
	require.Equal(t, 48.137, *loc.Lat)
}

func TestUsersSetLocationManual(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/location/set-manual", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Berlin", body["query"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"lat":            52.52,
				"lng":            13.405,
				"location_label": "Berlin, Germany",
			},
		})
	}))
	defer server.Close()

	client, err := New(WithServer(server.URL))
	require.NoError(t, err)

	loc, err := client.Users().SetLocationManual(context.Background(), "Berlin")
	require.NoError(t, err)
	require.Equal(t, "Berlin, Germany", loc.LocationLabel)
}
