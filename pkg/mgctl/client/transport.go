package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Transport is the authenticated request pipeline, expressed as an
// http.RoundTripper decorator with an explicit pre-request stage (bearer
// attach) and post-response stage (refresh-and-retry on 401).
//
// A single logical request triggers at most one refresh attempt: the retried
// request carries a marker in its context, and a second 401 is surfaced
// unchanged. Concurrent requests that fail while the same access token is
// expired coalesce into one refresh exchange; the MediGuide server rotates
// refresh tokens on every exchange, so racing refreshes would invalidate
// each other.
type Transport struct {
	Base       http.RoundTripper
	Store      TokenStore
	RefreshURL string
	Logger     *zap.Logger

	// OnSessionExpired fires when the session is unrecoverable: no refresh
	// token, or the refresh exchange itself was rejected. The token store is
	// already cleared by the time it runs.
	OnSessionExpired func()

	group singleflight.Group
}

type retryMarkerKey struct{}

func withRetryMarker(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryMarkerKey{}, true)
}

func hasRetryMarker(ctx context.Context) bool {
	marked, _ := ctx.Value(retryMarkerKey{}).(bool)
	return marked
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *zap.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return zap.NewNop()
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	outbound := req.Clone(req.Context())
	// A pre-set Authorization header wins; the retried request carries the
	// freshly exchanged token even when persisting it failed.
	if outbound.Header.Get("Authorization") == "" {
		if pair := t.readTokens(); pair.AccessToken != "" {
			outbound.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		}
	}

	resp, err := t.base().RoundTrip(outbound)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if hasRetryMarker(req.Context()) {
		// Already refreshed once for this request; surface the failure.
		return resp, nil
	}

	refreshed, err := t.refresh(req.Context())
	if err != nil {
		t.logger().Debug("token refresh failed", zap.Error(err))
		t.expireSession()
		return resp, nil
	}

	retry, ok := t.rewind(req)
	if !ok {
		return resp, nil
	}
	_ = resp.Body.Close()

	retry = retry.Clone(withRetryMarker(req.Context()))
	retry.Header.Set("Authorization", "Bearer "+refreshed.AccessToken)
	t.logger().Debug("retrying request with refreshed token",
		zap.String("url", req.URL.String()))
	// Re-enter the pipeline: the context marker stops a second refresh if
	// the retry is rejected too.
	return t.RoundTrip(retry)
}

func (t *Transport) readTokens() TokenPair {
	if t.Store == nil {
		return TokenPair{}
	}
	pair, err := t.Store.Read()
	if err != nil {
		t.logger().Warn("token store read failed", zap.Error(err))
		return TokenPair{}
	}
	return pair
}

// refresh performs the refresh exchange, coalescing concurrent callers into a
// single network call keyed by the refresh token they would present.
func (t *Transport) refresh(ctx context.Context) (TokenPair, error) {
	pair := t.readTokens()
	if pair.RefreshToken == "" {
		return TokenPair{}, errors.New("no refresh token available")
	}

	result, err, _ := t.group.Do(pair.RefreshToken, func() (any, error) {
		return t.exchangeRefreshToken(ctx, pair.RefreshToken)
	})
	if err != nil {
		return TokenPair{}, err
	}
	return result.(TokenPair), nil
}

func (t *Transport) exchangeRefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return TokenPair{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.RefreshURL, bytes.NewReader(payload))
	if err != nil {
		return TokenPair{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("refresh exchange failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return TokenPair{}, decodeError(resp)
	}

	var refreshed TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&refreshed); err != nil {
		return TokenPair{}, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if !refreshed.Complete() {
		return TokenPair{}, errors.New("refresh response missing tokens")
	}
	if t.Store != nil {
		if err := t.Store.Write(refreshed); err != nil {
			t.logger().Warn("failed to persist refreshed tokens", zap.Error(err))
		}
	}
	return refreshed, nil
}

// rewind produces a request whose body can be replayed. Requests with a
// one-shot body that advertises no GetBody cannot be retried.
func (t *Transport) rewind(req *http.Request) (*http.Request, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, true
}

func (t *Transport) expireSession() {
	if t.Store != nil {
		if err := t.Store.Clear(); err != nil {
			t.logger().Warn("failed to clear token store", zap.Error(err))
		}
	}
	if t.OnSessionExpired != nil {
		t.OnSessionExpired()
	}
}
