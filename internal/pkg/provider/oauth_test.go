package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshUsesParamsAuthStyle(t *testing.T) {
	ts := newTokenServer(t)
	ts.response = func(r *http.Request) (int, map[string]any) {
		_, _, hasBasic := r.BasicAuth()
		assert.False(t, hasBasic)
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret", r.PostForm.Get("client_secret"))
		return http.StatusOK, map[string]any{"access_token": "a"}
	}
	cfg := testConfig(ts.URL)
	cfg.UseBasicAuth = false
	cfg.DefaultExpiration = 1800
	h := NewHandler(cfg, ts.Client())
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	res, err := h.Refresh(context.Background(), "r")
	require.NoError(t, err)
	assert.Equal(t, "a", res.AccessToken)
	assert.Equal(t, "r", res.RefreshToken)
	// neither expires_in nor expires_at: fall back to the configured default
	assert.Equal(t, 1800, res.ExpiresIn)
	assert.Equal(t, now.Add(30*time.Minute), res.ExpiresAt)
}

func TestNormalizeExpiresAt(t *testing.T) {
	ts := newTokenServer(t)
	now := time.Now().Truncate(time.Second)
	ts.response = func(*http.Request) (int, map[string]any) {
		return http.StatusOK, map[string]any{"access_token": "a", "expires_at": now.Add(10 * time.Minute).Unix()}
	}
	h := NewHandler(testConfig(ts.URL), ts.Client())
	h.now = func() time.Time { return now }

	res, err := h.Exchange(context.Background(), "code", "http://localhost/cb")
	require.NoError(t, err)
	assert.Equal(t, 600, res.ExpiresIn)
	assert.Equal(t, now.Add(10*time.Minute).Unix(), res.ExpiresAt.Unix())
}

func TestExchangeRequiresCode(t *testing.T) {
	h := NewHandler(testConfig("http://127.0.0.1:1/token"), nil)
	_, err := h.Exchange(context.Background(), " ", "http://localhost/cb")
	assert.ErrorIs(t, err, ErrAuthorization)
}

func TestRedirectURIPerOwnerKind(t *testing.T) {
	h := NewHandler(testConfig("http://127.0.0.1:1/token"), nil)
	assert.Contains(t, h.RedirectURI("member"), "/auth/member/")
	assert.Contains(t, h.RedirectURI("proxy_account"), "/auth/proxy-account/")
}
