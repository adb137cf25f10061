package strava

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osse101/KudosBot_Go/internal/domain"
	"github.com/osse101/KudosBot_Go/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, st store.Store, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		ClientID:     "12345",
		ClientSecret: "secret",
		URLBase:      "https://bot.example.com",
		AuthBase:     srv.URL,
		APIBase:      srv.URL,
	}, st)
}

func TestAuthorizeURL(t *testing.T) {
	c := NewClient(Config{
		ClientID: "12345",
		URLBase:  "https://bot.example.com",
	}, newTestStore(t))

	raw := c.AuthorizeURL("state-token")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "www.strava.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "12345", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "https://bot.example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "auto", q.Get("approval_prompt"))
	assert.Equal(t, "activity:read,profile:read_all,read", q.Get("scope"))
	assert.Equal(t, "state-token", q.Get("state"))
}

func TestExchangeCodePreservesDiscordLink(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Upsert("123", domain.LinkedAccount{DiscordID: "discord-1"}))

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"athlete": map[string]interface{}{
				"id":      123,
				"profile": "https://example.com/avatar.jpg",
			},
		})
	})

	c := newTestClient(t, st, mux)

	athleteID, err := c.ExchangeCode(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "123", athleteID)

	acct := st.GetOrDefault("123")
	assert.Equal(t, "new-access", acct.AccessToken)
	assert.Equal(t, "new-refresh", acct.RefreshToken)
	assert.Equal(t, "https://example.com/avatar.jpg", acct.Photo)
	assert.Equal(t, "discord-1", acct.DiscordID, "existing linkage must survive re-authorization")
}

func TestExchangeCodeFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Bad Request"}`, http.StatusBadRequest)
	})

	c := newTestClient(t, newTestStore(t), mux)

	_, err := c.ExchangeCode(context.Background(), "bad-code")
	assert.ErrorIs(t, err, domain.ErrExchangeFailed)
	assert.Contains(t, err.Error(), "Bad Request")
}

func TestDoRefreshesOnceOn401(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Upsert("9", domain.LinkedAccount{
		AccessToken:  "stale",
		RefreshToken: "refresh-9",
	}))

	var resourceCalls, refreshCalls int
	var bearers []string

	mux := http.NewServeMux()
	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls++
		bearers = append(bearers, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-9", r.PostForm.Get("refresh_token"))

		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "fresh",
			"refresh_token": "refresh-9b",
		})
	})

	c := newTestClient(t, st, mux)

	resp, err := c.Do(context.Background(), "9", http.MethodGet, c.cfg.APIBase+"/resource", false)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, resourceCalls, "exactly one retry after refresh")
	assert.Equal(t, 1, refreshCalls)
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, bearers)

	acct := st.GetOrDefault("9")
	assert.Equal(t, "fresh", acct.AccessToken)
	assert.Equal(t, "refresh-9b", acct.RefreshToken)
}

func TestDoNeverRetriesMoreThanOnce(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Upsert("9", domain.LinkedAccount{
		AccessToken:  "stale",
		RefreshToken: "refresh-9",
	}))

	var resourceCalls, refreshCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "still-bad",
			"refresh_token": "refresh-9b",
		})
	})

	c := newTestClient(t, st, mux)

	_, err := c.Do(context.Background(), "9", http.MethodGet, c.cfg.APIBase+"/resource", false)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 2, resourceCalls, "never more than two physical requests")
	assert.Equal(t, 1, refreshCalls, "never more than one refresh")
}

func TestDoSuppressedRefresh(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Upsert("9", domain.LinkedAccount{AccessToken: "stale"}))

	var resourceCalls, refreshCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	})

	c := newTestClient(t, st, mux)

	_, err := c.Do(context.Background(), "9", http.MethodPost, c.cfg.APIBase+"/resource", true)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, 1, resourceCalls)
	assert.Equal(t, 0, refreshCalls, "suppressed call must not refresh")
}

func TestDoPassesThroughOtherStatuses(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Upsert("9", domain.LinkedAccount{AccessToken: "a"}))

	mux := http.NewServeMux()
	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	c := newTestClient(t, st, mux)

	resp, err := c.Do(context.Background(), "9", http.MethodGet, c.cfg.APIBase+"/resource", false)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDoRefreshFailure(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Upsert("9", domain.LinkedAccount{
		AccessToken:  "stale",
		RefreshToken: "revoked",
	}))

	var resourceCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/resource", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	c := newTestClient(t, st, mux)

	_, err := c.Do(context.Background(), "9", http.MethodGet, c.cfg.APIBase+"/resource", false)
	assert.ErrorIs(t, err, domain.ErrRefreshFailed)
	assert.Equal(t, 1, resourceCalls, "no retry when the refresh fails")
}

func TestActivityFetch(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Upsert("9", domain.LinkedAccount{AccessToken: "a"}))

	mux := http.NewServeMux()
	mux.HandleFunc("/activities/555", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":        "Morning Run",
			"sport_type":  "TrailRun",
			"distance":    1609.34,
			"moving_time": 600,
		})
	})

	c := newTestClient(t, st, mux)

	activity, err := c.Activity(context.Background(), "9", 555)
	require.NoError(t, err)
	assert.Equal(t, int64(555), activity.ID)
	assert.Equal(t, "Morning Run", activity.Name)
	assert.Equal(t, "TrailRun", activity.SportType)
	assert.InDelta(t, 1609.34, activity.Distance, 0.001)
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "****", RedactToken(""))
	assert.Equal(t, "****", RedactToken("abcd"))
	assert.Equal(t, "****6789", RedactToken("123456789"))
}
