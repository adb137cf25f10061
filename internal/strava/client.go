// Package strava wraps the Strava OAuth and REST API: authorization URL
// construction, code exchange, token refresh, and authenticated requests
// with a single refresh-and-retry on expiry.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/osse101/KudosBot_Go/internal/domain"
	"github.com/osse101/KudosBot_Go/internal/logger"
	"github.com/osse101/KudosBot_Go/internal/metrics"
	"github.com/osse101/KudosBot_Go/internal/store"
)

// Production Strava endpoints. Overridable in Config for tests.
const (
	DefaultAuthBase = "https://www.strava.com"
	DefaultAPIBase  = "https://www.strava.com/api/v3"

	// Scopes requested during authorization.
	oauthScopes = "activity:read,profile:read_all,read"
)

// Config holds the Strava application credentials and endpoint bases.
type Config struct {
	ClientID     string
	ClientSecret string

	// URLBase is this bot's public base URL; the OAuth redirect URI is
	// URLBase + "/callback".
	URLBase string

	// AuthBase and APIBase default to the production Strava endpoints.
	AuthBase string
	APIBase  string
}

// Client performs Strava API calls on behalf of linked athletes, reading
// and persisting credentials through the store.
type Client struct {
	cfg   Config
	http  *http.Client
	store store.Store
}

// NewClient creates a Strava client backed by st for credential state.
func NewClient(cfg Config, st store.Store) *Client {
	if cfg.AuthBase == "" {
		cfg.AuthBase = DefaultAuthBase
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		store: st,
	}
}

// AuthorizeURL builds the Strava authorization URL carrying state as the
// opaque value returned on the callback.
func (c *Client) AuthorizeURL(state string) string {
	q := url.Values{
		"client_id":       {c.cfg.ClientID},
		"response_type":   {"code"},
		"redirect_uri":    {c.cfg.URLBase + "/callback"},
		"approval_prompt": {"auto"},
		"scope":           {oauthScopes},
		"state":           {state},
	}
	return c.cfg.AuthBase + "/oauth/authorize?" + q.Encode()
}

// tokenResponse is the shape of Strava's token endpoint responses.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Athlete      struct {
		ID      int64  `json:"id"`
		Profile string `json:"profile"`
	} `json:"athlete"`
}

// ExchangeCode trades an authorization code for a token pair and persists
// it, returning the athlete id the tokens belong to. An existing Discord
// linkage on the record is preserved.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
	}

	resp, err := c.postForm(ctx, c.cfg.APIBase+"/oauth/token", form)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrExchangeFailed, resp.StatusCode, body)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", domain.ErrExchangeFailed, err)
	}

	athleteID := strconv.FormatInt(tok.Athlete.ID, 10)

	// Read-before-merge so a previously linked Discord user survives
	// a re-authorization.
	acct := c.store.GetOrDefault(athleteID)
	acct.AccessToken = tok.AccessToken
	acct.RefreshToken = tok.RefreshToken
	acct.Photo = tok.Athlete.Profile
	if err := c.store.Upsert(athleteID, acct); err != nil {
		return "", fmt.Errorf("failed to persist credentials: %w", err)
	}

	return athleteID, nil
}

// Refresh mints a new token pair from the stored refresh token and
// persists it. The Discord linkage and avatar are preserved.
func (c *Client) Refresh(ctx context.Context, athleteID string) error {
	log := logger.FromContext(ctx)

	acct := c.store.GetOrDefault(athleteID)
	log.Info("Refreshing access token", "athlete_id", athleteID, "refresh_token", RedactToken(acct.RefreshToken))

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"refresh_token": {acct.RefreshToken},
	}

	resp, err := c.postForm(ctx, c.cfg.AuthBase+"/oauth/token", form)
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		log.Error("Token refresh rejected", "athlete_id", athleteID, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", domain.ErrRefreshFailed, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrRefreshFailed, err)
	}

	// Re-read before merging; the record may have changed while the
	// refresh request was in flight.
	acct = c.store.GetOrDefault(athleteID)
	acct.AccessToken = tok.AccessToken
	acct.RefreshToken = tok.RefreshToken
	if err := c.store.Upsert(athleteID, acct); err != nil {
		return fmt.Errorf("failed to persist refreshed credentials: %w", err)
	}

	metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return nil
}

// Do issues an authenticated request for athleteID. On a 401 it refreshes
// the access token once and reissues the request once; a second 401 is
// domain.ErrUnauthorized. With suppressRefresh set, a 401 returns
// domain.ErrUnauthorized immediately and no refresh happens. At most two
// physical requests and one refresh occur per call. Any non-401 response
// is returned as-is for the caller to interpret.
func (c *Client) Do(ctx context.Context, athleteID, method, rawURL string, suppressRefresh bool) (*http.Response, error) {
	resp, err := c.issue(ctx, athleteID, method, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if suppressRefresh {
		return nil, fmt.Errorf("%w: %s %s", domain.ErrUnauthorized, method, rawURL)
	}

	if err := c.Refresh(ctx, athleteID); err != nil {
		return nil, err
	}

	resp, err = c.issue(ctx, athleteID, method, rawURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s after refresh", domain.ErrUnauthorized, method, rawURL)
	}
	return resp, nil
}

// Activity fetches the activity detail for a linked athlete.
func (c *Client) Activity(ctx context.Context, athleteID string, activityID int64) (*domain.Activity, error) {
	resp, err := c.Do(ctx, athleteID, http.MethodGet, fmt.Sprintf("%s/activities/%d", c.cfg.APIBase, activityID), false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("activity fetch returned status %d", resp.StatusCode)
	}

	var activity domain.Activity
	if err := json.NewDecoder(resp.Body).Decode(&activity); err != nil {
		return nil, fmt.Errorf("failed to decode activity: %w", err)
	}
	activity.ID = activityID
	return &activity, nil
}

// Deauthorize revokes the athlete's authorization. Refresh is suppressed:
// a successful revoke invalidates the token, so a refresh-and-retry after
// 401 would re-authorize what the user just asked to sever.
func (c *Client) Deauthorize(ctx context.Context, athleteID string) error {
	resp, err := c.Do(ctx, athleteID, http.MethodPost, c.cfg.AuthBase+"/oauth/deauthorize", true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deauthorize returned status %d", resp.StatusCode)
	}
	return nil
}

// issue performs one physical request with the current bearer token.
func (c *Client) issue(ctx context.Context, athleteID, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	acct := c.store.GetOrDefault(athleteID)
	req.Header.Set("Authorization", "Bearer "+acct.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	metrics.StravaRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// postForm sends an unauthenticated form POST, used by the token endpoints.
func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return c.http.Do(req)
}

// ActivityURL returns the public page for an activity.
func ActivityURL(activityID int64) string {
	return fmt.Sprintf("https://www.strava.com/activities/%d", activityID)
}

// AthleteURL returns the public profile page for an athlete.
func AthleteURL(athleteID string) string {
	return "https://www.strava.com/athletes/" + athleteID
}

// RedactToken masks a credential for log output, keeping the last four
// characters for correlation.
func RedactToken(token string) string {
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
