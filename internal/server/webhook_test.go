package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/osse101/KudosBot_Go/internal/domain"
	"github.com/osse101/KudosBot_Go/internal/linktoken"
	"github.com/osse101/KudosBot_Go/internal/store"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) Process(ctx context.Context, athleteID string, activityID int64) error {
	args := m.Called(ctx, athleteID, activityID)
	return args.Error(0)
}

type MockOAuth struct {
	mock.Mock
}

func (m *MockOAuth) AuthorizeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuth) ExchangeCode(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

type MockAnnouncer struct {
	mock.Mock
}

func (m *MockAnnouncer) AnnounceLink(ctx context.Context, discordID, athleteID string) error {
	args := m.Called(ctx, discordID, athleteID)
	return args.Error(0)
}

type fixture struct {
	server    *Server
	broker    *linktoken.Broker
	store     store.Store
	processor *MockProcessor
	oauth     *MockOAuth
	announcer *MockAnnouncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "accounts.json"))
	require.NoError(t, err)

	f := &fixture{
		broker:    linktoken.NewBroker(linktoken.DefaultTTL),
		store:     st,
		processor: &MockProcessor{},
		oauth:     &MockOAuth{},
		announcer: &MockAnnouncer{},
	}
	f.server = New(Config{VerifyToken: "shared-secret"}, Deps{
		Broker:    f.broker,
		Store:     f.store,
		OAuth:     f.oauth,
		Processor: f.processor,
		Announcer: f.announcer,
	})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestWebhookVerify(t *testing.T) {
	f := newFixture(t)

	t.Run("valid subscription", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=shared-secret&hub.challenge=ch-123", nil)
		w := f.do(req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"hub.challenge":"ch-123"}`, w.Body.String())
	})

	t.Run("token mismatch", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=ch-123", nil)
		w := f.do(req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("wrong mode", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/webhook?hub.mode=unsubscribe&hub.verify_token=shared-secret", nil)
		w := f.do(req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing parameters get no body", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/webhook?hub.challenge=ch-123", nil)
		w := f.do(req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWebhookEventTriggersPipeline(t *testing.T) {
	f := newFixture(t)
	f.processor.On("Process", mock.Anything, "777", int64(555)).Return(nil).Once()

	body := `{"aspect_type":"create","object_id":555,"object_type":"activity","owner_id":777}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EVENT_RECEIVED", w.Body.String())
	f.processor.AssertExpectations(t)
	f.processor.AssertNumberOfCalls(t, "Process", 1)
}

func TestWebhookEventIgnoresOtherCombinations(t *testing.T) {
	f := newFixture(t)

	bodies := []string{
		`{"aspect_type":"update","object_id":555,"object_type":"activity","owner_id":777}`,
		`{"aspect_type":"create","object_id":555,"object_type":"athlete","owner_id":777}`,
		`{"aspect_type":"delete","object_id":555,"object_type":"activity","owner_id":777}`,
	}
	for _, body := range bodies {
		req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
		w := f.do(req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "EVENT_RECEIVED", w.Body.String())
	}

	f.processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookEventSwallowsProcessingErrors(t *testing.T) {
	f := newFixture(t)
	f.processor.On("Process", mock.Anything, "777", int64(555)).Return(assert.AnError)

	body := `{"aspect_type":"create","object_id":555,"object_type":"activity","owner_id":777}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body))
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code, "processing failures must not surface to Strava")
	assert.Equal(t, "EVENT_RECEIVED", w.Body.String())
}

func TestWebhookEventMalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{not json"))
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "EVENT_RECEIVED", w.Body.String())
	f.processor.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthorizeRedirect(t *testing.T) {
	f := newFixture(t)
	f.oauth.On("AuthorizeURL", "tok-1").Return("https://www.strava.com/oauth/authorize?state=tok-1")

	req := httptest.NewRequest("GET", "/authorize?token=tok-1", nil)
	w := f.do(req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://www.strava.com/oauth/authorize?state=tok-1", w.Header().Get("Location"))
}

func TestCallbackLinksAccount(t *testing.T) {
	f := newFixture(t)

	token, err := f.broker.Mint("discord-1")
	require.NoError(t, err)

	f.oauth.On("ExchangeCode", mock.Anything, "the-code").Run(func(args mock.Arguments) {
		// The real exchange persists tokens before the handler adds the
		// Discord linkage.
		require.NoError(t, f.store.Upsert("123", domain.LinkedAccount{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Photo:        "https://example.com/p.jpg",
		}))
	}).Return("123", nil)
	f.announcer.On("AnnounceLink", mock.Anything, "discord-1", "123").Return(nil)

	req := httptest.NewRequest("GET", "/callback?code=the-code&state="+token, nil)
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	acct := f.store.GetOrDefault("123")
	assert.Equal(t, "discord-1", acct.DiscordID)
	assert.Equal(t, "access", acct.AccessToken, "exchange result must survive the linkage merge")
	f.announcer.AssertExpectations(t)
}

func TestCallbackUnknownState(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/callback?code=the-code&state=never-minted", nil)
	w := f.do(req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "invalid link token")
	f.oauth.AssertNotCalled(t, "ExchangeCode", mock.Anything, mock.Anything)
}

func TestCallbackStateIsOneShot(t *testing.T) {
	f := newFixture(t)

	token, err := f.broker.Mint("discord-1")
	require.NoError(t, err)

	f.oauth.On("ExchangeCode", mock.Anything, "the-code").Return("123", nil)
	f.announcer.On("AnnounceLink", mock.Anything, "discord-1", "123").Return(nil)

	req := httptest.NewRequest("GET", "/callback?code=the-code&state="+token, nil)
	assert.Equal(t, http.StatusOK, f.do(req).Code)

	// Replaying the same state must fail.
	req = httptest.NewRequest("GET", "/callback?code=the-code&state="+token, nil)
	assert.Equal(t, http.StatusInternalServerError, f.do(req).Code)
}

func TestCallbackExchangeFailure(t *testing.T) {
	f := newFixture(t)

	token, err := f.broker.Mint("discord-1")
	require.NoError(t, err)

	f.oauth.On("ExchangeCode", mock.Anything, "bad-code").Return("", domain.ErrExchangeFailed)

	req := httptest.NewRequest("GET", "/callback?code=bad-code&state="+token, nil)
	w := f.do(req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	f.announcer.AssertNotCalled(t, "AnnounceLink", mock.Anything, mock.Anything, mock.Anything)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
