package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/osse101/KudosBot_Go/internal/domain"
	"github.com/osse101/KudosBot_Go/internal/logger"
	"github.com/osse101/KudosBot_Go/internal/metrics"
)

// eventAck is the fixed acknowledgment body Strava expects on every event
// delivery, whether or not the event was acted upon.
const eventAck = "EVENT_RECEIVED"

// handleWebhookVerify answers Strava's subscription handshake.
// A request missing hub.mode or hub.verify_token is deliberately left
// unanswered (empty body, no error page) per Strava's expectation.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "" || token == "" {
		return
	}

	if mode == "subscribe" && token == s.cfg.VerifyToken {
		log.Info("Webhook subscription verified")
		respondJSON(w, http.StatusOK, map[string]string{"hub.challenge": challenge})
		return
	}

	log.Warn("Webhook verify token mismatch", "mode", mode)
	w.WriteHeader(http.StatusForbidden)
}

// handleWebhookEvent dispatches incoming activity events. Strava retries
// deliveries that don't get a prompt 200, so every outcome, including
// processing failures, is acknowledged with 200 and the failure only
// logged.
func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	defer func() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(eventAck))
	}()

	var event domain.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Warn("Failed to decode webhook event", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return
	}
	if err := s.validate.Struct(event); err != nil {
		log.Warn("Webhook event failed validation", "error", err)
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return
	}

	if event.ObjectType != domain.ObjectTypeActivity || event.AspectType != domain.AspectTypeCreate {
		log.Debug("Ignoring webhook event",
			"object_type", event.ObjectType,
			"aspect_type", event.AspectType)
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return
	}

	athleteID := strconv.FormatInt(event.OwnerID, 10)
	if err := s.deps.Processor.Process(r.Context(), athleteID, event.ObjectID); err != nil {
		log.Error("Failed to process activity event",
			"athlete_id", athleteID,
			"activity_id", event.ObjectID,
			"error", err)
		metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(metrics.OutcomeProcessed).Inc()
}

// handleAuthorize redirects the browser to Strava's authorization page,
// threading the one-time token through as opaque state.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	http.Redirect(w, r, s.deps.OAuth.AuthorizeURL(token), http.StatusFound)
}

// handleCallback completes the OAuth flow: resolve the state token back to
// the Discord user who initiated the link, exchange the code, and record
// the linkage.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	discordID, ok := s.deps.Broker.Consume(state)
	if !ok {
		log.Error("Callback with unknown or consumed state token")
		http.Error(w, domain.ErrMsgLinkTokenInvalid, http.StatusInternalServerError)
		return
	}

	athleteID, err := s.deps.OAuth.ExchangeCode(ctx, code)
	if err != nil {
		log.Error("Code exchange failed", "error", err)
		http.Error(w, "failed to link Strava account", http.StatusInternalServerError)
		return
	}

	// Read-before-merge: the exchange just persisted fresh tokens.
	acct := s.deps.Store.GetOrDefault(athleteID)
	acct.DiscordID = discordID
	if err := s.deps.Store.Upsert(athleteID, acct); err != nil {
		log.Error("Failed to persist linkage", "athlete_id", athleteID, "error", err)
		http.Error(w, "failed to link Strava account", http.StatusInternalServerError)
		return
	}

	log.Info("Strava account linked", "athlete_id", athleteID, "discord_id", discordID)

	if s.deps.Announcer != nil {
		if err := s.deps.Announcer.AnnounceLink(ctx, discordID, athleteID); err != nil {
			log.Warn("Failed to announce link", "error", err)
		}
	}

	w.Write([]byte("ok"))
}
