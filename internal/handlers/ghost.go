package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/signal-site/relay/internal/campaign"
	"github.com/signal-site/relay/internal/dedup"
	"github.com/signal-site/relay/internal/ghost"
	"github.com/signal-site/relay/internal/httputil"
	"github.com/signal-site/relay/internal/logging"
	"github.com/signal-site/relay/internal/metrics"
	"github.com/signal-site/relay/internal/relay"
	"github.com/signal-site/relay/internal/signature"
)

// maxBodySize caps webhook bodies; Ghost posts are well under this.
const maxBodySize = 2 << 20

// CampaignService is the slice of the email-marketing API the Ghost
// relay needs.
type CampaignService interface {
	CreateCampaign(ctx context.Context, params relay.CampaignParams) (int, error)
	ScheduleCampaign(ctx context.Context, id int) error
}

// GhostConfig holds the Ghost relay settings.
type GhostConfig struct {
	WebhookSecret    string
	SiteURL          string
	ListID           int
	SendDelayMinutes int
}

// GhostHandler relays Ghost post.published webhooks into the email
// marketing service as campaigns.
type GhostHandler struct {
	cfg       GhostConfig
	campaigns CampaignService
	composer  *campaign.Composer
	deduper   dedup.Deduper
	logger    *logging.Logger
	now       func() time.Time
}

// NewGhostHandler wires the Ghost relay orchestrator.
func NewGhostHandler(cfg GhostConfig, campaigns CampaignService, composer *campaign.Composer, deduper dedup.Deduper, logger *logging.Logger) *GhostHandler {
	if deduper == nil {
		deduper = dedup.NoOpDeduper{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GhostHandler{
		cfg:       cfg,
		campaigns: campaigns,
		composer:  composer,
		deduper:   deduper,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HandlePostPublished is the POST /webhook/post-published endpoint.
//
// Fail closed on signature problems; treat non-publish events as
// successful no-ops so Ghost does not retry them.
func (h *GhostHandler) HandlePostPublished(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := h.now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues("ghost").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.cfg.WebhookSecret == "" {
		// Operator error: the endpoint is reachable but cannot
		// authenticate anything.
		h.logger.ErrorContext(ctx, "ghost webhook secret is not configured")
		metrics.WebhooksTotal.WithLabelValues("ghost", "misconfigured").Inc()
		httputil.WriteError(w, http.StatusInternalServerError, "relay not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	defer r.Body.Close()

	if !signature.Verify(body, r.Header.Get(signature.Header), h.cfg.WebhookSecret) {
		h.logger.WarnContext(ctx, "rejected ghost webhook with invalid signature")
		metrics.WebhooksTotal.WithLabelValues("ghost", "unauthorized").Inc()
		httputil.WriteError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	event, err := ghost.ParsePublishEvent(body)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues("ghost", "malformed").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if event == nil {
		// Draft saves and unpublish events also fire this webhook.
		metrics.WebhooksTotal.WithLabelValues("ghost", "ignored").Inc()
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	seen, err := h.deduper.Seen(ctx, event.DedupKey())
	if err != nil {
		// Dedup is best effort: losing it must not drop the publish.
		h.logger.WarnContext(ctx, "dedup check failed, processing anyway", logging.Error(err))
	}
	if seen {
		h.logger.InfoContext(ctx, "suppressed duplicate publish delivery", logging.Slug(event.Slug))
		metrics.DedupHits.WithLabelValues("ghost").Inc()
		metrics.WebhooksTotal.WithLabelValues("ghost", "duplicate").Inc()
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	postURL := event.URL(h.cfg.SiteURL)
	sendAt := campaign.SendAt(h.now(), h.cfg.SendDelayMinutes)

	id, err := h.campaigns.CreateCampaign(ctx, relay.CampaignParams{
		Name:    "Signal: " + event.Title,
		Subject: event.Title,
		Body:    h.composer.Render(event, postURL),
		ListIDs: []int{h.cfg.ListID},
		SendAt:  sendAt,
	})
	if err != nil {
		// Creation failure is fatal and the key stays unmarked: the 500
		// makes Ghost retry, and the retry must not be suppressed as a
		// duplicate.
		h.logger.ErrorContext(ctx, "failed to create campaign", logging.Slug(event.Slug), logging.Error(err))
		metrics.WebhooksTotal.WithLabelValues("ghost", "relay_failed").Inc()
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	metrics.CampaignsCreated.Inc()

	if err := h.deduper.Mark(ctx, event.DedupKey()); err != nil {
		h.logger.WarnContext(ctx, "failed to mark delivery as processed", logging.Slug(event.Slug), logging.Error(err))
	}

	if sendAt != nil {
		// The campaign exists either way; a failed schedule is an
		// operator follow-up, not a webhook failure.
		if err := h.campaigns.ScheduleCampaign(ctx, id); err != nil {
			h.logger.ErrorContext(ctx, "campaign created but scheduling failed, manual intervention required",
				logging.CampaignID(id), logging.Error(err))
			metrics.ScheduleFailures.Inc()
		}
	}

	h.logger.InfoContext(ctx, "relayed publish event", logging.Slug(event.Slug), logging.CampaignID(id))
	metrics.WebhooksTotal.WithLabelValues("ghost", "created").Inc()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "created", "id": id})
}
