package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/signal-site/relay/internal/dedup"
	"github.com/signal-site/relay/internal/dlq"
	"github.com/signal-site/relay/internal/fulfillment"
	"github.com/signal-site/relay/internal/httputil"
	"github.com/signal-site/relay/internal/logging"
	"github.com/signal-site/relay/internal/metrics"
)

// Session metadata keys set by the storefront at checkout creation.
const (
	metadataProductCode = "product_code"
	metadataPriceID     = "price_id"
)

// Fulfiller completes a purchase after checkout.
type Fulfiller interface {
	Fulfill(ctx context.Context, order fulfillment.Order) error
}

// StripeConfig holds the payment relay settings.
type StripeConfig struct {
	WebhookSecret string
}

// StripeHandler relays checkout.session.completed events into download
// fulfillment.
//
// Except for signature failures this handler always acknowledges 200 to
// Stripe: retrying a webhook whose side effects may already have
// happened causes duplicate emails, and metadata gaps never heal on
// retry. Anything that could not be fulfilled is written to the DLQ for
// manual reconciliation instead.
type StripeHandler struct {
	cfg       StripeConfig
	fulfiller Fulfiller
	deduper   dedup.Deduper
	dlq       dlq.Writer
	logger    *logging.Logger
}

// NewStripeHandler wires the payment relay orchestrator.
func NewStripeHandler(cfg StripeConfig, fulfiller Fulfiller, deduper dedup.Deduper, dlqWriter dlq.Writer, logger *logging.Logger) *StripeHandler {
	if deduper == nil {
		deduper = dedup.NoOpDeduper{}
	}
	if dlqWriter == nil {
		dlqWriter = dlq.NoOpWriter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeHandler{
		cfg:       cfg,
		fulfiller: fulfiller,
		deduper:   deduper,
		dlq:       dlqWriter,
		logger:    logger,
	}
}

// HandleCheckoutCompleted is the POST /webhook/checkout-completed
// endpoint.
func (h *StripeHandler) HandleCheckoutCompleted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues("stripe").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.cfg.WebhookSecret == "" {
		h.logger.ErrorContext(ctx, "stripe webhook secret is not configured")
		metrics.WebhooksTotal.WithLabelValues("stripe", "misconfigured").Inc()
		httputil.WriteError(w, http.StatusInternalServerError, "relay not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	defer r.Body.Close()

	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.WarnContext(ctx, "rejected stripe webhook", logging.Error(err))
		metrics.WebhooksTotal.WithLabelValues("stripe", "unauthorized").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if event.Type != "checkout.session.completed" {
		metrics.WebhooksTotal.WithLabelValues("stripe", "ignored").Inc()
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	seen, err := h.deduper.Seen(ctx, "stripe:"+event.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "dedup check failed, processing anyway", logging.Error(err))
	}
	if seen {
		h.logger.InfoContext(ctx, "suppressed duplicate checkout delivery", logging.EventID(event.ID))
		metrics.DedupHits.WithLabelValues("stripe").Inc()
		metrics.WebhooksTotal.WithLabelValues("stripe", "duplicate").Inc()
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.toDLQ(ctx, event.ID, dlq.ReasonMissingMetadata, "unparseable session object: "+err.Error(), event.Data.Raw)
		h.markProcessed(ctx, event.ID)
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
		return
	}

	order := fulfillment.Order{
		ProductCode: session.Metadata[metadataProductCode],
		PriceID:     session.Metadata[metadataPriceID],
		SessionID:   session.ID,
	}
	if session.CustomerDetails != nil {
		order.Email = session.CustomerDetails.Email
	}

	if order.Email == "" || order.PriceID == "" {
		// Metadata gaps never heal on retry; acknowledge and park the
		// record for a human.
		h.toDLQ(ctx, event.ID, dlq.ReasonMissingMetadata, "session missing customer email or price id", event.Data.Raw)
		h.markProcessed(ctx, event.ID)
		metrics.WebhooksTotal.WithLabelValues("stripe", "unfulfillable").Inc()
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
		return
	}

	if err := h.fulfiller.Fulfill(ctx, order); err != nil {
		h.logger.ErrorContext(ctx, "fulfillment failed", logging.EventID(event.ID), logging.Error(err))
		h.toDLQ(ctx, event.ID, fulfillmentReason(err), err.Error(), event.Data.Raw)
		h.markProcessed(ctx, event.ID)
		metrics.WebhooksTotal.WithLabelValues("stripe", "unfulfillable").Inc()
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
		return
	}

	h.markProcessed(ctx, event.ID)
	h.logger.InfoContext(ctx, "fulfilled checkout", logging.EventID(event.ID))
	metrics.WebhooksTotal.WithLabelValues("stripe", "fulfilled").Inc()
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// markProcessed commits the dedup key once the delivery reached a durable
// outcome: fulfilled, or parked in the DLQ for an operator.
func (h *StripeHandler) markProcessed(ctx context.Context, eventID string) {
	if err := h.deduper.Mark(ctx, "stripe:"+eventID); err != nil {
		h.logger.WarnContext(ctx, "failed to mark delivery as processed",
			logging.EventID(eventID), logging.Error(err))
	}
}

func (h *StripeHandler) toDLQ(ctx context.Context, eventID, reason, detail string, payload []byte) {
	rec := dlq.NewRecord("stripe", eventID, reason, detail, payload)
	if err := h.dlq.Write(ctx, rec); err != nil {
		// Last resort: at least the log line survives.
		h.logger.ErrorContext(ctx, "failed to write manual-fulfillment record",
			logging.EventID(eventID), logging.Reason(reason), logging.Error(err))
	}
}

func fulfillmentReason(err error) string {
	var stepErr *fulfillment.StepError
	if !errors.As(err, &stepErr) {
		return dlq.ReasonSendFailed
	}
	switch stepErr.Step {
	case "price":
		return dlq.ReasonPriceLookup
	case "artifact":
		return dlq.ReasonNoArtifact
	case "presign":
		return dlq.ReasonPresignFailed
	default:
		return dlq.ReasonSendFailed
	}
}
