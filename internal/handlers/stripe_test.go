package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signal-site/relay/internal/dlq"
	"github.com/signal-site/relay/internal/fulfillment"
)

const stripeTestSecret = "whsec_test"

// stripeSignature builds a valid Stripe-Signature header for payload:
// v1 is HMAC-SHA256 over "<timestamp>.<payload>".
func stripeSignature(payload []byte, at time.Time, secret string) string {
	signed := fmt.Sprintf("%d.%s", at.Unix(), payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signed))
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

type mockFulfiller struct {
	fulfillFunc func(ctx context.Context, order fulfillment.Order) error
	calls       []fulfillment.Order
}

func (m *mockFulfiller) Fulfill(ctx context.Context, order fulfillment.Order) error {
	m.calls = append(m.calls, order)
	if m.fulfillFunc != nil {
		return m.fulfillFunc(ctx, order)
	}
	return nil
}

type recordingDLQ struct {
	records []dlq.Record
}

func (r *recordingDLQ) Write(ctx context.Context, rec dlq.Record) error {
	r.records = append(r.records, rec)
	return nil
}

func checkoutEvent(sessionJSON string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":%s}}`, sessionJSON))
}

func postStripe(t *testing.T, h *StripeHandler, payload []byte, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/checkout-completed", bytes.NewReader(payload))
	if header != "" {
		req.Header.Set("Stripe-Signature", header)
	}
	rec := httptest.NewRecorder()
	h.HandleCheckoutCompleted(rec, req)
	return rec
}

func TestStripeHandler_InvalidSignature(t *testing.T) {
	fulfiller := &mockFulfiller{}
	h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, fulfiller, nil, nil, nil)

	payload := checkoutEvent(`{"id":"cs_1"}`)
	rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), "whsec_wrong"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fulfiller.calls)
}

func TestStripeHandler_MissingSignature(t *testing.T) {
	fulfiller := &mockFulfiller{}
	h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, fulfiller, nil, nil, nil)

	rec := postStripe(t, h, checkoutEvent(`{"id":"cs_1"}`), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, fulfiller.calls)
}

func TestStripeHandler_IrrelevantEventType(t *testing.T) {
	fulfiller := &mockFulfiller{}
	queue := &recordingDLQ{}
	h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, fulfiller, nil, queue, nil)

	payload := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
	rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fulfiller.calls, "irrelevant event types are no-ops")
	assert.Empty(t, queue.records)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp["status"])
}

func TestStripeHandler_Fulfills(t *testing.T) {
	fulfiller := &mockFulfiller{}
	queue := &recordingDLQ{}
	h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, fulfiller, nil, queue, nil)

	payload := checkoutEvent(`{"id":"cs_1","customer_details":{"email":"buyer@example.com"},"metadata":{"product_code":"field-guide","price_id":"price_1"}}`)
	rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fulfiller.calls, 1)

	order := fulfiller.calls[0]
	assert.Equal(t, "buyer@example.com", order.Email)
	assert.Equal(t, "field-guide", order.ProductCode)
	assert.Equal(t, "price_1", order.PriceID)
	assert.Equal(t, "cs_1", order.SessionID)
	assert.Empty(t, queue.records)
}

func TestStripeHandler_MissingEmail(t *testing.T) {
	fulfiller := &mockFulfiller{}
	queue := &recordingDLQ{}
	h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, fulfiller, nil, queue, nil)

	payload := checkoutEvent(`{"id":"cs_1","metadata":{"price_id":"price_1"}}`)
	rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

	// Always 200 to Stripe; the gap is parked for a human instead.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fulfiller.calls, "no fulfillment without an email")

	require.Len(t, queue.records, 1)
	assert.Equal(t, dlq.ReasonMissingMetadata, queue.records[0].Reason)
	assert.Equal(t, "evt_1", queue.records[0].EventID)
}

func TestStripeHandler_MissingPriceID(t *testing.T) {
	fulfiller := &mockFulfiller{}
	queue := &recordingDLQ{}
	h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, fulfiller, nil, queue, nil)

	payload := checkoutEvent(`{"id":"cs_1","customer_details":{"email":"b@e.com"},"metadata":{}}`)
	rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fulfiller.calls)
	require.Len(t, queue.records, 1)
	assert.Equal(t, dlq.ReasonMissingMetadata, queue.records[0].Reason)
}

func TestStripeHandler_FulfillmentFailureStill200(t *testing.T) {
	fulfiller := &mockFulfiller{
		fulfillFunc: func(ctx context.Context, order fulfillment.Order) error {
			return &fulfillment.StepError{Step: "artifact", Err: fulfillment.ErrNoArtifact}
		},
	}
	queue := &recordingDLQ{}
	h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, fulfiller, nil, queue, nil)

	payload := checkoutEvent(`{"id":"cs_1","customer_details":{"email":"b@e.com"},"metadata":{"price_id":"price_1"}}`)
	rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

	assert.Equal(t, http.StatusOK, rec.Code, "provider must not retry a fulfilled-or-parked webhook")
	require.Len(t, queue.records, 1)
	assert.Equal(t, dlq.ReasonNoArtifact, queue.records[0].Reason)
}

func TestStripeHandler_MarksDedupKeyOnDurableOutcomes(t *testing.T) {
	t.Run("fulfilled", func(t *testing.T) {
		deduper := newMemDeduper()
		h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, &mockFulfiller{}, deduper, nil, nil)

		payload := checkoutEvent(`{"id":"cs_1","customer_details":{"email":"b@e.com"},"metadata":{"price_id":"price_1"}}`)
		rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, deduper.marked["stripe:evt_1"], "a fulfilled delivery must commit its key")
	})

	t.Run("parked in dlq", func(t *testing.T) {
		deduper := newMemDeduper()
		queue := &recordingDLQ{}
		h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, &mockFulfiller{}, deduper, queue, nil)

		payload := checkoutEvent(`{"id":"cs_1","metadata":{"price_id":"price_1"}}`)
		rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, queue.records, 1)
		assert.True(t, deduper.marked["stripe:evt_1"], "a parked delivery must commit its key")
	})

	t.Run("ignored event type does not mark", func(t *testing.T) {
		deduper := newMemDeduper()
		h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, &mockFulfiller{}, deduper, nil, nil)

		payload := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`)
		rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, deduper.marked)
	})
}

func TestStripeHandler_DuplicateDelivery(t *testing.T) {
	fulfiller := &mockFulfiller{}
	h := NewStripeHandler(StripeConfig{WebhookSecret: stripeTestSecret}, fulfiller, stubDeduper{seen: true}, nil, nil)

	payload := checkoutEvent(`{"id":"cs_1","customer_details":{"email":"b@e.com"},"metadata":{"price_id":"price_1"}}`)
	rec := postStripe(t, h, payload, stripeSignature(payload, time.Now(), stripeTestSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fulfiller.calls, "duplicates must not fulfill twice")
}

func TestStripeHandler_MissingSecretIsMisconfiguration(t *testing.T) {
	h := NewStripeHandler(StripeConfig{}, &mockFulfiller{}, nil, nil, nil)

	rec := postStripe(t, h, checkoutEvent(`{"id":"cs_1"}`), "t=1,v1=00")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
