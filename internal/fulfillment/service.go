// Package fulfillment turns a completed checkout into a download email:
// it resolves the purchased product to an object key, signs a
// time-limited download URL, and sends the confirmation.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/signal-site/relay/internal/metrics"
	"github.com/signal-site/relay/internal/relay"
)

// MetadataDownloadKey is the Stripe product metadata field that may
// carry the object key when the static product table has no entry.
const MetadataDownloadKey = "download_key"

// ErrNoArtifact indicates neither resolution strategy produced an
// object key for the purchased product.
var ErrNoArtifact = errors.New("fulfillment: no download artifact for product")

// Order is the normalized purchase extracted from a checkout session.
type Order struct {
	Email       string
	ProductCode string
	PriceID     string
	SessionID   string
}

// PriceResolver resolves price details from the payment provider.
type PriceResolver interface {
	Resolve(ctx context.Context, priceID string) (*relay.PriceInfo, error)
}

// Service wires the fulfillment steps together.
type Service struct {
	prices   PriceResolver
	presign  Presigner
	mailer   Mailer
	products map[string]string
	from     string
	urlTTL   time.Duration
}

// NewService builds a fulfillment service. products maps product codes
// to object keys and is consulted before provider metadata.
func NewService(prices PriceResolver, presign Presigner, mailer Mailer, products map[string]string, fromAddress string, urlTTL time.Duration) *Service {
	if urlTTL <= 0 {
		urlTTL = 7 * 24 * time.Hour
	}
	return &Service{
		prices:   prices,
		presign:  presign,
		mailer:   mailer,
		products: products,
		from:     fromAddress,
		urlTTL:   urlTTL,
	}
}

// StepError identifies which fulfillment step failed so the caller can
// record a precise reconciliation reason.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("fulfillment %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Fulfill resolves the order's artifact, signs a download URL, and
// sends the confirmation email.
func (s *Service) Fulfill(ctx context.Context, order Order) error {
	price, err := s.prices.Resolve(ctx, order.PriceID)
	if err != nil {
		return &StepError{Step: "price", Err: err}
	}

	key := s.resolveArtifact(order.ProductCode, price)
	if key == "" {
		return &StepError{Step: "artifact", Err: ErrNoArtifact}
	}

	url, err := s.presign.PresignDownload(key, s.urlTTL)
	if err != nil {
		return &StepError{Step: "presign", Err: err}
	}

	productName := price.ProductName
	if productName == "" {
		productName = order.ProductCode
	}

	msg := Message{
		To:      order.Email,
		From:    s.from,
		Subject: fmt.Sprintf("Your download: %s", productName),
		HTML:    confirmationHTML(productName, url, s.urlTTL),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return &StepError{Step: "send", Err: err}
	}

	metrics.FulfillmentEmails.Inc()
	return nil
}

// resolveArtifact tries the static product table first, then the
// provider product metadata. First success wins.
func (s *Service) resolveArtifact(productCode string, price *relay.PriceInfo) string {
	if key, ok := s.products[productCode]; ok && key != "" {
		return key
	}
	if price != nil {
		if key, ok := price.ProductMetadata[MetadataDownloadKey]; ok && key != "" {
			return key
		}
	}
	return ""
}

func confirmationHTML(productName, downloadURL string, ttl time.Duration) string {
	days := int(ttl.Hours() / 24)
	return fmt.Sprintf(`<html>
<body>
<p>Thanks for your purchase of <strong>%s</strong>.</p>
<p><a href="%s">Download your copy</a></p>
<p>The link expires in %d days.</p>
</body>
</html>`, html.EscapeString(productName), html.EscapeString(downloadURL), days)
}
