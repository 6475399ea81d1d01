package relay

import (
	"context"
	"errors"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const stripeService = "stripe"

// PriceInfo is the subset of a Stripe price the fulfillment path needs.
type PriceInfo struct {
	ProductName     string
	ProductMetadata map[string]string
}

// StripePrices resolves price details from the Stripe API. The underlying
// SDK client is constructed explicitly and injected; the SDK's global
// client is never used.
type StripePrices struct {
	api *client.API
}

// NewStripePrices creates a price resolver with its own SDK client.
func NewStripePrices(apiKey string) *StripePrices {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripePrices{api: api}
}

// Resolve fetches the price with its product expanded.
func (s *StripePrices) Resolve(ctx context.Context, priceID string) (*PriceInfo, error) {
	params := &stripe.PriceParams{
		Params: stripe.Params{Context: ctx},
	}
	params.AddExpand("product")

	price, err := s.api.Prices.Get(priceID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &ServiceError{
				Service:    stripeService,
				StatusCode: stripeErr.HTTPStatusCode,
				Body:       stripeErr.Msg,
			}
		}
		return nil, &UnavailableError{Service: stripeService, Err: err}
	}

	info := &PriceInfo{}
	if price.Product != nil {
		info.ProductName = price.Product.Name
		info.ProductMetadata = price.Product.Metadata
	}
	return info, nil
}
