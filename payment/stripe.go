package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type Stripe struct {
	api *stripecl.API
}

// NewStripeAPI builds a client for key. A non-empty url replaces the public
// API endpoint.
func NewStripeAPI(key, url string) *stripecl.API {
	var backends *stripe.Backends
	if url != "" {
		b := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(url),
			MaxNetworkRetries: stripe.Int64(0),
		})
		backends = &stripe.Backends{API: b, Connect: b, Uploads: b}
	}

	api := &stripecl.API{}
	api.Init(key, backends)
	return api
}

func NewStripe(api *stripecl.API) *Stripe {
	return &Stripe{api: api}
}

// Confirm checks that the PaymentIntent named by the reference succeeded for
// exactly the charged amount.
func (s *Stripe) Confirm(ctx context.Context, ch Charge) error {
	if ch.Reference == "" {
		return fmt.Errorf("%w: missing stripe payment intent", ErrNotConfirmed)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.Get(ch.Reference, params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.HTTPStatusCode >= 400 && serr.HTTPStatusCode < 500 {
			return fmt.Errorf("%w: stripe payment intent[%s]: %s", ErrNotConfirmed, ch.Reference, serr.Msg)
		}
		return fmt.Errorf("fetching stripe payment intent[%s]: %w", ch.Reference, err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: stripe payment intent[%s] is %s", ErrNotConfirmed, pi.ID, pi.Status)
	}

	if !strings.EqualFold(string(pi.Currency), ch.Currency) {
		return fmt.Errorf("%w: stripe charged %s, expected %s", ErrNotConfirmed, pi.Currency, ch.Currency)
	}

	if want := minorUnits(ch.Amount); pi.AmountReceived != want {
		return fmt.Errorf("%w: stripe received %d, expected %d", ErrNotConfirmed, pi.AmountReceived, want)
	}
	return nil
}
