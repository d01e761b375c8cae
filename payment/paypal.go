package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

const paypalCompleted = "COMPLETED"

type Paypal struct {
	client *paypal.Client
}

func NewPaypal(client *paypal.Client) *Paypal {
	return &Paypal{client: client}
}

// Confirm checks that the order named by the reference was captured for the
// charged amount across its purchase units.
func (p *Paypal) Confirm(ctx context.Context, ch Charge) error {
	if ch.Reference == "" {
		return fmt.Errorf("%w: missing paypal order", ErrNotConfirmed)
	}

	ord, err := p.client.GetOrder(ctx, ch.Reference)
	if err != nil {
		var perr *paypal.ErrorResponse
		if errors.As(err, &perr) && perr.Response != nil && perr.Response.StatusCode < http.StatusInternalServerError {
			return fmt.Errorf("%w: paypal order[%s]: %s", ErrNotConfirmed, ch.Reference, perr.Message)
		}
		return fmt.Errorf("fetching paypal order[%s]: %w", ch.Reference, err)
	}

	if ord.Status != paypalCompleted {
		return fmt.Errorf("%w: paypal order[%s] is %s", ErrNotConfirmed, ord.ID, ord.Status)
	}

	paid := decimal.Zero
	for _, pu := range ord.PurchaseUnits {
		if pu.Amount == nil {
			continue
		}

		if !strings.EqualFold(pu.Amount.Currency, ch.Currency) {
			return fmt.Errorf("%w: paypal charged %s, expected %s", ErrNotConfirmed, pu.Amount.Currency, ch.Currency)
		}

		v, err := decimal.NewFromString(pu.Amount.Value)
		if err != nil {
			return fmt.Errorf("parsing paypal amount %q: %w", pu.Amount.Value, err)
		}
		paid = paid.Add(v)
	}

	if !paid.Equal(ch.Amount) {
		return fmt.Errorf("%w: paypal received %s, expected %s", ErrNotConfirmed, paid, ch.Amount)
	}
	return nil
}
