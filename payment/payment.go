// Package payment confirms that an upstream gateway captured a payment
// before checkout commits it.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

const (
	MethodStripe = "stripe"
	MethodPaypal = "paypal"
)

var ErrNotConfirmed = errors.New("payment not confirmed")

// Charge is what the gateway is expected to have collected.
type Charge struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

type Gateway interface {
	Confirm(ctx context.Context, ch Charge) error
}

// minorUnits converts a two decimal amount to cents.
func minorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
