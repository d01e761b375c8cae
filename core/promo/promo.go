package promo

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

var decimal100 = decimal.NewFromInt(100)

const (
	Percent Kind = "percent"
	Fixed   Kind = "fixed"
)

type Promo struct {
	Code      string          `json:"code" db:"code"`
	Kind      Kind            `json:"kind" db:"kind"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	StartsAt  time.Time       `json:"startsAt" db:"starts_at"`
	ExpiresAt *time.Time      `json:"expiresAt" db:"expires_at"`
	MaxUses   *int            `json:"maxUses" db:"max_uses"`
	UsedCount int             `json:"usedCount" db:"used_count"`
	Active    bool            `json:"active" db:"active"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

type PromoNew struct {
	Code      string          `json:"code" validate:"required,alphanum,max=32"`
	Kind      Kind            `json:"kind" validate:"required,oneof=percent fixed"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	StartsAt  *time.Time      `json:"startsAt"`
	ExpiresAt *time.Time      `json:"expiresAt"`
	MaxUses   *int            `json:"maxUses" validate:"omitempty,gte=1"`
}

// Normalize makes codes case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Usable reports whether the code can be redeemed at now.
func (p Promo) Usable(now time.Time) bool {
	switch {
	case !p.Active:
		return false
	case now.Before(p.StartsAt):
		return false
	case p.ExpiresAt != nil && !now.Before(*p.ExpiresAt):
		return false
	case p.MaxUses != nil && p.UsedCount >= *p.MaxUses:
		return false
	}
	return true
}

// Discount is the amount taken off subtotal, never more than subtotal.
// Percentages round half up to cents.
func (p Promo) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch p.Kind {
	case Percent:
		d = subtotal.Mul(p.Amount).Div(decimal100).Round(2)
	case Fixed:
		d = p.Amount
	}

	if d.GreaterThan(subtotal) {
		return subtotal
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
