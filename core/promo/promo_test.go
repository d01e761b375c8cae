package promo

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		name     string
		promo    Promo
		subtotal string
		want     string
	}{
		{"percent", Promo{Kind: Percent, Amount: dec("10")}, "250", "25"},
		{"percent rounds half up", Promo{Kind: Percent, Amount: dec("15")}, "0.30", "0.05"},
		{"percent full", Promo{Kind: Percent, Amount: dec("100")}, "99.99", "99.99"},
		{"fixed", Promo{Kind: Fixed, Amount: dec("30")}, "100", "30"},
		{"fixed clamps to subtotal", Promo{Kind: Fixed, Amount: dec("300")}, "100", "100"},
		{"zero subtotal", Promo{Kind: Fixed, Amount: dec("5")}, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.promo.Discount(dec(tt.subtotal))
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestUsable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	two := 2

	base := Promo{Kind: Fixed, Amount: dec("1"), StartsAt: past, Active: true}
	assert.True(t, base.Usable(now))

	inactive := base
	inactive.Active = false
	assert.False(t, inactive.Usable(now))

	notStarted := base
	notStarted.StartsAt = future
	assert.False(t, notStarted.Usable(now))

	expired := base
	expired.ExpiresAt = &past
	assert.False(t, expired.Usable(now))

	expiresNow := base
	expiresNow.ExpiresAt = &now
	assert.False(t, expiresNow.Usable(now))

	exhausted := base
	exhausted.MaxUses = &two
	exhausted.UsedCount = 2
	assert.False(t, exhausted.Usable(now))

	exhausted.UsedCount = 1
	assert.True(t, exhausted.Usable(now))
}

func TestNew(t *testing.T) {
	now := time.Now().UTC()

	p, err := New(PromoNew{Code: " spring10 ", Kind: Percent, Amount: dec("10")}, now)
	require.NoError(t, err)
	assert.Equal(t, "SPRING10", p.Code)
	assert.Equal(t, now, p.StartsAt)
	assert.True(t, p.Active)

	_, err = New(PromoNew{Code: "X", Kind: Percent, Amount: dec("120")}, now)
	assert.ErrorIs(t, err, ErrPercentMax)
}
