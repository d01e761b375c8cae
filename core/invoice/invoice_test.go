package invoice

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNumber(t *testing.T) {
	at := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	re := regexp.MustCompile(`^INV-20260131-[2-9A-HJ-NP-Z]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n, err := NewNumber(at)
		require.NoError(t, err)
		assert.Regexp(t, re, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestBillingApply(t *testing.T) {
	var inv Invoice
	Billing{Name: "Ada", Email: "ada@example.com"}.Apply(&inv)

	require.NotNil(t, inv.BillingName)
	assert.Equal(t, "Ada", *inv.BillingName)
	require.NotNil(t, inv.BillingEmail)
	assert.Nil(t, inv.BillingPhone)
	assert.Nil(t, inv.BillingAddress)
}
