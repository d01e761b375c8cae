package cart

import (
	"testing"

	"github.com/irsalhamdi/lms/core/course"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"b", "a", "b", "c", "a"})
	assert.Equal(t, []string{"b", "a", "c"}, got)
	assert.Empty(t, dedupe(nil))
}

func TestNewView(t *testing.T) {
	cs := []course.Course{
		{ID: "a", Price: decimal.RequireFromString("100")},
		{ID: "b", Price: decimal.RequireFromString("50"), DiscountPrice: decimal.NewNullDecimal(decimal.RequireFromString("20.50"))},
	}

	v := NewView(cs)
	assert.True(t, v.Total.Equal(decimal.RequireFromString("120.50")), "total %s", v.Total)
	assert.Len(t, v.Items, 2)

	empty := NewView(nil)
	assert.NotNil(t, empty.Items)
	assert.True(t, empty.Total.IsZero())
}
