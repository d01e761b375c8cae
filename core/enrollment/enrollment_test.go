package enrollment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		completed, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{1, 8, 13},
		{199, 200, 99},
		{995, 1000, 99},
		{3, 3, 100},
		{4, 3, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func TestAdvance(t *testing.T) {
	assert.Equal(t, Active, advance(Active, 99))
	assert.Equal(t, Completed, advance(Active, 100))
	assert.Equal(t, Active, advance(Active, Percentage(199, 200)))
	assert.Equal(t, Completed, advance(Completed, 100))
	assert.Equal(t, CertificateIssued, advance(CertificateIssued, 100))
}
