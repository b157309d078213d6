package ordercount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceCount(t *testing.T) {
	tests := []struct {
		name     string
		in       interface{}
		expected int64
	}{
		{"nil is zero", nil, 0},
		{"json number", float64(12), 12},
		{"fractional number", 1.5, 0},
		{"int64", int64(9), 9},
		{"int", 3, 3},
		{"numeric string", "42", 42},
		{"garbage string", "lots", 0},
		{"object", map[string]interface{}{"n": 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, coerceCount(tt.in))
		})
	}
}

func TestParseNotification(t *testing.T) {
	id, count, err := parseNotification("17:240")
	require.NoError(t, err)
	assert.Equal(t, 17, id)
	assert.Equal(t, int64(240), count)

	for _, bad := range []string{"", "17", "x:1", "1:y"} {
		_, _, err := parseNotification(bad)
		assert.Error(t, err, "payload %q", bad)
	}
}

func TestOrderCountPath(t *testing.T) {
	assert.Equal(t, "products/5/orderCount", orderCountPath(5))
}
