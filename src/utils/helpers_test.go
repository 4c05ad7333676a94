package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommissionSplit(t *testing.T) {
	// $120.00 at 10% -> $12.00 commission, $108.00 net
	commission, net := CommissionSplit(12000, 0.10)
	assert.Equal(t, int64(1200), commission)
	assert.Equal(t, int64(10800), net)
}

func TestCommissionSplitAddsUp(t *testing.T) {
	rates := []float64{0.05, 0.10, 0.125, 0.15, 0.333}
	totals := []int64{1, 99, 100, 101, 12000, 999999, 1000001}
	for _, rate := range rates {
		for _, total := range totals {
			commission, net := CommissionSplit(total, rate)
			assert.Equalf(t, total, commission+net, "split of %d at %f must add up", total, rate)
			assert.GreaterOrEqual(t, commission, int64(0))
			assert.GreaterOrEqual(t, net, int64(0))
		}
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(12000), MinorUnits(120.00))
	assert.Equal(t, int64(1999), MinorUnits(19.99))
	assert.Equal(t, int64(10), MinorUnits(0.1))
	assert.Equal(t, int64(0), MinorUnits(0))
}

func TestWithSuffix(t *testing.T) {
	t.Setenv("QUEUE_SUFFIX", "")
	assert.Equal(t, "BookingNotifications", WithSuffix("BookingNotifications"))

	t.Setenv("QUEUE_SUFFIX", "staging")
	assert.Equal(t, "BookingNotifications_staging", WithSuffix("BookingNotifications"))
}
