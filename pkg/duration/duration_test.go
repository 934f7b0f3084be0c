package duration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vulnscan/vulnscan/pkg/duration"
)

func TestRateControlOrdering(t *testing.T) {
	assert.Less(t, duration.XSSAttemptPause, duration.RateWindow)
	assert.Greater(t, duration.AdaptiveDebounce, duration.RateWindow)
}

func TestLifecycleOrdering(t *testing.T) {
	assert.Greater(t, duration.ScanTTL, duration.ScanTimeout)
	assert.Less(t, duration.CleanupInterval, duration.ScanTTL)
	assert.Less(t, duration.HTTPRequest, duration.ScanTimeout)
}
