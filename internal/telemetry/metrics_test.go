package telemetry

import (
	"testing"
	"time"
)

func TestCounterBucketsByHour(t *testing.T) {
	now := time.Date(2025, 11, 30, 9, 15, 0, 0, time.UTC)
	c := NewCounterAt(func() time.Time { return now })

	c.Increment("attempt_created")
	c.Increment("attempt_created")
	now = now.Add(time.Hour)
	c.Increment("attempt_created")

	snap := c.Snapshot()
	if snap["attempt_created|2025113009"] != 2 {
		t.Errorf("first bucket = %d, want 2", snap["attempt_created|2025113009"])
	}
	if snap["attempt_created|2025113010"] != 1 {
		t.Errorf("second bucket = %d, want 1", snap["attempt_created|2025113010"])
	}
}
