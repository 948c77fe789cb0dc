package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewAt(2, time.Minute, func() time.Time { return now })

	if !l.Allow("u1") || !l.Allow("u1") {
		t.Fatal("first two hits should pass")
	}
	if l.Allow("u1") {
		t.Fatal("third hit should be limited")
	}
	// other keys are independent
	if !l.Allow("u2") {
		t.Fatal("fresh key limited")
	}

	// window rolls over
	now = now.Add(time.Minute)
	if !l.Allow("u1") {
		t.Fatal("new window should admit again")
	}
}

func TestZeroLimitBlocksEverything(t *testing.T) {
	l := New(0, time.Minute)
	if l.Allow("u1") {
		t.Fatal("zero limit admitted a hit")
	}
}
