package attempt

import (
	"errors"
	"testing"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from Status
		ev   Event
		to   Status
		ok   bool
	}{
		{StatusInProgress, EventPause, StatusPaused, true},
		{StatusInProgress, EventSubmit, StatusSubmitted, true},
		{StatusInProgress, EventTimeout, StatusCompleted, true},
		{StatusInProgress, EventAbandon, StatusAbandoned, true},
		{StatusInProgress, EventResume, "", false},

		{StatusPaused, EventResume, StatusInProgress, true},
		{StatusPaused, EventSubmit, StatusSubmitted, true},
		{StatusPaused, EventTimeout, StatusCompleted, true},
		{StatusPaused, EventPause, "", false},

		// terminal states accept nothing
		{StatusSubmitted, EventSubmit, "", false},
		{StatusSubmitted, EventResume, "", false},
		{StatusCompleted, EventSubmit, "", false},
		{StatusAbandoned, EventResume, "", false},
	}
	for _, tc := range cases {
		to, err := Transition(tc.from, tc.ev)
		if tc.ok {
			if err != nil || to != tc.to {
				t.Errorf("Transition(%s, %s) = (%s, %v), want %s", tc.from, tc.ev, to, err, tc.to)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("Transition(%s, %s) err = %v, want ErrInvalidState", tc.from, tc.ev, err)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range []Status{StatusSubmitted, StatusCompleted, StatusAbandoned} {
		if !s.Terminal() || s.Active() {
			t.Errorf("%s should be terminal and not active", s)
		}
	}
	for _, s := range []Status{StatusInProgress, StatusPaused} {
		if s.Terminal() || !s.Active() {
			t.Errorf("%s should be active and not terminal", s)
		}
	}
}
