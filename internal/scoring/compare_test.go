package scoring

import (
	"testing"

	"github.com/prepstack/mockcat/internal/paper"
)

func TestAnswersEqual(t *testing.T) {
	cases := []struct {
		user, correct string
		qt            paper.QuestionType
		want          bool
	}{
		{"B", "B", paper.TypeMCQ, true},
		{"b", "B", paper.TypeMCQ, true},
		{"  B  ", "B", paper.TypeMCQ, true},
		{"A", "B", paper.TypeMCQ, false},

		{"42", "42", paper.TypeTITA, true},
		{"42.0", "42", paper.TypeTITA, true},
		{"4.2e1", "42", paper.TypeTITA, true},
		{"0.3", "0.30000000000001", paper.TypeTITA, true}, // inside tolerance
		{"42.001", "42", paper.TypeTITA, false},
		{"41", "42", paper.TypeTITA, false},

		// Non-numeric TITA answers fall back to normalized string compare.
		{"Twelve", "twelve", paper.TypeTITA, true},
		{"twelve", "dozen", paper.TypeTITA, false},

		{"", "B", paper.TypeMCQ, false},
	}
	for _, tc := range cases {
		if got := answersEqual(tc.user, tc.correct, tc.qt); got != tc.want {
			t.Errorf("answersEqual(%q, %q, %s) = %v, want %v", tc.user, tc.correct, tc.qt, got, tc.want)
		}
	}
}

func TestParseNumberRejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"inf", "-inf", "nan", "NaN"} {
		if _, ok := parseNumber(raw); ok {
			t.Errorf("parseNumber(%q) accepted a non-finite value", raw)
		}
	}
}
