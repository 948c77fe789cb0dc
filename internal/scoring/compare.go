package scoring

import (
	"math"
	"strconv"
	"strings"

	"github.com/prepstack/mockcat/internal/paper"
)

// epsilon for numeric-entry comparison, so "2.0" and "2" (and float parse
// artifacts) compare equal without string games.
const epsilon = 1e-9

// answersEqual applies one canonical comparison policy per question type:
// MCQ is normalized string equality; TITA is numeric-first with an epsilon,
// falling back to normalized strings only when either side fails to parse.
func answersEqual(user, correct string, qt paper.QuestionType) bool {
	if qt == paper.TypeTITA {
		uv, uok := parseNumber(user)
		cv, cok := parseNumber(correct)
		if uok && cok {
			return math.Abs(uv-cv) < epsilon
		}
	}
	return normalize(user) == normalize(correct)
}

// normalize trims, case-folds, and collapses internal whitespace runs.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
