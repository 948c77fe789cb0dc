package scoring_test

import (
	"math"
	"testing"

	"github.com/prepstack/mockcat/internal/paper"
	"github.com/prepstack/mockcat/internal/scoring"
)

func strptr(s string) *string { return &s }

// Two-question paper used across cases: one MCQ (+3/-1, correct "B") and one
// numeric-entry question (+3/0, correct "42").
func twoQuestions() []paper.Question {
	return []paper.Question{
		{ID: "q1", Section: paper.SectionVARC, Type: paper.TypeMCQ,
			CorrectAnswer: "B", PositiveMarks: 3, NegativeMarks: 1, IsActive: true},
		{ID: "q2", Section: paper.SectionQA, Type: paper.TypeTITA,
			CorrectAnswer: "42", PositiveMarks: 3, NegativeMarks: 0, IsActive: true},
	}
}

func TestScore(t *testing.T) {
	cases := []struct {
		name       string
		answers    map[string]*string
		total      float64
		correct    int
		incorrect  int
		unanswered int
		accuracy   *float64 // nil means "expect nil"
	}{
		{
			name:    "all correct",
			answers: map[string]*string{"q1": strptr("B"), "q2": strptr("42")},
			total:   6, correct: 2,
			accuracy: ptrF(100),
		},
		{
			name:    "all wrong",
			answers: map[string]*string{"q1": strptr("A"), "q2": strptr("41")},
			total:   -1, incorrect: 2,
			accuracy: ptrF(0),
		},
		{
			name:    "wrong mcq, tita skipped",
			answers: map[string]*string{"q1": strptr("A"), "q2": nil},
			total:   -1, incorrect: 1, unanswered: 1,
			accuracy: ptrF(0),
		},
		{
			name:    "nothing attempted",
			answers: map[string]*string{},
			total:   0, unanswered: 2,
			accuracy: nil,
		},
		{
			name:    "blank answer counts unattempted",
			answers: map[string]*string{"q1": strptr("   "), "q2": strptr("42")},
			total:   3, correct: 1, unanswered: 1,
			accuracy: ptrF(100),
		},
		{
			name:    "mcq compare is case and space insensitive",
			answers: map[string]*string{"q1": strptr(" b ")},
			total:   3, correct: 1, unanswered: 1,
			accuracy: ptrF(100),
		},
		{
			name:    "tita numeric equivalence",
			answers: map[string]*string{"q2": strptr("42.0")},
			total:   3, correct: 1, unanswered: 1,
			accuracy: ptrF(100),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var responses []scoring.Response
			for id, ans := range tc.answers {
				responses = append(responses, scoring.Response{QuestionID: id, Answer: ans})
			}
			res := scoring.Score(twoQuestions(), responses)

			if res.TotalScore != tc.total {
				t.Errorf("total = %v, want %v", res.TotalScore, tc.total)
			}
			if res.MaxPossibleScore != 6 {
				t.Errorf("max = %v, want 6", res.MaxPossibleScore)
			}
			if res.CorrectCount != tc.correct || res.IncorrectCount != tc.incorrect || res.UnansweredCount != tc.unanswered {
				t.Errorf("counts = %d/%d/%d, want %d/%d/%d",
					res.CorrectCount, res.IncorrectCount, res.UnansweredCount,
					tc.correct, tc.incorrect, tc.unanswered)
			}
			switch {
			case tc.accuracy == nil && res.Accuracy != nil:
				t.Errorf("accuracy = %v, want nil", *res.Accuracy)
			case tc.accuracy != nil && res.Accuracy == nil:
				t.Errorf("accuracy = nil, want %v", *tc.accuracy)
			case tc.accuracy != nil && math.Abs(*res.Accuracy-*tc.accuracy) > 0.01:
				t.Errorf("accuracy = %v, want %v", *res.Accuracy, *tc.accuracy)
			}
		})
	}
}

func TestScoreSections(t *testing.T) {
	res := scoring.Score(twoQuestions(), []scoring.Response{
		{QuestionID: "q1", Answer: strptr("B"), TimeSpentSeconds: 30},
		{QuestionID: "q2", Answer: strptr("17"), TimeSpentSeconds: 45},
	})

	varc := res.SectionScores[paper.SectionVARC]
	if varc.Score != 3 || varc.Correct != 1 || varc.TimeSpentSeconds != 30 {
		t.Errorf("VARC = %+v", varc)
	}
	qa := res.SectionScores[paper.SectionQA]
	if qa.Score != 0 || qa.Incorrect != 1 || qa.TimeSpentSeconds != 45 {
		t.Errorf("QA = %+v", qa)
	}
	if res.AttemptRate != 100 {
		t.Errorf("attempt rate = %v, want 100", res.AttemptRate)
	}
}

func TestScoreIgnoresUnknownResponses(t *testing.T) {
	res := scoring.Score(twoQuestions(), []scoring.Response{
		{QuestionID: "ghost", Answer: strptr("B")},
	})
	if res.TotalScore != 0 || res.UnansweredCount != 2 {
		t.Errorf("ghost response leaked into score: %+v", res)
	}
}

func ptrF(v float64) *float64 { return &v }
