// Package scoring computes exam results from stored responses and the answer
// key. The engine is a pure function of its inputs: identical inputs yield
// identical output, with no dependence on wall clock or map iteration order.
package scoring

import (
	"math"

	"github.com/prepstack/mockcat/internal/paper"
)

// Response is the slice of a stored response row the engine needs.
type Response struct {
	QuestionID       string
	Answer           *string
	TimeSpentSeconds int
}

// QuestionResult is the per-question outcome, persisted back onto the
// response row for results display.
type QuestionResult struct {
	QuestionID    string        `json:"question_id"`
	Section       paper.Section `json:"section"`
	IsCorrect     bool          `json:"is_correct"`
	Answered      bool          `json:"answered"`
	MarksObtained float64       `json:"marks_obtained"`
	UserAnswer    *string       `json:"user_answer,omitempty"`
	CorrectAnswer string        `json:"correct_answer"`
}

type SectionScore struct {
	Score            float64 `json:"score"`
	Correct          int     `json:"correct"`
	Incorrect        int     `json:"incorrect"`
	Unanswered       int     `json:"unanswered"`
	TimeSpentSeconds int     `json:"time_spent_seconds"`
}

type Result struct {
	TotalScore       float64 `json:"total_score"`
	MaxPossibleScore float64 `json:"max_possible_score"`
	CorrectCount     int     `json:"correct_count"`
	IncorrectCount   int     `json:"incorrect_count"`
	UnansweredCount  int     `json:"unanswered_count"`

	// Accuracy is correct/attempted as a percentage. Nil (not zero) when
	// nothing was attempted.
	Accuracy    *float64 `json:"accuracy,omitempty"`
	AttemptRate float64  `json:"attempt_rate"`

	SectionScores   map[paper.Section]SectionScore `json:"section_scores"`
	QuestionResults []QuestionResult               `json:"question_results"`
}

// Score evaluates every question against the recorded responses.
//
// Marking: correct answers earn the question's positive marks; wrong non-empty
// answers lose the question's negative marks (zero for TITA by convention);
// unanswered questions score zero and count as unattempted. Iteration follows
// the question slice, so ordering of the input determines ordering of
// QuestionResults.
func Score(questions []paper.Question, responses []Response) Result {
	byQuestion := make(map[string]Response, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}

	res := Result{
		SectionScores: make(map[paper.Section]SectionScore, len(paper.SectionOrder)),
	}
	for _, sec := range paper.SectionOrder {
		res.SectionScores[sec] = SectionScore{}
	}

	for _, q := range questions {
		r, has := byQuestion[q.ID]
		var answer *string
		if has {
			answer = r.Answer
		}

		marks, correct, answered := questionMarks(q, answer)

		res.TotalScore += marks
		res.MaxPossibleScore += q.PositiveMarks

		sec := res.SectionScores[q.Section]
		sec.Score += marks
		sec.TimeSpentSeconds += r.TimeSpentSeconds
		switch {
		case !answered:
			res.UnansweredCount++
			sec.Unanswered++
		case correct:
			res.CorrectCount++
			sec.Correct++
		default:
			res.IncorrectCount++
			sec.Incorrect++
		}
		res.SectionScores[q.Section] = sec

		res.QuestionResults = append(res.QuestionResults, QuestionResult{
			QuestionID:    q.ID,
			Section:       q.Section,
			IsCorrect:     correct,
			Answered:      answered,
			MarksObtained: marks,
			UserAnswer:    answer,
			CorrectAnswer: q.CorrectAnswer,
		})
	}

	attempted := res.CorrectCount + res.IncorrectCount
	if attempted > 0 {
		acc := roundPct(float64(res.CorrectCount) / float64(attempted))
		res.Accuracy = &acc
	}
	if len(questions) > 0 {
		res.AttemptRate = roundPct(float64(attempted) / float64(len(questions)))
	}
	return res
}

func questionMarks(q paper.Question, answer *string) (marks float64, correct, answered bool) {
	if answer == nil || isBlank(*answer) {
		return 0, false, false
	}
	if answersEqual(*answer, q.CorrectAnswer, q.Type) {
		return q.PositiveMarks, true, true
	}
	return -q.NegativeMarks, false, true
}

// roundPct converts a ratio to a percentage rounded to two decimals.
func roundPct(ratio float64) float64 {
	return math.Round(ratio*10000) / 100
}
