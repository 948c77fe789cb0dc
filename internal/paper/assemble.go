package paper

import (
	"log"
	"sort"
)

// AssembledPaper is the canonical delivery structure: ordered sets plus the
// flattened question list derived from them.
type AssembledPaper struct {
	Sets      []QuestionSet `json:"question_sets"`
	Questions []Question    `json:"questions"`

	// DuplicateIDs lists question ids that appeared more than once across the
	// paper's sets; only the first occurrence is kept. Diagnostic only.
	DuplicateIDs []string `json:"-"`
}

// Assemble orders question sets and their questions deterministically and
// flattens them into one question list.
//
// Sets sort by section order, then display_order, then id. Questions within a
// set sort by sequence_order, then question_number, then id. Duplicate
// question ids across the whole paper are dropped first-occurrence-wins and
// reported; duplicate data is a data-quality warning, never an error.
func Assemble(sets []QuestionSet) AssembledPaper {
	ordered := make([]QuestionSet, len(sets))
	copy(ordered, sets)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ra, rb := sectionRank(a.Section), sectionRank(b.Section); ra != rb {
			return ra < rb
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.ID < b.ID
	})

	seen := make(map[string]bool)
	var duplicates []string

	for si := range ordered {
		qs := make([]Question, len(ordered[si].Questions))
		copy(qs, ordered[si].Questions)
		sort.SliceStable(qs, func(i, j int) bool {
			a, b := qs[i], qs[j]
			if a.SequenceOrder != b.SequenceOrder {
				return a.SequenceOrder < b.SequenceOrder
			}
			if a.QuestionNumber != b.QuestionNumber {
				return a.QuestionNumber < b.QuestionNumber
			}
			return a.ID < b.ID
		})

		unique := qs[:0]
		for _, q := range qs {
			if seen[q.ID] {
				duplicates = append(duplicates, q.ID)
				continue
			}
			seen[q.ID] = true
			unique = append(unique, q)
		}
		ordered[si].Questions = unique
		ordered[si].QuestionCount = len(unique)
	}

	if len(duplicates) > 0 {
		log.Printf("paper: dropped %d duplicate question id(s) during assembly: %v", len(duplicates), duplicates)
	}

	return AssembledPaper{
		Sets:         ordered,
		Questions:    flatten(ordered),
		DuplicateIDs: duplicates,
	}
}

// flatten derives the flat Question view from ordered sets, denormalizing the
// set context onto each question and computing exam_order per section.
func flatten(sets []QuestionSet) []Question {
	var out []Question
	var cur Section
	orderInSection := 0

	for _, set := range sets {
		var ctx *Context
		if set.Composite() {
			ctx = &Context{
				ID:           set.ID,
				PaperID:      set.PaperID,
				Section:      set.Section,
				Title:        set.ContextTitle,
				Body:         set.ContextBody,
				ImageURL:     set.ContextImageURL,
				DisplayOrder: set.DisplayOrder,
				IsActive:     set.IsActive,
			}
		}
		for _, q := range set.Questions {
			q.SetID = set.ID
			q.PaperID = set.PaperID
			q.Section = set.Section
			q.Context = ctx
			if q.Section != cur {
				cur = q.Section
				orderInSection = 0
			}
			orderInSection++
			q.ExamOrder = orderInSection
			out = append(out, q)
		}
	}
	return out
}

// StripAnswers blanks correct answers on a slice of questions, for serving a
// live exam. Operates on a copy.
func StripAnswers(questions []Question) []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	for i := range out {
		out[i].CorrectAnswer = ""
	}
	return out
}
