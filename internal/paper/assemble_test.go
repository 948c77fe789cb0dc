package paper_test

import (
	"testing"

	"github.com/prepstack/mockcat/internal/paper"
)

func q(id string, num int) paper.Question {
	return paper.Question{ID: id, QuestionNumber: num, Type: paper.TypeMCQ,
		CorrectAnswer: "A", PositiveMarks: 3, NegativeMarks: 1, IsActive: true}
}

func TestAssembleOrdersSetsAndQuestions(t *testing.T) {
	// Deliberately shuffled: QA first, VARC sets out of display order,
	// questions out of sequence within a set.
	sets := []paper.QuestionSet{
		{ID: "qa-1", PaperID: "p1", Section: paper.SectionQA, SetType: paper.SetTypeAtomic,
			DisplayOrder: 1, IsActive: true, Questions: []paper.Question{q("q5", 1)}},
		{ID: "varc-2", PaperID: "p1", Section: paper.SectionVARC, SetType: paper.SetTypeVARC,
			DisplayOrder: 2, IsActive: true, Questions: []paper.Question{q("q3", 3), q("q4", 4)}},
		{ID: "varc-1", PaperID: "p1", Section: paper.SectionVARC, SetType: paper.SetTypeVARC,
			ContextBody:  "passage",
			DisplayOrder: 1, IsActive: true, Questions: []paper.Question{q("q2", 2), q("q1", 1)}},
		{ID: "dilr-1", PaperID: "p1", Section: paper.SectionDILR, SetType: paper.SetTypeDILR,
			DisplayOrder: 1, IsActive: true, Questions: []paper.Question{q("q6", 1)}},
	}

	ap := paper.Assemble(sets)

	wantSets := []string{"varc-1", "varc-2", "dilr-1", "qa-1"}
	for i, id := range wantSets {
		if ap.Sets[i].ID != id {
			t.Fatalf("sets[%d] = %s, want %s", i, ap.Sets[i].ID, id)
		}
	}

	wantQs := []string{"q1", "q2", "q3", "q4", "q6", "q5"}
	for i, id := range wantQs {
		if ap.Questions[i].ID != id {
			t.Fatalf("questions[%d] = %s, want %s", i, ap.Questions[i].ID, id)
		}
	}

	// exam_order restarts per section
	if ap.Questions[0].ExamOrder != 1 || ap.Questions[3].ExamOrder != 4 {
		t.Errorf("VARC exam_order wrong: %d, %d", ap.Questions[0].ExamOrder, ap.Questions[3].ExamOrder)
	}
	if ap.Questions[4].ExamOrder != 1 || ap.Questions[5].ExamOrder != 1 {
		t.Errorf("section exam_order should restart: DILR=%d QA=%d",
			ap.Questions[4].ExamOrder, ap.Questions[5].ExamOrder)
	}

	// context denormalized onto composite-set questions only
	if ap.Questions[0].Context == nil || ap.Questions[0].Context.Body != "passage" {
		t.Errorf("composite question missing context")
	}
	if ap.Questions[5].Context != nil {
		t.Errorf("atomic question should have no context")
	}
}

func TestAssembleDropsDuplicates(t *testing.T) {
	sets := []paper.QuestionSet{
		{ID: "s1", Section: paper.SectionVARC, SetType: paper.SetTypeVARC,
			DisplayOrder: 1, IsActive: true, Questions: []paper.Question{q("dup", 1), q("q2", 2)}},
		{ID: "s2", Section: paper.SectionVARC, SetType: paper.SetTypeVARC,
			DisplayOrder: 2, IsActive: true, Questions: []paper.Question{q("dup", 3)}},
	}

	ap := paper.Assemble(sets)

	if len(ap.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(ap.Questions))
	}
	if len(ap.DuplicateIDs) != 1 || ap.DuplicateIDs[0] != "dup" {
		t.Errorf("duplicates = %v, want [dup]", ap.DuplicateIDs)
	}
	// first occurrence wins; the second set ends up empty and says so
	if ap.Sets[1].QuestionCount != 0 {
		t.Errorf("second set count = %d, want 0", ap.Sets[1].QuestionCount)
	}
}

func TestStripAnswers(t *testing.T) {
	qs := []paper.Question{q("q1", 1)}
	stripped := paper.StripAnswers(qs)
	if stripped[0].CorrectAnswer != "" {
		t.Errorf("answer survived stripping")
	}
	if qs[0].CorrectAnswer != "A" {
		t.Errorf("StripAnswers mutated its input")
	}
}
