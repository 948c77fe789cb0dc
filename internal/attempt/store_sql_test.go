package attempt_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prepstack/mockcat/internal/attempt"
	"github.com/prepstack/mockcat/internal/db"
	"github.com/prepstack/mockcat/internal/paper"
)

var dbSeq atomic.Int64

// openTestDB gives each test its own in-memory sqlite database with the full
// schema applied.
func openTestDB(t *testing.T) *attempt.SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:attempttest%d?mode=memory&cache=shared", dbSeq.Add(1))
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })

	// attempts has a paper FK; seed the row it points at
	if _, err := dbh.Exec(`INSERT INTO papers (id,title,sections_json,duration_minutes,default_positive_marks,default_negative_marks,published,attempt_limit,allow_sectional_attempts,sectional_allowed_json,year)
		VALUES ('paper-1','Seed','[]',120,3,1,TRUE,0,TRUE,'',0)`); err != nil {
		t.Fatalf("seed paper: %v", err)
	}
	return attempt.NewSQLStore(dbh)
}

func testAttempt(id, user string) attempt.Attempt {
	return attempt.Attempt{
		ID:              id,
		PaperID:         "paper-1",
		UserID:          user,
		Mode:            attempt.ModeFull,
		Status:          attempt.StatusInProgress,
		CurrentSection:  paper.SectionVARC,
		CurrentQuestion: 1,
		TimeRemaining: attempt.TimeRemaining{
			paper.SectionVARC: 120, paper.SectionDILR: 120, paper.SectionQA: 120,
		},
		StartedAt:     1000,
		TimerSyncedAt: 1000,
		CreatedAt:     1000,
	}
}

func TestSQLStoreActiveUniqueness(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	if err := store.CreateAttempt(ctx, testAttempt("a1", "u1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.CreateAttempt(ctx, testAttempt("a2", "u1"))
	if !errors.Is(err, attempt.ErrDuplicateActive) {
		t.Fatalf("duplicate err = %v, want ErrDuplicateActive", err)
	}

	// different bucket (sectional) is fine
	b := testAttempt("a3", "u1")
	b.Mode = attempt.ModeSectional
	b.SectionalSection = paper.SectionQA
	b.CurrentSection = paper.SectionQA
	if err := store.CreateAttempt(ctx, b); err != nil {
		t.Fatalf("sectional create: %v", err)
	}

	// once terminal, the bucket frees up
	if won, err := store.TransitionTerminal(ctx, "a1", attempt.StatusSubmitted, 2000); err != nil || !won {
		t.Fatalf("transition: %v won=%v", err, won)
	}
	if err := store.CreateAttempt(ctx, testAttempt("a4", "u1")); err != nil {
		t.Fatalf("create after terminal: %v", err)
	}
}

func TestSQLStoreFindActiveAndCount(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	key := attempt.ActiveKey{UserID: "u1", PaperID: "paper-1", Mode: attempt.ModeFull}

	if _, err := store.FindActive(ctx, key); !errors.Is(err, attempt.ErrNotFound) {
		t.Fatalf("empty find err = %v", err)
	}

	if err := store.CreateAttempt(ctx, testAttempt("a1", "u1")); err != nil {
		t.Fatal(err)
	}
	got, err := store.FindActive(ctx, key)
	if err != nil || got.ID != "a1" {
		t.Fatalf("find = %s, %v", got.ID, err)
	}
	if got.TimeRemaining[paper.SectionDILR] != 120 {
		t.Errorf("time remaining round-trip: %v", got.TimeRemaining)
	}

	if n, _ := store.CountTerminal(ctx, key); n != 0 {
		t.Errorf("terminal count = %d", n)
	}
	if _, err := store.TransitionTerminal(ctx, "a1", attempt.StatusCompleted, 2000); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.CountTerminal(ctx, key); n != 1 {
		t.Errorf("terminal count after completion = %d", n)
	}
	if _, err := store.FindActive(ctx, key); !errors.Is(err, attempt.ErrNotFound) {
		t.Errorf("terminal attempt still reported active")
	}
}

func TestSQLStoreTransitionTerminalOnce(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	if err := store.CreateAttempt(ctx, testAttempt("a1", "u1")); err != nil {
		t.Fatal(err)
	}
	won, err := store.TransitionTerminal(ctx, "a1", attempt.StatusSubmitted, 2000)
	if err != nil || !won {
		t.Fatalf("first transition: %v won=%v", err, won)
	}
	won, err = store.TransitionTerminal(ctx, "a1", attempt.StatusCompleted, 3000)
	if err != nil || won {
		t.Fatalf("second transition must lose: %v won=%v", err, won)
	}

	got, err := store.GetAttempt(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != attempt.StatusSubmitted || got.SubmittedAt != 2000 {
		t.Errorf("loser overwrote the winner: %+v", got)
	}
}

func TestSQLStoreSaveProgressOnTerminal(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	a := testAttempt("a1", "u1")
	if err := store.CreateAttempt(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := store.TransitionTerminal(ctx, "a1", attempt.StatusSubmitted, 2000); err != nil {
		t.Fatal(err)
	}
	a.CurrentQuestion = 7
	if err := store.SaveProgress(ctx, a); !errors.Is(err, attempt.ErrInvalidState) {
		t.Errorf("progress on terminal attempt err = %v", err)
	}
}

func TestSQLStoreResponses(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	if err := store.CreateAttempt(ctx, testAttempt("a1", "u1")); err != nil {
		t.Fatal(err)
	}

	ans := "B"
	r := attempt.Response{
		AttemptID: "a1", QuestionID: "q1", Answer: &ans,
		Status: attempt.ResponseAnswered, IsVisited: true,
		TimeSpentSeconds: 30, VisitCount: 1, UpdatedAt: 1100,
	}
	if _, err := store.UpsertResponse(ctx, r); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// upsert overwrites in place
	r.Answer = nil
	r.Status = attempt.ResponseMarked
	r.UpdatedAt = 1200
	if _, err := store.UpsertResponse(ctx, r); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetResponse(ctx, "a1", "q1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Answer != nil || got.Status != attempt.ResponseMarked || got.UpdatedAt != 1200 {
		t.Errorf("round-trip = %+v", got)
	}

	correct := true
	marks := 3.0
	err = store.SaveResponseOutcomes(ctx, "a1", []attempt.Response{
		{AttemptID: "a1", QuestionID: "q1", IsCorrect: &correct, MarksObtained: &marks},
	})
	if err != nil {
		t.Fatal(err)
	}
	rows, err := store.ListResponses(ctx, "a1")
	if err != nil || len(rows) != 1 {
		t.Fatalf("list: %v, %d rows", err, len(rows))
	}
	if rows[0].IsCorrect == nil || !*rows[0].IsCorrect || *rows[0].MarksObtained != 3 {
		t.Errorf("outcomes = %+v", rows[0])
	}
}

func TestSQLStoreSaveScores(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	a := testAttempt("a1", "u1")
	if err := store.CreateAttempt(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := store.TransitionTerminal(ctx, "a1", attempt.StatusSubmitted, 2000); err != nil {
		t.Fatal(err)
	}

	total, maxScore, acc, rate := 42.0, 66.0, 87.5, 70.0
	a.TotalScore = &total
	a.MaxPossibleScore = &maxScore
	a.CorrectCount = 15
	a.IncorrectCount = 2
	a.UnansweredCount = 5
	a.Accuracy = &acc
	a.AttemptRate = &rate
	a.TimeTakenSeconds = 7200
	if err := store.SaveScores(ctx, a); err != nil {
		t.Fatalf("save scores: %v", err)
	}

	got, err := store.GetAttempt(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalScore == nil || *got.TotalScore != 42 || got.CorrectCount != 15 {
		t.Errorf("scores round-trip = %+v", got)
	}
	if got.Accuracy == nil || *got.Accuracy != 87.5 {
		t.Errorf("accuracy = %v", got.Accuracy)
	}
}
