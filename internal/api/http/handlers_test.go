package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	api "github.com/prepstack/mockcat/internal/api/http"
	"github.com/prepstack/mockcat/internal/attempt"
	auth "github.com/prepstack/mockcat/internal/auth/middleware"
	"github.com/prepstack/mockcat/internal/paper"
	"github.com/prepstack/mockcat/internal/ratelimit"
	"github.com/prepstack/mockcat/internal/rbac"
)

// asUser stands in for the JWT middleware: subject and role straight into
// context.
func asUser(sub, role string) func(stdhttp.Handler) stdhttp.Handler {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
			ctx := auth.WithSubject(r.Context(), sub)
			ctx = rbac.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(t *testing.T, limiter *ratelimit.Limiter) (chi.Router, paper.Store) {
	t.Helper()
	papers := paper.NewInMemoryStore()
	svc := attempt.NewService(papers, attempt.NewInMemoryStore())

	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(asUser("student-1", "student"))
		pr.With(rbac.Require("exam:view")).
			Get("/papers/{paperRef}/exam", api.GetExamHandler(papers))
		pr.With(rbac.Require("attempt:create")).
			Post("/papers/{paperRef}/attempts", api.CreateAttemptHandler(svc, limiter))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/session", api.InitSessionHandler(svc))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/responses", api.SaveResponseHandler(svc))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(svc))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/results", api.GetResultsHandler(svc))
	})
	r.Group(func(pr chi.Router) {
		pr.Use(asUser("editor-1", "editor"))
		pr.With(rbac.Require("paper:create")).
			Put("/papers", api.PutPaperHandler(papers))
		pr.With(rbac.Require("paper:publish")).
			Post("/papers/{paperRef}/publish", api.PublishPaperHandler(papers))
	})
	return r, papers
}

func seedPaper(t *testing.T, papers paper.Store) {
	t.Helper()
	p := paper.Paper{
		ID: "paper-1", Title: "CAT 2024 Slot 1", Published: true,
		Sections: []paper.SectionConfig{
			{Name: paper.SectionVARC, Questions: 1, TimeMinutes: 40, Marks: 3},
			{Name: paper.SectionDILR, Questions: 1, TimeMinutes: 40, Marks: 3},
			{Name: paper.SectionQA, Questions: 1, TimeMinutes: 40, Marks: 3},
		},
		DurationMinutes: 120,
	}
	var sets []paper.QuestionSet
	for i, sec := range paper.SectionOrder {
		sets = append(sets, paper.QuestionSet{
			ID: "set-" + string(sec), PaperID: p.ID, Section: sec,
			SetType: paper.SetTypeAtomic, DisplayOrder: i + 1, IsActive: true,
			Questions: []paper.Question{{
				ID: "q-" + string(sec), QuestionNumber: 1, Type: paper.TypeMCQ,
				CorrectAnswer: "B", PositiveMarks: 3, NegativeMarks: 1, IsActive: true,
			}},
		})
	}
	if err := papers.PutBundle(context.Background(), paper.Bundle{Paper: p, Sets: sets}); err != nil {
		t.Fatal(err)
	}
}

func do(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	r, papers := newTestRouter(t, nil)
	seedPaper(t, papers)

	// create
	rec := do(t, r, "POST", "/papers/paper-1/attempts", map[string]string{"mode": "full"})
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		Attempt attempt.Attempt `json:"attempt"`
		Resumed bool            `json:"resumed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	id := created.Attempt.ID

	// idempotent replay comes back 200 with the same attempt
	rec = do(t, r, "POST", "/papers/paper-1/attempts", map[string]string{"mode": "full"})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("replay = %d", rec.Code)
	}

	// session
	rec = do(t, r, "POST", "/attempts/"+id+"/session", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("session = %d: %s", rec.Code, rec.Body)
	}
	var sess map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &sess)
	tok := sess["session_token"]
	if tok == "" {
		t.Fatal("no session token")
	}

	// answer one question
	rec = do(t, r, "POST", "/attempts/"+id+"/responses", map[string]any{
		"question_id": "q-VARC", "answer": "B", "session_token": tok,
	})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("save = %d: %s", rec.Code, rec.Body)
	}

	// submit, then replay the submit
	rec = do(t, r, "POST", "/attempts/"+id+"/submit", map[string]string{"session_token": tok})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("submit = %d: %s", rec.Code, rec.Body)
	}
	var sub attempt.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatal(err)
	}
	if sub.Attempt.TotalScore == nil || *sub.Attempt.TotalScore != 3 {
		t.Errorf("total = %v, want 3", sub.Attempt.TotalScore)
	}

	rec = do(t, r, "POST", "/attempts/"+id+"/submit", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("resubmit = %d", rec.Code)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &sub)
	if !sub.AlreadySubmitted {
		t.Error("resubmit not flagged as replay")
	}

	// results reveal answer keys
	rec = do(t, r, "GET", "/attempts/"+id+"/results", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("results = %d: %s", rec.Code, rec.Body)
	}
	var results attempt.SubmitResult
	_ = json.Unmarshal(rec.Body.Bytes(), &results)
	if len(results.QuestionResults) != 3 || results.QuestionResults[0].CorrectAnswer == "" {
		t.Errorf("question results = %+v", results.QuestionResults)
	}
}

func TestErrorCodes(t *testing.T) {
	r, papers := newTestRouter(t, nil)
	seedPaper(t, papers)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown paper", "POST", "/papers/nope/attempts", nil, 404, "paper_unavailable"},
		{"bad mode", "POST", "/papers/paper-1/attempts", map[string]string{"mode": "speedrun"}, 400, "bad_request"},
		{"sectional on disallowing paper", "POST", "/papers/paper-1/attempts",
			map[string]string{"mode": "sectional", "section": "QA"}, 403, "sectional_not_allowed"},
		{"unknown attempt", "GET", "/attempts/nope", nil, 404, "not_found"},
		{"results for unknown attempt", "GET", "/attempts/nope/results", nil, 404, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, tc.method, tc.path, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body)
			}
			var body struct {
				Code string `json:"code"`
			}
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body.Code != tc.code {
				t.Errorf("code = %q, want %q", body.Code, tc.code)
			}
		})
	}
}

func TestCreateAttemptRateLimited(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	r, papers := newTestRouter(t, limiter)
	seedPaper(t, papers)

	if rec := do(t, r, "POST", "/papers/paper-1/attempts", nil); rec.Code != stdhttp.StatusCreated {
		t.Fatalf("first create = %d", rec.Code)
	}
	// the limiter runs before the active-attempt lookup, so even a request
	// that would have resumed the existing attempt is turned away
	rec := do(t, r, "POST", "/papers/paper-1/attempts", nil)
	if rec.Code != stdhttp.StatusTooManyRequests {
		t.Fatalf("second create = %d, want 429", rec.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Code != "rate_limited" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestGetExamStripsAnswers(t *testing.T) {
	r, papers := newTestRouter(t, nil)
	seedPaper(t, papers)

	rec := do(t, r, "GET", "/papers/paper-1/exam", nil)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("exam = %d: %s", rec.Code, rec.Body)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("correct_answer")) {
		t.Error("answer key leaked into exam payload")
	}
	var payload struct {
		Sets []paper.QuestionSet `json:"sets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Sets) != 3 {
		t.Errorf("got %d sets", len(payload.Sets))
	}
}

func TestPutPaperRoundTrip(t *testing.T) {
	r, papers := newTestRouter(t, nil)

	rec := do(t, r, "PUT", "/papers", paper.Bundle{Paper: paper.Paper{
		ID: "p-new", Title: "Mock 3", Published: true,
		Sections: []paper.SectionConfig{{Name: paper.SectionQA, TimeMinutes: 40}},
	}})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("put = %d: %s", rec.Code, rec.Body)
	}
	p, err := papers.GetPaper(context.Background(), "p-new")
	if err != nil || p.Title != "Mock 3" {
		t.Errorf("stored paper = %+v, %v", p, err)
	}
}

func TestPublishToggle(t *testing.T) {
	r, papers := newTestRouter(t, nil)
	seedPaper(t, papers)

	// pull the paper: delivery and new attempts go dark
	rec := do(t, r, "POST", "/papers/paper-1/publish", map[string]bool{"published": false})
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("unpublish = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, r, "GET", "/papers/paper-1/exam", nil); rec.Code != stdhttp.StatusNotFound {
		t.Errorf("exam after unpublish = %d, want 404", rec.Code)
	}
	if rec := do(t, r, "POST", "/papers/paper-1/attempts", nil); rec.Code != stdhttp.StatusNotFound {
		t.Errorf("attempt after unpublish = %d, want 404", rec.Code)
	}

	// empty body republishes
	if rec := do(t, r, "POST", "/papers/paper-1/publish", nil); rec.Code != stdhttp.StatusOK {
		t.Fatalf("republish = %d: %s", rec.Code, rec.Body)
	}
	if rec := do(t, r, "GET", "/papers/paper-1/exam", nil); rec.Code != stdhttp.StatusOK {
		t.Errorf("exam after republish = %d", rec.Code)
	}

	if rec := do(t, r, "POST", "/papers/nope/publish", nil); rec.Code != stdhttp.StatusNotFound {
		t.Errorf("publish unknown paper = %d, want 404", rec.Code)
	}
}

func TestRequirePermission(t *testing.T) {
	handler := rbac.Require("attempt:create")(stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
	}))

	for _, tc := range []struct {
		role string
		want int
	}{
		{"student", stdhttp.StatusOK},
		{"admin", stdhttp.StatusOK},
		{"editor", stdhttp.StatusForbidden},
		{"", stdhttp.StatusForbidden},
	} {
		req := httptest.NewRequest("POST", "/", nil)
		req = req.WithContext(rbac.WithRole(req.Context(), tc.role))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("role %q: status = %d, want %d", tc.role, rec.Code, tc.want)
		}
	}
}
