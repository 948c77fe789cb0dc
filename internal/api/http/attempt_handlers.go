package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepstack/mockcat/internal/attempt"
	auth "github.com/prepstack/mockcat/internal/auth/middleware"
	"github.com/prepstack/mockcat/internal/paper"
	"github.com/prepstack/mockcat/internal/ratelimit"
)

// CreateAttemptHandler starts (or idempotently resumes) an attempt on
// {paperRef}. Starts are rate limited per user before the active-attempt
// lookup, so resumed starts spend window slots too.
func CreateAttemptHandler(svc *attempt.Service, limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			Mode    string `json:"mode"`
			Section string `json:"section"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeCode(w, http.StatusBadRequest, CodeBadRequest, "bad json")
				return
			}
		}
		mode, ok := attempt.ParseMode(req.Mode)
		if !ok {
			writeCode(w, http.StatusBadRequest, CodeBadRequest, "unknown mode")
			return
		}
		if limiter != nil && !limiter.Allow(sub) {
			writeCode(w, http.StatusTooManyRequests, CodeRateLimited, "too many attempt starts")
			return
		}
		res, err := svc.Start(r.Context(), sub, chi.URLParam(r, "paperRef"), mode, paper.Section(req.Section))
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusCreated
		if res.Resumed {
			status = http.StatusOK
		}
		writeJSON(w, status, struct {
			Attempt attempt.Attempt `json:"attempt"`
			Resumed bool            `json:"resumed"`
		}{res.Attempt, res.Resumed})
	}
}

func InitSessionHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		token, err := svc.InitializeSession(r.Context(), sub, chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"session_token": token})
	}
}

func SaveResponseHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			QuestionID        string  `json:"question_id"`
			Answer            *string `json:"answer"`
			Status            string  `json:"status"`
			IsMarkedForReview bool    `json:"is_marked_for_review"`
			IsVisited         *bool   `json:"is_visited"`
			TimeSpentSeconds  int     `json:"time_spent_seconds"`
			VisitCount        int     `json:"visit_count"`
			SessionToken      string  `json:"session_token"`
			ForceResume       bool    `json:"force_resume"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeCode(w, http.StatusBadRequest, CodeBadRequest, "bad json")
			return
		}
		if req.QuestionID == "" {
			writeCode(w, http.StatusBadRequest, CodeBadRequest, "question_id required")
			return
		}
		resp, err := svc.SaveResponse(r.Context(), sub, chi.URLParam(r, "attemptID"), attempt.SaveInput{
			QuestionID:        req.QuestionID,
			Answer:            req.Answer,
			Status:            req.Status,
			IsMarkedForReview: req.IsMarkedForReview,
			IsVisited:         req.IsVisited,
			TimeSpentSeconds:  req.TimeSpentSeconds,
			VisitCount:        req.VisitCount,
			SessionToken:      req.SessionToken,
			ForceResume:       req.ForceResume,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SyncProgressHandler is the timer heartbeat: the client reports its local
// clocks and position, the server answers with the authoritative state.
func SyncProgressHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			SessionToken    string         `json:"session_token"`
			TimeRemaining   map[string]int `json:"time_remaining"`
			CurrentSection  string         `json:"current_section"`
			CurrentQuestion int            `json:"current_question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeCode(w, http.StatusBadRequest, CodeBadRequest, "bad json")
			return
		}
		tr := make(map[paper.Section]int, len(req.TimeRemaining))
		for k, v := range req.TimeRemaining {
			sec, ok := paper.ParseSection(k)
			if !ok {
				writeCode(w, http.StatusBadRequest, CodeBadRequest, "unknown section "+k)
				return
			}
			tr[sec] = v
		}
		res, err := svc.SyncProgress(r.Context(), sub, chi.URLParam(r, "attemptID"), attempt.ProgressUpdate{
			SessionToken:    req.SessionToken,
			TimeRemaining:   tr,
			CurrentSection:  paper.Section(req.CurrentSection),
			CurrentQuestion: req.CurrentQuestion,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Attempt  attempt.Attempt `json:"attempt"`
			TimedOut bool            `json:"timed_out"`
		}{res.Attempt, res.TimedOut})
	}
}

func PauseAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		if err := svc.Pause(r.Context(), sub, chi.URLParam(r, "attemptID")); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": string(attempt.StatusPaused)})
	}
}

func SubmitAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		var req struct {
			SessionToken string `json:"session_token"`
			Forced       bool   `json:"forced"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeCode(w, http.StatusBadRequest, CodeBadRequest, "bad json")
				return
			}
		}
		res, err := svc.Submit(r.Context(), sub, chi.URLParam(r, "attemptID"), attempt.SubmitOptions{
			SessionToken: req.SessionToken,
			Forced:       req.Forced,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func GetAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		a, err := svc.Snapshot(r.Context(), sub, chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func GetResultsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := auth.SubjectFromContext(r.Context())
		res, err := svc.Results(r.Context(), sub, chi.URLParam(r, "attemptID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
