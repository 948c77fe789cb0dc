package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/prepstack/mockcat/internal/attempt"
	"github.com/prepstack/mockcat/internal/paper"
)

// Machine-readable reason codes returned alongside HTTP status so clients
// can branch without parsing messages.
const (
	CodeBadRequest        = "bad_request"
	CodeInvalidSectional  = "invalid_sectional"
	CodeSectionalNotAllow = "sectional_not_allowed"
	CodePaperUnavailable  = "paper_unavailable"
	CodeRateLimited       = "rate_limited"
	CodeActiveConflict    = "active_attempt_conflict"
	CodeLimitReached      = "limit_reached"
	CodeNotFound          = "not_found"
	CodeForbidden         = "forbidden"
	CodeInvalidState      = "invalid_state"
	CodeSectionLocked     = "section_locked"
	CodeSessionConflict   = "session_conflict"
	CodeInvalidQuestion   = "invalid_question"
	CodeTimeInflation     = "time_inflation"
	CodeInternal          = "internal"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// writeError maps domain sentinels onto status + reason code. Anything
// unmapped is a 500 with the detail kept server-side.
func writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(err, attempt.ErrNotFound), errors.Is(err, paper.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, attempt.ErrNotOwner):
		status, code = http.StatusForbidden, CodeForbidden
	case errors.Is(err, attempt.ErrPaperUnavailable):
		status, code = http.StatusNotFound, CodePaperUnavailable
	case errors.Is(err, attempt.ErrInvalidMode), errors.Is(err, attempt.ErrBadInput):
		status, code = http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, attempt.ErrInvalidSectional):
		status, code = http.StatusBadRequest, CodeInvalidSectional
	case errors.Is(err, attempt.ErrSectionalNotAllowed):
		status, code = http.StatusForbidden, CodeSectionalNotAllow
	case errors.Is(err, attempt.ErrLimitReached):
		status, code = http.StatusForbidden, CodeLimitReached
	case errors.Is(err, attempt.ErrActiveConflict):
		status, code = http.StatusConflict, CodeActiveConflict
	case errors.Is(err, attempt.ErrInvalidState):
		status, code = http.StatusConflict, CodeInvalidState
	case errors.Is(err, attempt.ErrSectionLocked):
		status, code = http.StatusForbidden, CodeSectionLocked
	case errors.Is(err, attempt.ErrSessionConflict):
		status, code = http.StatusConflict, CodeSessionConflict
	case errors.Is(err, attempt.ErrInvalidQuestion):
		status, code = http.StatusBadRequest, CodeInvalidQuestion
	case errors.Is(err, attempt.ErrTimeInflation):
		status, code = http.StatusBadRequest, CodeTimeInflation
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("api: internal error: %v", err)
		msg = "internal error"
	}
	writeCode(w, status, code, msg)
}
