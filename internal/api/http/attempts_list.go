package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prepstack/mockcat/internal/attempt"
	auth "github.com/prepstack/mockcat/internal/auth/middleware"
	"github.com/prepstack/mockcat/internal/rbac"
)

// GET /attempts?paper_id=...&user_id=...&status=...&limit=50&offset=0
//
// Roles with attempt:view-all may filter freely; everyone else is scoped to
// their own attempts regardless of the user_id parameter.
func ListAttemptsHandler(svc *attempt.Service) http.HandlerFunc {
	checker := rbac.NewChecker(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := auth.SubjectFromContext(r.Context())

		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if !checker.Has(role, "attempt:view-all") {
			userID = sub
		}

		status := attempt.Status(strings.TrimSpace(r.URL.Query().Get("status")))
		list, err := svc.List(r.Context(), attempt.ListOpts{
			UserID:  userID,
			PaperID: strings.TrimSpace(r.URL.Query().Get("paper_id")),
			Status:  status,
			Limit:   parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:  parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		if list == nil {
			list = []attempt.Attempt{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
