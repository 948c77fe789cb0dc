package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/prepstack/mockcat/internal/paper"
)

// GetExamHandler serves the assembled paper for delivery: sets in section
// order, answer keys stripped. {paperRef} accepts id or slug.
func GetExamHandler(store paper.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "paperRef")
		p, err := store.GetPaper(r.Context(), ref)
		if err != nil {
			if errors.Is(err, paper.ErrNotFound) {
				writeCode(w, http.StatusNotFound, CodePaperUnavailable, "paper not found")
				return
			}
			writeError(w, err)
			return
		}
		if !p.Published {
			writeCode(w, http.StatusNotFound, CodePaperUnavailable, "paper not published")
			return
		}
		assembled, err := store.GetAssembled(r.Context(), p.ID, false)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Paper paper.Paper         `json:"paper"`
			Sets  []paper.QuestionSet `json:"sets"`
		}{Paper: p, Sets: assembled.Sets})
	}
}

// PutPaperHandler loads or replaces a paper bundle. Editor/admin only.
func PutPaperHandler(store paper.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b paper.Bundle
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			writeCode(w, http.StatusBadRequest, CodeBadRequest, "bad json")
			return
		}
		if b.Paper.ID == "" {
			b.Paper.ID = uuid.NewString()
		}
		if b.Paper.Title == "" || len(b.Paper.Sections) == 0 {
			writeCode(w, http.StatusBadRequest, CodeBadRequest, "title and sections required")
			return
		}
		for i := range b.Sets {
			b.Sets[i].PaperID = b.Paper.ID
		}
		if err := store.PutBundle(r.Context(), b); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"paper_id": b.Paper.ID})
	}
}

// PublishPaperHandler toggles whether {paperRef} is visible to candidates.
// An empty body publishes; {"published": false} pulls the paper.
func PublishPaperHandler(store paper.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Published *bool `json:"published"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeCode(w, http.StatusBadRequest, CodeBadRequest, "bad json")
				return
			}
		}
		published := true
		if req.Published != nil {
			published = *req.Published
		}
		if err := store.SetPublished(r.Context(), chi.URLParam(r, "paperRef"), published); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"published": published})
	}
}
