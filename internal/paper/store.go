package paper

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("paper not found")

// Bundle is a paper together with its question sets, the unit the content
// pipeline publishes.
type Bundle struct {
	Paper Paper         `json:"paper"`
	Sets  []QuestionSet `json:"question_sets"`
}

// Store is the read surface the exam core consumes, plus the writes the
// content pipeline uses to publish.
type Store interface {
	// PutBundle inserts or replaces a paper and its question sets.
	PutBundle(ctx context.Context, b Bundle) error

	// SetPublished toggles paper visibility. Unpublished papers are hidden
	// from delivery and cannot accept new attempts. ref is id or slug.
	SetPublished(ctx context.Context, ref string, published bool) error

	// GetPaper resolves a paper by id or slug.
	GetPaper(ctx context.Context, ref string) (Paper, error)

	// GetAssembled returns the canonical assembled structure. Correct answers
	// are stripped unless includeAnswers is set (scoring/results only).
	GetAssembled(ctx context.Context, paperID string, includeAnswers bool) (AssembledPaper, error)
}
