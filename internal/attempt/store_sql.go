package attempt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prepstack/mockcat/internal/db"
	"github.com/prepstack/mockcat/internal/paper"
	"github.com/prepstack/mockcat/internal/scoring"
)

// SQLStore persists attempts and responses in sqlite or postgres. Per-section
// maps (time remaining, section scores) live in JSON columns; everything the
// store filters or indexes on is a real column.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

const attemptColumns = `id,paper_id,user_id,mode,sectional_section,status,current_section,
	current_question,time_remaining_json,session_token,started_at,timer_synced_at,
	submitted_at,completed_at,total_score,max_possible_score,correct_count,incorrect_count,
	unanswered_count,accuracy,attempt_rate,section_scores_json,time_taken_seconds,created_at`

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	trJSON, err := json.Marshal(a.TimeRemaining)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,paper_id,user_id,mode,sectional_section,status,current_section,current_question,
		 time_remaining_json,session_token,started_at,timer_synced_at,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.PaperID, a.UserID, string(a.Mode), string(a.SectionalSection), string(a.Status),
		string(a.CurrentSection), a.CurrentQuestion, string(trJSON), a.SessionToken,
		a.StartedAt, a.TimerSyncedAt, a.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateActive
	}
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, id)
	return scanAttempt(row)
}

func (s *SQLStore) FindActive(ctx context.Context, key ActiveKey) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptColumns+` FROM attempts
		WHERE user_id=$1 AND paper_id=$2 AND mode=$3 AND sectional_section=$4
		  AND status IN ('in_progress','paused')
		ORDER BY created_at DESC LIMIT 1`,
		key.UserID, key.PaperID, string(key.Mode), string(key.Section))
	return scanAttempt(row)
}

func (s *SQLStore) CountTerminal(ctx context.Context, key ActiveKey) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts
		WHERE user_id=$1 AND paper_id=$2 AND mode=$3 AND sectional_section=$4
		  AND status IN ('completed','submitted')`,
		key.UserID, key.PaperID, string(key.Mode), string(key.Section)).Scan(&n)
	return n, err
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts ListOpts) ([]Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE 1=1`
	var args []any
	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s=$%d", clause, len(args))
	}
	if opts.UserID != "" {
		add("user_id", opts.UserID)
	}
	if opts.PaperID != "" {
		add("paper_id", opts.PaperID)
	}
	if opts.Status != "" {
		add("status", string(opts.Status))
	}
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveProgress(ctx context.Context, a Attempt) error {
	trJSON, err := json.Marshal(a.TimeRemaining)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET
		status=$1, current_section=$2, current_question=$3,
		time_remaining_json=$4, session_token=$5, timer_synced_at=$6
		WHERE id=$7 AND status IN ('in_progress','paused')`,
		string(a.Status), string(a.CurrentSection), a.CurrentQuestion,
		string(trJSON), a.SessionToken, a.TimerSyncedAt, a.ID)
	if err != nil {
		return err
	}
	// Zero rows means the attempt went terminal under us; progress on a
	// finalized attempt is silently dropped, never resurrected.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: attempt %s is no longer active", ErrInvalidState, a.ID)
	}
	return nil
}

func (s *SQLStore) TransitionTerminal(ctx context.Context, id string, to Status, at int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE attempts SET
		status=$1, submitted_at=$2, completed_at=$3
		WHERE id=$4 AND status IN ('in_progress','paused')`,
		string(to), at, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLStore) SaveScores(ctx context.Context, a Attempt) error {
	var ssJSON sql.NullString
	if a.SectionScores != nil {
		buf, err := json.Marshal(a.SectionScores)
		if err != nil {
			return err
		}
		ssJSON = sql.NullString{String: string(buf), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `UPDATE attempts SET
		total_score=$1, max_possible_score=$2, correct_count=$3, incorrect_count=$4,
		unanswered_count=$5, accuracy=$6, attempt_rate=$7, section_scores_json=$8,
		time_taken_seconds=$9
		WHERE id=$10`,
		a.TotalScore, a.MaxPossibleScore, a.CorrectCount, a.IncorrectCount,
		a.UnansweredCount, a.Accuracy, a.AttemptRate, ssJSON, a.TimeTakenSeconds, a.ID)
	return err
}

func (s *SQLStore) UpsertResponse(ctx context.Context, r Response) (Response, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO responses
		(attempt_id,question_id,answer,status,is_marked_for_review,is_visited,
		 time_spent_seconds,visit_count,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (attempt_id,question_id) DO UPDATE SET
		  answer=EXCLUDED.answer, status=EXCLUDED.status,
		  is_marked_for_review=EXCLUDED.is_marked_for_review,
		  is_visited=EXCLUDED.is_visited,
		  time_spent_seconds=EXCLUDED.time_spent_seconds,
		  visit_count=EXCLUDED.visit_count,
		  updated_at=EXCLUDED.updated_at`,
		r.AttemptID, r.QuestionID, r.Answer, r.Status, r.IsMarkedForReview, r.IsVisited,
		r.TimeSpentSeconds, r.VisitCount, r.UpdatedAt)
	if err != nil {
		return Response{}, err
	}
	return r, nil
}

func (s *SQLStore) GetResponse(ctx context.Context, attemptID, questionID string) (Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT attempt_id,question_id,answer,status,
		is_marked_for_review,is_visited,time_spent_seconds,visit_count,is_correct,marks_obtained,updated_at
		FROM responses WHERE attempt_id=$1 AND question_id=$2`, attemptID, questionID)
	r, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Response{}, ErrNotFound
	}
	return r, err
}

func (s *SQLStore) ListResponses(ctx context.Context, attemptID string) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT attempt_id,question_id,answer,status,
		is_marked_for_review,is_visited,time_spent_seconds,visit_count,is_correct,marks_obtained,updated_at
		FROM responses WHERE attempt_id=$1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveResponseOutcomes(ctx context.Context, attemptID string, outcomes []Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range outcomes {
		if _, err := tx.ExecContext(ctx, `UPDATE responses SET is_correct=$1, marks_obtained=$2
			WHERE attempt_id=$3 AND question_id=$4`,
			r.IsCorrect, r.MarksObtained, attemptID, r.QuestionID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (Attempt, error) {
	var a Attempt
	var mode, section, status, current string
	var trJSON string
	var ssJSON sql.NullString
	var submittedAt, completedAt sql.NullInt64

	err := row.Scan(&a.ID, &a.PaperID, &a.UserID, &mode, &section, &status, &current,
		&a.CurrentQuestion, &trJSON, &a.SessionToken, &a.StartedAt, &a.TimerSyncedAt,
		&submittedAt, &completedAt, &a.TotalScore, &a.MaxPossibleScore,
		&a.CorrectCount, &a.IncorrectCount, &a.UnansweredCount,
		&a.Accuracy, &a.AttemptRate, &ssJSON, &a.TimeTakenSeconds, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrNotFound
	}
	if err != nil {
		return Attempt{}, err
	}

	a.Mode = Mode(mode)
	a.SectionalSection = paper.Section(section)
	a.Status = Status(status)
	a.CurrentSection = paper.Section(current)
	a.SubmittedAt = submittedAt.Int64
	a.CompletedAt = completedAt.Int64
	if err := json.Unmarshal([]byte(trJSON), &a.TimeRemaining); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s time_remaining: %w", a.ID, err)
	}
	if ssJSON.Valid && ssJSON.String != "" {
		var ss map[paper.Section]scoring.SectionScore
		if err := json.Unmarshal([]byte(ssJSON.String), &ss); err != nil {
			return Attempt{}, fmt.Errorf("attempt %s section_scores: %w", a.ID, err)
		}
		a.SectionScores = ss
	}
	return a, nil
}

func scanResponse(row rowScanner) (Response, error) {
	var r Response
	var answer sql.NullString
	var isCorrect sql.NullBool
	var marks sql.NullFloat64

	err := row.Scan(&r.AttemptID, &r.QuestionID, &answer, &r.Status, &r.IsMarkedForReview,
		&r.IsVisited, &r.TimeSpentSeconds, &r.VisitCount, &isCorrect, &marks, &r.UpdatedAt)
	if err != nil {
		return Response{}, err
	}
	if answer.Valid {
		r.Answer = &answer.String
	}
	if isCorrect.Valid {
		r.IsCorrect = &isCorrect.Bool
	}
	if marks.Valid {
		r.MarksObtained = &marks.Float64
	}
	return r, nil
}
