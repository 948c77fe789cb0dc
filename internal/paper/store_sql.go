package paper

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/prepstack/mockcat/internal/db"
)

// SQLStore reads papers from sqlite or postgres. Two generations of schema are
// supported: the current question_sets layout, and the legacy flat
// questions + question_contexts layout, which is normalized through
// BuildLegacySets so callers only ever see assembled sets.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh} }

// schemaVariant is resolved once per query at the data-access boundary so an
// untyped "column missing" error never leaks into attempt or scoring logic.
type schemaVariant int

const (
	fullSchema schemaVariant = iota
	legacySchemaFallback
)

func (s *SQLStore) PutBundle(ctx context.Context, b Bundle) error {
	sectionsJSON, err := json.Marshal(b.Paper.Sections)
	if err != nil {
		return err
	}
	allowedJSON, err := json.Marshal(b.Paper.SectionalAllowed)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO papers
		(id,slug,title,year,sections_json,duration_minutes,default_positive_marks,default_negative_marks,published,attempt_limit,allow_sectional_attempts,sectional_allowed_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
		  slug=EXCLUDED.slug, title=EXCLUDED.title, year=EXCLUDED.year,
		  sections_json=EXCLUDED.sections_json, duration_minutes=EXCLUDED.duration_minutes,
		  default_positive_marks=EXCLUDED.default_positive_marks,
		  default_negative_marks=EXCLUDED.default_negative_marks,
		  published=EXCLUDED.published, attempt_limit=EXCLUDED.attempt_limit,
		  allow_sectional_attempts=EXCLUDED.allow_sectional_attempts,
		  sectional_allowed_json=EXCLUDED.sectional_allowed_json`,
		b.Paper.ID, nullIfEmpty(b.Paper.Slug), b.Paper.Title, b.Paper.Year, string(sectionsJSON),
		b.Paper.DurationMinutes, b.Paper.DefaultPositiveMarks, b.Paper.DefaultNegativeMarks,
		b.Paper.Published, b.Paper.AttemptLimit, b.Paper.AllowSectional, string(allowedJSON))
	if err != nil {
		return fmt.Errorf("put paper: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE paper_id=$1`, b.Paper.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM question_sets WHERE paper_id=$1`, b.Paper.ID); err != nil {
		return err
	}

	for _, set := range b.Sets {
		_, err = tx.ExecContext(ctx, `INSERT INTO question_sets
			(id,paper_id,section,set_type,content_layout,context_title,context_body,context_image_url,display_order,question_count,is_active)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			set.ID, b.Paper.ID, string(set.Section), set.SetType, set.ContentLayout,
			set.ContextTitle, set.ContextBody, set.ContextImageURL,
			set.DisplayOrder, len(set.Questions), set.IsActive)
		if err != nil {
			return fmt.Errorf("put question set %s: %w", set.ID, err)
		}
		for _, q := range set.Questions {
			var optionsJSON sql.NullString
			if q.Options != nil {
				buf, err := json.Marshal(q.Options)
				if err != nil {
					return err
				}
				optionsJSON = sql.NullString{String: string(buf), Valid: true}
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO questions
				(id,set_id,paper_id,section,question_number,sequence_order,question_text,question_type,options_json,correct_answer,positive_marks,negative_marks,is_active,context_id)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
				q.ID, set.ID, b.Paper.ID, string(set.Section), q.QuestionNumber, q.SequenceOrder,
				q.Text, string(q.Type), optionsJSON, q.CorrectAnswer,
				q.PositiveMarks, q.NegativeMarks, q.IsActive, q.ContextID)
			if err != nil {
				return fmt.Errorf("put question %s: %w", q.ID, err)
			}
		}
	}

	return tx.Commit()
}

func (s *SQLStore) SetPublished(ctx context.Context, ref string, published bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE papers SET published=$2 WHERE id=$1 OR slug=$1`, ref, published)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) GetPaper(ctx context.Context, ref string) (Paper, error) {
	p, variant, err := s.getPaperBy(ctx, "id", ref)
	if errors.Is(err, ErrNotFound) {
		p, variant, err = s.getPaperBy(ctx, "slug", ref)
	}
	if err != nil {
		return Paper{}, err
	}
	if variant == legacySchemaFallback {
		// Pre-migration database: degrade to full-mode-only behavior.
		p.AllowSectional = false
		p.SectionalAllowed = nil
	}
	return p, nil
}

func (s *SQLStore) getPaperBy(ctx context.Context, col, val string) (Paper, schemaVariant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,COALESCE(slug,''),title,year,sections_json,duration_minutes,
		default_positive_marks,default_negative_marks,published,attempt_limit,
		allow_sectional_attempts,sectional_allowed_json
		FROM papers WHERE `+col+`=$1`, val)

	var p Paper
	var sectionsJSON, allowedJSON string
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Year, &sectionsJSON, &p.DurationMinutes,
		&p.DefaultPositiveMarks, &p.DefaultNegativeMarks, &p.Published, &p.AttemptLimit,
		&p.AllowSectional, &allowedJSON)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(sectionsJSON), &p.Sections); err != nil {
			return Paper{}, fullSchema, fmt.Errorf("paper %s sections: %w", p.ID, err)
		}
		if allowedJSON != "" {
			if err := json.Unmarshal([]byte(allowedJSON), &p.SectionalAllowed); err != nil {
				log.Printf("paper: bad sectional_allowed_json for %s, ignoring: %v", p.ID, err)
				p.SectionalAllowed = nil
			}
		}
		return p, fullSchema, nil
	case errors.Is(err, sql.ErrNoRows):
		return Paper{}, fullSchema, ErrNotFound
	case db.IsUndefinedColumn(err):
		return s.getPaperLegacy(ctx, col, val)
	default:
		return Paper{}, fullSchema, err
	}
}

// getPaperLegacy re-queries without the sectional-attempt columns, for
// databases that predate that migration.
func (s *SQLStore) getPaperLegacy(ctx context.Context, col, val string) (Paper, schemaVariant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,COALESCE(slug,''),title,year,sections_json,duration_minutes,
		default_positive_marks,default_negative_marks,published,attempt_limit
		FROM papers WHERE `+col+`=$1`, val)

	var p Paper
	var sectionsJSON string
	err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Year, &sectionsJSON, &p.DurationMinutes,
		&p.DefaultPositiveMarks, &p.DefaultNegativeMarks, &p.Published, &p.AttemptLimit)
	if errors.Is(err, sql.ErrNoRows) {
		return Paper{}, legacySchemaFallback, ErrNotFound
	}
	if err != nil {
		return Paper{}, legacySchemaFallback, err
	}
	if err := json.Unmarshal([]byte(sectionsJSON), &p.Sections); err != nil {
		return Paper{}, legacySchemaFallback, fmt.Errorf("paper %s sections: %w", p.ID, err)
	}
	log.Printf("paper: sectional columns missing for %s, serving full-mode only", p.ID)
	return p, legacySchemaFallback, nil
}

func (s *SQLStore) GetAssembled(ctx context.Context, paperID string, includeAnswers bool) (AssembledPaper, error) {
	sets, err := s.querySets(ctx, paperID)
	if err != nil && !db.IsUndefinedTable(err) {
		return AssembledPaper{}, err
	}
	if len(sets) == 0 {
		// Old content generation: flat questions plus separate context rows.
		sets, err = s.queryLegacySets(ctx, paperID)
		if err != nil {
			return AssembledPaper{}, err
		}
	}

	assembled := Assemble(sets)
	if len(assembled.Questions) == 0 {
		return AssembledPaper{}, fmt.Errorf("paper %s has no active questions", paperID)
	}
	if !includeAnswers {
		for i := range assembled.Sets {
			assembled.Sets[i].Questions = StripAnswers(assembled.Sets[i].Questions)
		}
		assembled.Questions = StripAnswers(assembled.Questions)
	}
	return assembled, nil
}

func (s *SQLStore) querySets(ctx context.Context, paperID string) ([]QuestionSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,paper_id,section,set_type,content_layout,
		context_title,context_body,context_image_url,display_order,is_active
		FROM question_sets WHERE paper_id=$1 AND is_active=TRUE`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []QuestionSet
	byID := map[string]int{}
	for rows.Next() {
		var set QuestionSet
		var section string
		if err := rows.Scan(&set.ID, &set.PaperID, &section, &set.SetType, &set.ContentLayout,
			&set.ContextTitle, &set.ContextBody, &set.ContextImageURL, &set.DisplayOrder, &set.IsActive); err != nil {
			return nil, err
		}
		set.Section = Section(section)
		byID[set.ID] = len(sets)
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, nil
	}

	questions, err := s.queryQuestions(ctx, paperID)
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		idx, ok := byID[q.SetID]
		if !ok {
			log.Printf("paper: question %s references unknown set %s, skipping", q.ID, q.SetID)
			continue
		}
		sets[idx].Questions = append(sets[idx].Questions, q)
	}
	return sets, nil
}

func (s *SQLStore) queryLegacySets(ctx context.Context, paperID string) ([]QuestionSet, error) {
	questions, err := s.queryQuestions(ctx, paperID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id,paper_id,section,title,content,image_url,display_order,is_active
		FROM question_contexts WHERE paper_id=$1 AND is_active=TRUE`, paperID)
	if err != nil {
		if db.IsUndefinedTable(err) {
			return BuildLegacySets(questions, nil), nil
		}
		return nil, err
	}
	defer rows.Close()

	var contexts []Context
	for rows.Next() {
		var c Context
		var section string
		if err := rows.Scan(&c.ID, &c.PaperID, &section, &c.Title, &c.Body, &c.ImageURL, &c.DisplayOrder, &c.IsActive); err != nil {
			return nil, err
		}
		c.Section = Section(section)
		contexts = append(contexts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return BuildLegacySets(questions, contexts), nil
}

func (s *SQLStore) queryQuestions(ctx context.Context, paperID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,set_id,paper_id,section,question_number,sequence_order,
		question_text,question_type,options_json,correct_answer,positive_marks,negative_marks,is_active,context_id
		FROM questions WHERE paper_id=$1 AND is_active=TRUE
		ORDER BY section, question_number`, paperID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var section, qtype string
		var optionsJSON sql.NullString
		if err := rows.Scan(&q.ID, &q.SetID, &q.PaperID, &section, &q.QuestionNumber, &q.SequenceOrder,
			&q.Text, &qtype, &optionsJSON, &q.CorrectAnswer, &q.PositiveMarks, &q.NegativeMarks,
			&q.IsActive, &q.ContextID); err != nil {
			return nil, err
		}
		q.Section = Section(section)
		q.Type = QuestionType(qtype)
		if optionsJSON.Valid && optionsJSON.String != "" {
			if err := json.Unmarshal([]byte(optionsJSON.String), &q.Options); err != nil {
				log.Printf("paper: bad options_json for question %s, ignoring: %v", q.ID, err)
			}
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
