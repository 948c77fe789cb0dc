package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:mockcat.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/mockcat?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables and indexes if missing. Exported so
// sqlite-backed tests can bootstrap an in-memory DB.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'student'
);

CREATE TABLE IF NOT EXISTS papers (
  id TEXT PRIMARY KEY,
  slug TEXT UNIQUE,
  title TEXT NOT NULL,
  year INTEGER NOT NULL DEFAULT 0,
  sections_json TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 0,
  default_positive_marks REAL NOT NULL DEFAULT 3,
  default_negative_marks REAL NOT NULL DEFAULT 1,
  published INTEGER NOT NULL DEFAULT 0,
  attempt_limit INTEGER NOT NULL DEFAULT 0,
  allow_sectional_attempts INTEGER NOT NULL DEFAULT 0,
  sectional_allowed_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS question_sets (
  id TEXT PRIMARY KEY,
  paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  section TEXT NOT NULL,
  set_type TEXT NOT NULL,
  content_layout TEXT NOT NULL DEFAULT '',
  context_title TEXT NOT NULL DEFAULT '',
  context_body TEXT NOT NULL DEFAULT '',
  context_image_url TEXT NOT NULL DEFAULT '',
  display_order INTEGER NOT NULL DEFAULT 0,
  question_count INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  set_id TEXT NOT NULL DEFAULT '',
  paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  section TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  sequence_order INTEGER NOT NULL DEFAULT 0,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  options_json TEXT,
  correct_answer TEXT NOT NULL DEFAULT '',
  positive_marks REAL NOT NULL DEFAULT 3,
  negative_marks REAL NOT NULL DEFAULT 1,
  is_active INTEGER NOT NULL DEFAULT 1,
  context_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS question_contexts (
  id TEXT PRIMARY KEY,
  paper_id TEXT NOT NULL,
  section TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  display_order INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  paper_id TEXT NOT NULL REFERENCES papers(id),
  user_id TEXT NOT NULL,
  mode TEXT NOT NULL DEFAULT 'full',
  sectional_section TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  current_section TEXT NOT NULL,
  current_question INTEGER NOT NULL DEFAULT 1,
  time_remaining_json TEXT NOT NULL,
  session_token TEXT NOT NULL DEFAULT '',
  started_at INTEGER NOT NULL,
  timer_synced_at INTEGER NOT NULL,
  submitted_at INTEGER,
  completed_at INTEGER,
  total_score REAL,
  max_possible_score REAL,
  correct_count INTEGER NOT NULL DEFAULT 0,
  incorrect_count INTEGER NOT NULL DEFAULT 0,
  unanswered_count INTEGER NOT NULL DEFAULT 0,
  accuracy REAL,
  attempt_rate REAL,
  section_scores_json TEXT,
  time_taken_seconds INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS attempts_one_active
  ON attempts(user_id, paper_id, mode, sectional_section)
  WHERE status IN ('in_progress','paused');

CREATE TABLE IF NOT EXISTS responses (
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  answer TEXT,
  status TEXT NOT NULL DEFAULT 'not_visited',
  is_marked_for_review INTEGER NOT NULL DEFAULT 0,
  is_visited INTEGER NOT NULL DEFAULT 0,
  time_spent_seconds INTEGER NOT NULL DEFAULT 0,
  visit_count INTEGER NOT NULL DEFAULT 0,
  is_correct INTEGER,
  marks_obtained REAL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  offset INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                        -- e.g., AttemptSubmitted
  key TEXT NOT NULL,                        -- natural key: attemptID
  data TEXT NOT NULL,                       -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'student'
);

CREATE TABLE IF NOT EXISTS papers (
  id TEXT PRIMARY KEY,
  slug TEXT UNIQUE,
  title TEXT NOT NULL,
  year INTEGER NOT NULL DEFAULT 0,
  sections_json TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL DEFAULT 0,
  default_positive_marks DOUBLE PRECISION NOT NULL DEFAULT 3,
  default_negative_marks DOUBLE PRECISION NOT NULL DEFAULT 1,
  published BOOLEAN NOT NULL DEFAULT FALSE,
  attempt_limit INTEGER NOT NULL DEFAULT 0,
  allow_sectional_attempts BOOLEAN NOT NULL DEFAULT FALSE,
  sectional_allowed_json TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS question_sets (
  id TEXT PRIMARY KEY,
  paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  section TEXT NOT NULL,
  set_type TEXT NOT NULL,
  content_layout TEXT NOT NULL DEFAULT '',
  context_title TEXT NOT NULL DEFAULT '',
  context_body TEXT NOT NULL DEFAULT '',
  context_image_url TEXT NOT NULL DEFAULT '',
  display_order INTEGER NOT NULL DEFAULT 0,
  question_count INTEGER NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  set_id TEXT NOT NULL DEFAULT '',
  paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
  section TEXT NOT NULL,
  question_number INTEGER NOT NULL,
  sequence_order INTEGER NOT NULL DEFAULT 0,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  options_json TEXT,
  correct_answer TEXT NOT NULL DEFAULT '',
  positive_marks DOUBLE PRECISION NOT NULL DEFAULT 3,
  negative_marks DOUBLE PRECISION NOT NULL DEFAULT 1,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  context_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS question_contexts (
  id TEXT PRIMARY KEY,
  paper_id TEXT NOT NULL,
  section TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  content TEXT NOT NULL DEFAULT '',
  image_url TEXT NOT NULL DEFAULT '',
  display_order INTEGER NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  paper_id TEXT NOT NULL REFERENCES papers(id),
  user_id TEXT NOT NULL,
  mode TEXT NOT NULL DEFAULT 'full',
  sectional_section TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  current_section TEXT NOT NULL,
  current_question INTEGER NOT NULL DEFAULT 1,
  time_remaining_json TEXT NOT NULL,
  session_token TEXT NOT NULL DEFAULT '',
  started_at BIGINT NOT NULL,
  timer_synced_at BIGINT NOT NULL,
  submitted_at BIGINT,
  completed_at BIGINT,
  total_score DOUBLE PRECISION,
  max_possible_score DOUBLE PRECISION,
  correct_count INTEGER NOT NULL DEFAULT 0,
  incorrect_count INTEGER NOT NULL DEFAULT 0,
  unanswered_count INTEGER NOT NULL DEFAULT 0,
  accuracy DOUBLE PRECISION,
  attempt_rate DOUBLE PRECISION,
  section_scores_json TEXT,
  time_taken_seconds INTEGER NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS attempts_one_active
  ON attempts(user_id, paper_id, mode, sectional_section)
  WHERE status IN ('in_progress','paused');

CREATE TABLE IF NOT EXISTS responses (
  attempt_id TEXT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id TEXT NOT NULL,
  answer TEXT,
  status TEXT NOT NULL DEFAULT 'not_visited',
  is_marked_for_review BOOLEAN NOT NULL DEFAULT FALSE,
  is_visited BOOLEAN NOT NULL DEFAULT FALSE,
  time_spent_seconds INTEGER NOT NULL DEFAULT 0,
  visit_count INTEGER NOT NULL DEFAULT 0,
  is_correct BOOLEAN,
  marks_obtained DOUBLE PRECISION,
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (attempt_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
