package postgres

import (
	"database/sql"
	"fmt"
	"time"
)

// migration pairs a stable name with its DDL. Applied in slice order and
// recorded in schema_migrations so reruns are no-ops.
type migration struct {
	name string
	stmt string
}

var migrations = []migration{
	{
		name: "001_jobs",
		stmt: `
CREATE TABLE IF NOT EXISTS jobs (
  id           TEXT PRIMARY KEY,
  company_name TEXT NOT NULL,
  role_title   TEXT NOT NULL,
  deadline     TIMESTAMP WITH TIME ZONE NOT NULL,
  active       BOOLEAN NOT NULL DEFAULT TRUE
)`,
	},
	{
		name: "002_applications",
		stmt: `
CREATE TABLE IF NOT EXISTS applications (
  id                           TEXT PRIMARY KEY,
  job_id                       TEXT NOT NULL REFERENCES jobs (id),
  student_id                   TEXT NOT NULL,
  status                       TEXT NOT NULL,
  version                      BIGINT NOT NULL DEFAULT 0,
  applied_at                   TIMESTAMP WITH TIME ZONE NOT NULL,
  resume_score                 DOUBLE PRECISION,
  assessment_score             DOUBLE PRECISION,
  ai_interview_score           DOUBLE PRECISION,
  resume_approval              TEXT NOT NULL DEFAULT 'pending',
  assessment_approval          TEXT NOT NULL DEFAULT 'pending',
  ai_interview_approval        TEXT NOT NULL DEFAULT 'pending',
  assigned_professional_id     TEXT,
  assigned_manager_id          TEXT,
  assigned_hr_id               TEXT,
  professional_interview_score DOUBLE PRECISION,
  manager_interview_score      DOUBLE PRECISION,
  hr_interview_score           DOUBLE PRECISION,
  meeting_link                 TEXT NOT NULL DEFAULT '',
  scheduled_date               TIMESTAMP WITH TIME ZONE,
  created_at                   TIMESTAMP WITH TIME ZONE NOT NULL,
  updated_at                   TIMESTAMP WITH TIME ZONE NOT NULL,
  UNIQUE (job_id, student_id)
)`,
	},
	{
		name: "003_application_timeline",
		stmt: `
CREATE TABLE IF NOT EXISTS application_timeline (
  id             BIGSERIAL PRIMARY KEY,
  application_id TEXT NOT NULL REFERENCES applications (id),
  status         TEXT NOT NULL,
  recorded_at    TIMESTAMP WITH TIME ZONE NOT NULL,
  notes          TEXT NOT NULL DEFAULT ''
)`,
	},
	{
		name: "004_application_feedback",
		stmt: `
CREATE TABLE IF NOT EXISTS application_feedback (
  id             BIGSERIAL PRIMARY KEY,
  application_id TEXT NOT NULL REFERENCES applications (id),
  round          TEXT NOT NULL,
  interviewer_id TEXT NOT NULL,
  rating         DOUBLE PRECISION NOT NULL,
  recommendation TEXT NOT NULL,
  comments       TEXT NOT NULL DEFAULT '',
  conducted_at   TIMESTAMP WITH TIME ZONE NOT NULL
)`,
	},
	{
		name: "005_interviewers",
		stmt: `
CREATE TABLE IF NOT EXISTS interviewers (
  id                     TEXT PRIMARY KEY,
  name                   TEXT NOT NULL,
  email                  TEXT NOT NULL,
  role                   TEXT NOT NULL,
  approval_status        TEXT NOT NULL DEFAULT 'pending',
  active_interview_count INTEGER NOT NULL DEFAULT 0,
  interviews_taken       INTEGER NOT NULL DEFAULT 0,
  rating                 DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at             TIMESTAMP WITH TIME ZONE NOT NULL,
  updated_at             TIMESTAMP WITH TIME ZONE NOT NULL
)`,
	},
	{
		name: "006_assessments",
		stmt: `
CREATE TABLE IF NOT EXISTS assessments (
  id               TEXT PRIMARY KEY,
  application_id   TEXT NOT NULL UNIQUE REFERENCES applications (id),
  job_id           TEXT NOT NULL,
  status           TEXT NOT NULL DEFAULT 'pending',
  deadline         TIMESTAMP WITH TIME ZONE NOT NULL,
  duration_minutes INTEGER NOT NULL,
  mcq_questions    JSONB NOT NULL,
  coding_problem   JSONB NOT NULL,
  score            INTEGER,
  started_at       TIMESTAMP WITH TIME ZONE,
  completed_at     TIMESTAMP WITH TIME ZONE,
  answers          JSONB,
  created_at       TIMESTAMP WITH TIME ZONE NOT NULL
)`,
	},
}

// RunMigrations applies the pipeline schema, recording each step in
// schema_migrations so it is safe to call on every startup.
func RunMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := isMigrationApplied(db, m.name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %s: %w", m.name, err)
		}

		if _, err := tx.Exec(m.stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)`,
			m.name, time.Now().UTC(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}

	return nil
}

func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  id         SERIAL PRIMARY KEY,
  name       TEXT NOT NULL UNIQUE,
  applied_at TIMESTAMP WITH TIME ZONE NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	return nil
}

func isMigrationApplied(db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT TRUE FROM schema_migrations WHERE name = $1`, name).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}

	return true, nil
}
