package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/models"
)

// AssessmentRepository implements repository.AssessmentRepository on
// PostgreSQL. The question snapshot and answers are stored as JSONB since
// they are read and written as a unit.
type AssessmentRepository struct {
	db *sql.DB
}

func NewAssessmentRepository(db *sql.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// mcqRecord mirrors models.MCQQuestion with the correct option included;
// the model hides it from JSON so the snapshot needs its own shape.
type mcqRecord struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
}

func encodeQuestions(qs []models.MCQQuestion) ([]byte, error) {
	records := make([]mcqRecord, len(qs))
	for i, q := range qs {
		records[i] = mcqRecord{ID: q.ID, Question: q.Question, Options: q.Options, CorrectOption: q.CorrectOption}
	}
	return json.Marshal(records)
}

func decodeQuestions(raw []byte) ([]models.MCQQuestion, error) {
	var records []mcqRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	qs := make([]models.MCQQuestion, len(records))
	for i, rec := range records {
		qs[i] = models.MCQQuestion{ID: rec.ID, Question: rec.Question, Options: rec.Options, CorrectOption: rec.CorrectOption}
	}
	return qs, nil
}

func (r *AssessmentRepository) Create(ctx context.Context, a *models.Assessment) error {
	questions, err := encodeQuestions(a.MCQQuestions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	problem, err := json.Marshal(a.CodingProblem)
	if err != nil {
		return fmt.Errorf("encode coding problem: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO assessments (
		   id, application_id, job_id, status, deadline, duration_minutes,
		   mcq_questions, coding_problem, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.ApplicationID, a.JobID, string(a.Status), a.Deadline, a.DurationMinutes,
		questions, problem, a.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return apperrors.NewAlreadyExists("assessment",
				fmt.Sprintf("application: %s", a.ApplicationID))
		}
		return fmt.Errorf("insert assessment: %w", err)
	}

	return nil
}

const selectAssessment = `
SELECT id, application_id, job_id, status, deadline, duration_minutes,
       mcq_questions, coding_problem, score, started_at, completed_at, answers, created_at
  FROM assessments`

func (r *AssessmentRepository) Get(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := r.scanAssessment(r.db.QueryRowContext(ctx, selectAssessment+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("assessment", id)
	}
	return a, err
}

func (r *AssessmentRepository) GetByApplication(ctx context.Context, applicationID string) (*models.Assessment, error) {
	a, err := r.scanAssessment(r.db.QueryRowContext(ctx,
		selectAssessment+` WHERE application_id = $1`, applicationID))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("assessment", "application: "+applicationID)
	}
	return a, err
}

func (r *AssessmentRepository) scanAssessment(row rowScanner) (*models.Assessment, error) {
	var (
		a         models.Assessment
		status    string
		questions []byte
		problem   []byte
		answers   []byte
		started   sql.NullTime
		completed sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.ApplicationID, &a.JobID, &status, &a.Deadline, &a.DurationMinutes,
		&questions, &problem, &a.Score, &started, &completed, &answers, &a.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("select assessment: %w", err)
	}

	a.Status = models.AssessmentStatus(status)
	if a.MCQQuestions, err = decodeQuestions(questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if err := json.Unmarshal(problem, &a.CodingProblem); err != nil {
		return nil, fmt.Errorf("decode coding problem: %w", err)
	}
	if answers != nil {
		var ans models.AssessmentAnswers
		if err := json.Unmarshal(answers, &ans); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		a.Answers = &ans
	}
	if started.Valid {
		t := started.Time
		a.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		a.CompletedAt = &t
	}

	return &a, nil
}

// MarkStarted moves pending to in_progress only. The status guard keeps a
// late start from reopening a completed assessment.
func (r *AssessmentRepository) MarkStarted(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE assessments
		    SET status = $2, started_at = $3
		  WHERE id = $1 AND status = $4`,
		id, string(models.AssessmentInProgress), at, string(models.AssessmentPending),
	)
	if err != nil {
		return fmt.Errorf("mark assessment started: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var status string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM assessments WHERE id = $1`, id).Scan(&status)
		if err == sql.ErrNoRows {
			return apperrors.NewNotFound("assessment", id)
		}
		if err != nil {
			return fmt.Errorf("check assessment: %w", err)
		}
		if status == string(models.AssessmentCompleted) {
			return apperrors.NewAlreadySubmitted("assessment", id)
		}
		return apperrors.NewInvalidTransition(status, "start_assessment")
	}

	return nil
}

// Complete writes the score once: the status guard in the WHERE clause
// makes a lost race surface as AlreadySubmitted rather than a double write.
func (r *AssessmentRepository) Complete(ctx context.Context, id string, answers models.AssessmentAnswers, score int, at time.Time) error {
	encoded, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE assessments
		    SET status = $2, answers = $3, score = $4, completed_at = $5
		  WHERE id = $1 AND status <> $2`,
		id, string(models.AssessmentCompleted), encoded, score, at,
	)
	if err != nil {
		return fmt.Errorf("complete assessment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := r.db.QueryRowContext(ctx, `SELECT TRUE FROM assessments WHERE id = $1`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return apperrors.NewNotFound("assessment", id)
		}
		if err != nil {
			return fmt.Errorf("check assessment: %w", err)
		}
		return apperrors.NewAlreadySubmitted("assessment", id)
	}

	return nil
}
