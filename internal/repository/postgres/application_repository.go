package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	apperrors "placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/repository"
)

const uniqueViolation = "23505"

// ApplicationRepository implements repository.ApplicationRepository on
// PostgreSQL. Status, timeline and side fields are written in one
// transaction guarded by the version column.
type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO applications (
		   id, job_id, student_id, status, version, applied_at,
		   resume_approval, assessment_approval, ai_interview_approval,
		   meeting_link, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		app.ID, app.JobID, app.StudentID, string(app.Status), app.Version, app.AppliedAt,
		string(app.ResumeApproval), string(app.AssessmentApproval), string(app.AIInterviewApproval),
		app.MeetingLink, app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return apperrors.NewAlreadyExists("application",
				fmt.Sprintf("job: %s, student: %s", app.JobID, app.StudentID))
		}
		return fmt.Errorf("insert application: %w", err)
	}

	for _, ev := range app.Timeline {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO application_timeline (application_id, status, recorded_at, notes)
			 VALUES ($1, $2, $3, $4)`,
			app.ID, string(ev.Status), ev.Timestamp, ev.Notes,
		); err != nil {
			return fmt.Errorf("insert timeline entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (r *ApplicationRepository) Get(ctx context.Context, id string) (*models.Application, error) {
	return loadApplication(ctx, r.db, id)
}

// querier abstracts *sql.DB and *sql.Tx so application loading can run
// inside the Reserve transaction as well.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func loadApplication(ctx context.Context, q querier, id string) (*models.Application, error) {
	var (
		app           models.Application
		status        string
		resumeAppr    string
		assessAppr    string
		aiAppr        string
		scheduledDate sql.NullTime
	)

	err := q.QueryRowContext(ctx,
		`SELECT id, job_id, student_id, status, version, applied_at,
		        resume_score, assessment_score, ai_interview_score,
		        resume_approval, assessment_approval, ai_interview_approval,
		        assigned_professional_id, assigned_manager_id, assigned_hr_id,
		        professional_interview_score, manager_interview_score, hr_interview_score,
		        meeting_link, scheduled_date, created_at, updated_at
		   FROM applications
		  WHERE id = $1`,
		id,
	).Scan(
		&app.ID, &app.JobID, &app.StudentID, &status, &app.Version, &app.AppliedAt,
		&app.ResumeScore, &app.AssessmentScore, &app.AIInterviewScore,
		&resumeAppr, &assessAppr, &aiAppr,
		&app.AssignedProfessionalID, &app.AssignedManagerID, &app.AssignedHRID,
		&app.ProfessionalInterviewScore, &app.ManagerInterviewScore, &app.HRInterviewScore,
		&app.MeetingLink, &scheduledDate, &app.CreatedAt, &app.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("application", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select application: %w", err)
	}

	app.Status = models.Status(status)
	app.ResumeApproval = models.Approval(resumeAppr)
	app.AssessmentApproval = models.Approval(assessAppr)
	app.AIInterviewApproval = models.Approval(aiAppr)
	if scheduledDate.Valid {
		t := scheduledDate.Time
		app.ScheduledDate = &t
	}

	rows, err := q.QueryContext(ctx,
		`SELECT status, recorded_at, notes
		   FROM application_timeline
		  WHERE application_id = $1
		  ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select timeline: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			ev models.TimelineEvent
			st string
		)
		if err := rows.Scan(&st, &ev.Timestamp, &ev.Notes); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		ev.Status = models.Status(st)
		app.Timeline = append(app.Timeline, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline: %w", err)
	}

	fbRows, err := q.QueryContext(ctx,
		`SELECT round, interviewer_id, rating, recommendation, comments, conducted_at
		   FROM application_feedback
		  WHERE application_id = $1
		  ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select feedback: %w", err)
	}
	defer func() { _ = fbRows.Close() }()

	for fbRows.Next() {
		var (
			fb    models.InterviewFeedback
			round string
			rec   string
		)
		if err := fbRows.Scan(&round, &fb.InterviewerID, &fb.Rating, &rec, &fb.Comments, &fb.ConductedAt); err != nil {
			return nil, fmt.Errorf("scan feedback entry: %w", err)
		}
		fb.Round = models.Round(round)
		fb.Recommendation = models.Recommendation(rec)
		app.Feedback = append(app.Feedback, fb)
	}
	if err := fbRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	return &app, nil
}

func (r *ApplicationRepository) ApplyTransition(ctx context.Context, id string, expectedVersion int64, upd repository.ApplicationUpdate) (*models.Application, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	if err := applyUpdateTx(ctx, tx, id, expectedVersion, upd, now); err != nil {
		return nil, err
	}

	app, err := loadApplication(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return app, nil
}

// applyUpdateTx performs the guarded status write, the timeline append and
// the optional side writes inside the given transaction. Reserve reuses it
// so the assignment lands in the same tx as the capacity increment.
func applyUpdateTx(ctx context.Context, tx *sql.Tx, id string, expectedVersion int64, upd repository.ApplicationUpdate, now time.Time) error {
	set := []string{"status = $3", "version = version + 1", "updated_at = $4"}
	args := []interface{}{id, expectedVersion, string(upd.Status), now}

	addSet := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.ResumeApproval != nil {
		addSet("resume_approval", string(*upd.ResumeApproval))
	}
	if upd.AssessmentApproval != nil {
		addSet("assessment_approval", string(*upd.AssessmentApproval))
	}
	if upd.AIInterviewApproval != nil {
		addSet("ai_interview_approval", string(*upd.AIInterviewApproval))
	}
	if upd.ResumeScore != nil {
		addSet("resume_score", *upd.ResumeScore)
	}
	if upd.AssessmentScore != nil {
		addSet("assessment_score", *upd.AssessmentScore)
	}
	if upd.AIInterviewScore != nil {
		addSet("ai_interview_score", *upd.AIInterviewScore)
	}
	if upd.RoundScore != nil {
		switch upd.RoundScore.Round {
		case models.RoundProfessional:
			addSet("professional_interview_score", upd.RoundScore.Score)
		case models.RoundManager:
			addSet("manager_interview_score", upd.RoundScore.Score)
		case models.RoundHR:
			addSet("hr_interview_score", upd.RoundScore.Score)
		}
	}
	if upd.Assignment != nil {
		addSet(assignmentColumn(upd.Assignment.Round), upd.Assignment.InterviewerID)
	}
	if upd.Schedule != nil {
		addSet("meeting_link", upd.Schedule.MeetingLink)
		addSet("scheduled_date", upd.Schedule.When)
	}

	query := fmt.Sprintf(
		`UPDATE applications SET %s WHERE id = $1 AND version = $2`,
		strings.Join(set, ", "),
	)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx, `SELECT TRUE FROM applications WHERE id = $1`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return apperrors.NewNotFound("application", id)
		}
		if err != nil {
			return fmt.Errorf("check application: %w", err)
		}
		return apperrors.NewConcurrencyConflict("application", id)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO application_timeline (application_id, status, recorded_at, notes)
		 VALUES ($1, $2, $3, $4)`,
		id, string(upd.Status), now, upd.Note,
	); err != nil {
		return fmt.Errorf("insert timeline entry: %w", err)
	}

	if upd.Feedback != nil {
		fb := upd.Feedback
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO application_feedback
			   (application_id, round, interviewer_id, rating, recommendation, comments, conducted_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, string(fb.Round), fb.InterviewerID, fb.Rating, string(fb.Recommendation), fb.Comments, fb.ConductedAt,
		); err != nil {
			return fmt.Errorf("insert feedback entry: %w", err)
		}
	}

	return nil
}
