package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/repository"
)

// InterviewerRepository implements repository.InterviewerRepository on
// PostgreSQL. Reserve combines candidate selection, the capacity increment
// and the application-side assignment write in one transaction with row
// locks so concurrent reservations cannot overshoot the ceiling.
type InterviewerRepository struct {
	db *sql.DB
}

func NewInterviewerRepository(db *sql.DB) *InterviewerRepository {
	return &InterviewerRepository{db: db}
}

func (r *InterviewerRepository) Create(ctx context.Context, iv *models.Interviewer) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO interviewers (
		   id, name, email, role, approval_status,
		   active_interview_count, interviews_taken, rating, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		iv.ID, iv.Name, iv.Email, string(iv.Role), string(iv.ApprovalStatus),
		iv.ActiveInterviewCount, iv.InterviewsTaken, iv.Rating, iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interviewer: %w", err)
	}

	return nil
}

func (r *InterviewerRepository) Get(ctx context.Context, id string) (*models.Interviewer, error) {
	iv, err := scanInterviewer(r.db.QueryRowContext(ctx,
		selectInterviewer+` WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("interviewer", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select interviewer: %w", err)
	}

	return iv, nil
}

const selectInterviewer = `
SELECT id, name, email, role, approval_status,
       active_interview_count, interviews_taken, rating, created_at, updated_at
  FROM interviewers`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func assignmentColumn(round models.Round) string {
	switch round {
	case models.RoundProfessional:
		return "assigned_professional_id"
	case models.RoundManager:
		return "assigned_manager_id"
	default:
		return "assigned_hr_id"
	}
}

func scanInterviewer(row rowScanner) (*models.Interviewer, error) {
	var (
		iv     models.Interviewer
		role   string
		status string
	)
	if err := row.Scan(
		&iv.ID, &iv.Name, &iv.Email, &role, &status,
		&iv.ActiveInterviewCount, &iv.InterviewsTaken, &iv.Rating, &iv.CreatedAt, &iv.UpdatedAt,
	); err != nil {
		return nil, err
	}
	iv.Role = models.InterviewerRole(role)
	iv.ApprovalStatus = models.Approval(status)
	return &iv, nil
}

func (r *InterviewerRepository) Reserve(ctx context.Context, appID string, expectedVersion int64, round models.Round, ceiling int) (*models.Interviewer, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the application row and refuse a repeat reservation: the round's
	// assignment is set exactly once, and a second increment would leak the
	// first interviewer's slot.
	var assigned sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT `+assignmentColumn(round)+` FROM applications WHERE id = $1 FOR UPDATE`,
		appID,
	).Scan(&assigned)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("application", appID)
	}
	if err != nil {
		return nil, fmt.Errorf("select assignment: %w", err)
	}
	if assigned.Valid {
		return nil, apperrors.NewAlreadyExists("assignment",
			fmt.Sprintf("application: %s, round: %s", appID, round))
	}

	// Lock the least-loaded eligible interviewer row. SKIP LOCKED lets a
	// racing reservation fall through to the next candidate instead of
	// requalifying a row another transaction is filling up.
	iv, err := scanInterviewer(tx.QueryRowContext(ctx,
		selectInterviewer+`
		 WHERE approval_status = $1
		   AND role = $2
		   AND active_interview_count < $3
		 ORDER BY active_interview_count ASC, rating DESC, id ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		string(models.ApprovalApproved), string(round.RequiredRole()), ceiling,
	))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNoEligibleInterviewer(string(round))
	}
	if err != nil {
		return nil, fmt.Errorf("select candidate: %w", err)
	}

	now := time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE interviewers
		    SET active_interview_count = active_interview_count + 1,
		        updated_at = $2
		  WHERE id = $1`,
		iv.ID, now,
	); err != nil {
		return nil, fmt.Errorf("increment interviewer load: %w", err)
	}

	upd := repository.ApplicationUpdate{
		Status:     round.PendingStatus(),
		Note:       fmt.Sprintf("assigned to %s for %s round", iv.Name, round),
		Assignment: &repository.Assignment{Round: round, InterviewerID: iv.ID},
	}
	if err := applyUpdateTx(ctx, tx, appID, expectedVersion, upd, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	iv.ActiveInterviewCount++
	iv.UpdatedAt = now
	return iv, nil
}

func (r *InterviewerRepository) Release(ctx context.Context, id string, rating float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE interviewers
		    SET active_interview_count = GREATEST(active_interview_count - 1, 0),
		        rating = (rating * interviews_taken + $2) / (interviews_taken + 1),
		        interviews_taken = interviews_taken + 1,
		        updated_at = $3
		  WHERE id = $1`,
		id, rating, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("release interviewer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.NewNotFound("interviewer", id)
	}

	return nil
}
