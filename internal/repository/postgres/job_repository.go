package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	apperrors "placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/models"
)

// JobRepository is the read-mostly job store backing application gating.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, company_name, role_title, deadline, active)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.CompanyName, job.RoleTitle, job.Deadline, job.Active,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return apperrors.NewAlreadyExists("job", fmt.Sprintf("id: %s", job.ID))
		}
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := r.db.QueryRowContext(ctx,
		`SELECT id, company_name, role_title, deadline, active
		   FROM jobs
		  WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.CompanyName, &job.RoleTitle, &job.Deadline, &job.Active)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound("job", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select job: %w", err)
	}

	return &job, nil
}
