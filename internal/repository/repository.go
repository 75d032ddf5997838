// Package repository defines the persistence contracts the pipeline core
// depends on. Two implementations exist: postgres (production) and memory
// (tests and the documented concurrency scenarios).
package repository

import (
	"context"
	"time"

	"placement-pipeline/internal/models"
)

// RoundScore attaches a score to one human interview round.
type RoundScore struct {
	Round models.Round
	Score float64
}

// Assignment writes the reserved interviewer reference for a round.
type Assignment struct {
	Round         models.Round
	InterviewerID string
}

// Schedule records the meeting coordinates for the active round.
type Schedule struct {
	MeetingLink string
	When        time.Time
}

// ApplicationUpdate is the unit of atomicity for an application write:
// the status change, the timeline append and every optional field below
// are committed together or not at all. Status must always be set; it may
// equal the current status when only side fields change (assignment).
type ApplicationUpdate struct {
	Status models.Status
	Note   string

	ResumeApproval      *models.Approval
	AssessmentApproval  *models.Approval
	AIInterviewApproval *models.Approval

	ResumeScore      *float64
	AssessmentScore  *float64
	AIInterviewScore *float64
	RoundScore       *RoundScore

	Assignment *Assignment
	Schedule   *Schedule
	Feedback   *models.InterviewFeedback
}

// ApplicationRepository persists applications with optimistic versioning.
type ApplicationRepository interface {
	// Create stores a new application. Returns AlreadyExists when the
	// (job, student) pair already has one.
	Create(ctx context.Context, app *models.Application) error

	Get(ctx context.Context, id string) (*models.Application, error)

	// ApplyTransition commits upd against the application if and only if
	// its version still equals expectedVersion, bumping the version and
	// appending exactly one timeline entry. Returns ConcurrencyConflict
	// when the version moved.
	ApplyTransition(ctx context.Context, id string, expectedVersion int64, upd ApplicationUpdate) (*models.Application, error)
}

// InterviewerRepository persists interviewers and their shared capacity
// counter.
type InterviewerRepository interface {
	Create(ctx context.Context, iv *models.Interviewer) error

	Get(ctx context.Context, id string) (*models.Interviewer, error)

	// Reserve picks the eligible interviewer for the round (approved,
	// matching role, load under ceiling; least-loaded first, then highest
	// rated, then lowest id), increments their active count and writes the
	// assignment into the application in one transaction, guarded by the
	// application's version. Returns AlreadyExists when the round is
	// already assigned, NoEligibleInterviewer when the filtered set is
	// empty and ConcurrencyConflict when the application version moved.
	Reserve(ctx context.Context, appID string, expectedVersion int64, round models.Round, ceiling int) (*models.Interviewer, error)

	// Release decrements the interviewer's active count (floored at zero),
	// increments interviewsTaken and folds rating into the running average.
	Release(ctx context.Context, id string, rating float64) error
}

// AssessmentRepository persists the one-per-application assessments.
type AssessmentRepository interface {
	// Create stores a new assessment. Returns AlreadyExists when the
	// application already has one.
	Create(ctx context.Context, a *models.Assessment) error

	Get(ctx context.Context, id string) (*models.Assessment, error)

	GetByApplication(ctx context.Context, applicationID string) (*models.Assessment, error)

	// MarkStarted moves pending -> in_progress and records startedAt.
	// Returns AlreadySubmitted when the assessment already completed; the
	// status never moves backwards.
	MarkStarted(ctx context.Context, id string, at time.Time) error

	// Complete writes the answers and the final score exactly once and
	// moves the assessment to completed. Returns AlreadySubmitted when it
	// already is.
	Complete(ctx context.Context, id string, answers models.AssessmentAnswers, score int, at time.Time) error
}

// JobRepository is the minimal read side of job postings the pipeline
// needs for application gating.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
}
