// Package engine is the sole authority over application status. Every
// operation validates the actor, consults the transition table, commits the
// status and timeline atomically under optimistic versioning, and emits one
// notification event per committed transition.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/common/metrics"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/notify"
	"placement-pipeline/internal/pipeline/assessment"
	"placement-pipeline/internal/pipeline/scheduler"
	"placement-pipeline/internal/pipeline/statemachine"
	"placement-pipeline/internal/repository"
)

type Engine struct {
	apps        repository.ApplicationRepository
	jobs        repository.JobRepository
	scheduler   *scheduler.Scheduler
	assessments *assessment.Engine
	emitter     notify.Emitter
	maxRetries  int
	log         logger.Logger
	now         func() time.Time
}

func New(
	apps repository.ApplicationRepository,
	jobs repository.JobRepository,
	sched *scheduler.Scheduler,
	assessments *assessment.Engine,
	emitter notify.Emitter,
	maxRetries int,
	log logger.Logger,
) *Engine {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Engine{
		apps:        apps,
		jobs:        jobs,
		scheduler:   sched,
		assessments: assessments,
		emitter:     emitter,
		maxRetries:  maxRetries,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GetApplication returns the application with its timeline and feedback.
func (e *Engine) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	return e.apps.Get(ctx, id)
}

// GetAssessment returns the assessment; still-pending assessments past
// their deadline read as Expired.
func (e *Engine) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	return e.assessments.Get(ctx, id)
}

// SubmitApplication creates a new application in status applied. The job
// must be active and before its deadline; one application per (job,
// student) pair.
func (e *Engine) SubmitApplication(ctx context.Context, actor models.Actor, jobID string) (*models.Application, error) {
	if err := requireRole(actor, models.ActorStudent); err != nil {
		return nil, err
	}

	job, err := e.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.AcceptingApplications(e.now()) {
		return nil, errors.NewInvalidTransition(
			fmt.Sprintf("job %s closed", jobID), string(statemachine.ActionSubmitApplication))
	}

	now := e.now()
	app := &models.Application{
		ID:                  uuid.New().String(),
		JobID:               jobID,
		StudentID:           actor.ID,
		Status:              models.StatusApplied,
		AppliedAt:           now,
		ResumeApproval:      models.ApprovalPending,
		AssessmentApproval:  models.ApprovalPending,
		AIInterviewApproval: models.ApprovalPending,
		Timeline: []models.TimelineEvent{{
			Status:    models.StatusApplied,
			Timestamp: now,
			Notes:     "application submitted",
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.apps.Create(ctx, app); err != nil {
		metrics.TransitionsFailed.WithLabelValues(string(statemachine.ActionSubmitApplication), string(errors.CodeOf(err))).Inc()
		return nil, err
	}

	metrics.TransitionsCommitted.WithLabelValues(string(statemachine.ActionSubmitApplication)).Inc()
	e.log.Info("application submitted", map[string]interface{}{
		"application_id": app.ID,
		"job_id":         jobID,
		"student_id":     actor.ID,
	})
	e.emit(ctx, app, notify.EventApplicationSubmitted, app.StudentID)

	return app, nil
}

// StartResumeReview moves a fresh application into resume screening.
func (e *Engine) StartResumeReview(ctx context.Context, actor models.Actor, appID string) (*models.Application, error) {
	if err := requireRole(actor, models.ActorAdmin); err != nil {
		return nil, err
	}

	return e.transition(ctx, appID, statemachine.ActionStartResumeReview, statemachine.Evidence{},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{Status: next, Note: "resume review started"}, nil
		}, notify.EventStatusChanged)
}

// SetResumeDecision records the resume gate outcome. Accepted from applied
// as well, so a reviewer can decide without an explicit review-start call.
func (e *Engine) SetResumeDecision(ctx context.Context, actor models.Actor, appID string, approve bool, score *float64) (*models.Application, error) {
	if err := requireRole(actor, models.ActorAdmin); err != nil {
		return nil, err
	}

	approval := approvalFor(approve)
	eventType := notify.EventStatusChanged
	note := "resume shortlisted"
	if !approve {
		eventType = notify.EventApplicationRejected
		note = "rejected at resume screening"
	}

	return e.transition(ctx, appID, statemachine.ActionResumeDecision, statemachine.Evidence{Approve: approve},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{
				Status:         next,
				Note:           note,
				ResumeApproval: &approval,
				ResumeScore:    score,
			}, nil
		}, eventType)
}

// ReleaseAssessment materializes the application's assessment and moves the
// status to assessment_released.
func (e *Engine) ReleaseAssessment(ctx context.Context, actor models.Actor, appID string, durationMinutes int) (*models.Application, *models.Assessment, error) {
	if err := requireRole(actor, models.ActorAdmin); err != nil {
		return nil, nil, err
	}

	app, err := e.apps.Get(ctx, appID)
	if err != nil {
		return nil, nil, err
	}
	// Validate legality before creating the assessment so an illegal call
	// leaves no orphan record.
	if _, err := statemachine.Next(app.Status, statemachine.ActionReleaseAssessment, statemachine.Evidence{}); err != nil {
		return nil, nil, err
	}

	assess, err := e.assessments.Create(ctx, appID, app.JobID, durationMinutes)
	if err != nil {
		return nil, nil, err
	}

	updated, err := e.transition(ctx, appID, statemachine.ActionReleaseAssessment, statemachine.Evidence{},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{Status: next, Note: "assessment released"}, nil
		}, notify.EventAssessmentReleased)
	if err != nil {
		return nil, nil, err
	}

	return updated, assess, nil
}

// StartAssessment opens the student's timed session and mirrors the move on
// the application status.
func (e *Engine) StartAssessment(ctx context.Context, actor models.Actor, assessmentID string) (*models.Assessment, error) {
	if err := requireRole(actor, models.ActorStudent); err != nil {
		return nil, err
	}

	assess, err := e.assessments.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := e.requireOwnership(ctx, assess.ApplicationID, actor); err != nil {
		return nil, err
	}

	started, err := e.assessments.Start(ctx, assessmentID)
	if err != nil {
		return nil, err
	}

	if _, err := e.transition(ctx, assess.ApplicationID, statemachine.ActionStartAssessment, statemachine.Evidence{},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{Status: next, Note: "assessment started"}, nil
		}, notify.EventStatusChanged); err != nil {
		return nil, err
	}

	return started, nil
}

// SubmitAssessment scores the submission and moves the application to
// assessment_submitted, carrying the score.
func (e *Engine) SubmitAssessment(ctx context.Context, actor models.Actor, assessmentID string, answers models.AssessmentAnswers) (*models.Assessment, error) {
	if err := requireRole(actor, models.ActorStudent); err != nil {
		return nil, err
	}

	assess, err := e.assessments.Get(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	if err := e.requireOwnership(ctx, assess.ApplicationID, actor); err != nil {
		return nil, err
	}

	submitted, score, err := e.assessments.Submit(ctx, assessmentID, answers)
	if err != nil {
		return nil, err
	}

	assessmentScore := float64(score)
	if _, err := e.transition(ctx, assess.ApplicationID, statemachine.ActionSubmitAssessment, statemachine.Evidence{},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{
				Status:          next,
				Note:            fmt.Sprintf("assessment submitted, score %d", score),
				AssessmentScore: &assessmentScore,
			}, nil
		}, notify.EventAssessmentSubmitted); err != nil {
		return nil, err
	}

	return submitted, nil
}

// SetAssessmentDecision records the assessment gate. Approval advances
// straight into the AI interview stage.
func (e *Engine) SetAssessmentDecision(ctx context.Context, actor models.Actor, appID string, approve bool) (*models.Application, error) {
	if err := requireRole(actor, models.ActorAdmin); err != nil {
		return nil, err
	}

	approval := approvalFor(approve)
	eventType := notify.EventStatusChanged
	note := "assessment approved"
	if !approve {
		eventType = notify.EventApplicationRejected
		note = "rejected at assessment gate"
	}

	app, err := e.transition(ctx, appID, statemachine.ActionAssessmentDecision, statemachine.Evidence{Approve: approve},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{
				Status:             next,
				Note:               note,
				AssessmentApproval: &approval,
			}, nil
		}, eventType)
	if err != nil {
		return nil, err
	}

	if !approve {
		return app, nil
	}

	// Approval auto-advances into the AI interview stage.
	return e.transition(ctx, appID, statemachine.ActionAdvanceToAIInterview, statemachine.Evidence{},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{Status: next, Note: "ai interview pending"}, nil
		}, notify.EventStatusChanged)
}

// CompleteAIInterview records the student's AI interview score.
func (e *Engine) CompleteAIInterview(ctx context.Context, actor models.Actor, appID string, score float64) (*models.Application, error) {
	if err := requireRole(actor, models.ActorStudent); err != nil {
		return nil, err
	}
	if err := e.requireOwnership(ctx, appID, actor); err != nil {
		return nil, err
	}

	return e.transition(ctx, appID, statemachine.ActionCompleteAIInterview, statemachine.Evidence{},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{
				Status:           next,
				Note:             fmt.Sprintf("ai interview completed, score %.1f", score),
				AIInterviewScore: &score,
			}, nil
		}, notify.EventStatusChanged)
}

// SetAIInterviewDecision records the AI interview gate. Accepted from both
// AI statuses so the admin can decide on the score alone.
func (e *Engine) SetAIInterviewDecision(ctx context.Context, actor models.Actor, appID string, approve bool) (*models.Application, error) {
	if err := requireRole(actor, models.ActorAdmin); err != nil {
		return nil, err
	}

	approval := approvalFor(approve)
	eventType := notify.EventStatusChanged
	note := "ai interview approved"
	if !approve {
		eventType = notify.EventApplicationRejected
		note = "rejected at ai interview gate"
	}

	return e.transition(ctx, appID, statemachine.ActionAIInterviewDecision, statemachine.Evidence{Approve: approve},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{
				Status:              next,
				Note:                note,
				AIInterviewApproval: &approval,
			}, nil
		}, eventType)
}

// AssignInterviewer reserves capacity for the active round. The status does
// not move; the assignment reference and a timeline note commit atomically
// with the capacity increment. Retried internally on version conflicts.
func (e *Engine) AssignInterviewer(ctx context.Context, actor models.Actor, appID string, round models.Round) (*models.Interviewer, error) {
	if err := requireRole(actor, models.ActorAdmin); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		app, err := e.apps.Get(ctx, appID)
		if err != nil {
			return nil, err
		}

		iv, err := e.scheduler.Assign(ctx, app, round)
		if err == nil {
			e.emit(ctx, app, notify.EventInterviewAssigned, iv.ID)
			return iv, nil
		}
		if !errors.IsCode(err, errors.ErrCodeConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// ScheduleInterview lets the assigned interviewer fix the meeting.
func (e *Engine) ScheduleInterview(ctx context.Context, actor models.Actor, appID, meetingLink string, when time.Time) (*models.Application, error) {
	if err := requireRole(actor, models.ActorInterviewer); err != nil {
		return nil, err
	}

	return e.transition(ctx, appID, statemachine.ActionScheduleInterview, statemachine.Evidence{},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			round := app.Status.Round()
			if err := requireAssignedInterviewer(app, actor, round); err != nil {
				return repository.ApplicationUpdate{}, err
			}
			return repository.ApplicationUpdate{
				Status:   next,
				Note:     fmt.Sprintf("%s interview scheduled", round),
				Schedule: &repository.Schedule{MeetingLink: meetingLink, When: when},
			}, nil
		}, notify.EventInterviewScheduled)
}

// SubmitFeedback completes the active round. The feedback entry, round
// score and status commit atomically; the interviewer's capacity slot is
// released exactly once after the commit, pass or fail.
func (e *Engine) SubmitFeedback(ctx context.Context, actor models.Actor, appID string, rating float64, recommendation models.Recommendation, comments string) (*models.Application, error) {
	if err := requireRole(actor, models.ActorInterviewer); err != nil {
		return nil, err
	}
	if rating < 0 || rating > 5 {
		return nil, errors.NewValidationFailed(fmt.Sprintf("rating out of range: %.2f", rating))
	}

	var round models.Round
	passed := recommendation.Passed()
	eventType := notify.EventStatusChanged
	if !passed {
		eventType = notify.EventApplicationRejected
	}

	app, err := e.transition(ctx, appID, statemachine.ActionSubmitFeedback, statemachine.Evidence{Recommendation: recommendation},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			round = app.Status.Round()
			if err := requireAssignedInterviewer(app, actor, round); err != nil {
				return repository.ApplicationUpdate{}, err
			}
			note := fmt.Sprintf("%s interview passed", round)
			if !passed {
				note = fmt.Sprintf("rejected after %s interview", round)
			}
			return repository.ApplicationUpdate{
				Status:     next,
				Note:       note,
				RoundScore: &repository.RoundScore{Round: round, Score: rating},
				Feedback: &models.InterviewFeedback{
					Round:          round,
					InterviewerID:  actor.ID,
					Rating:         rating,
					Recommendation: recommendation,
					Comments:       comments,
					ConductedAt:    e.now(),
				},
			}, nil
		}, eventType)
	if err != nil {
		return nil, err
	}

	// The guarded commit above succeeds at most once per round, so the
	// decrement below cannot double-fire.
	if err := e.scheduler.Release(ctx, actor.ID, rating); err != nil {
		e.log.Error("failed to release interviewer slot", map[string]interface{}{
			"application_id": appID,
			"interviewer_id": actor.ID,
			"error":          err.Error(),
		})
	}

	if passed && round.Next() != "" {
		return e.transition(ctx, appID, statemachine.ActionAdvanceRound, statemachine.Evidence{},
			func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
				return repository.ApplicationUpdate{
					Status: next,
					Note:   fmt.Sprintf("%s interview pending", round.Next()),
				}, nil
			}, notify.EventStatusChanged)
	}

	return app, nil
}

// ReleaseOffer moves a candidate who cleared the HR round to offer_released.
func (e *Engine) ReleaseOffer(ctx context.Context, actor models.Actor, appID string) (*models.Application, error) {
	if err := requireRole(actor, models.ActorAdmin); err != nil {
		return nil, err
	}

	return e.transition(ctx, appID, statemachine.ActionReleaseOffer, statemachine.Evidence{},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{Status: next, Note: "offer released"}, nil
		}, notify.EventOfferReleased)
}

// SetOfferDecision records the student's accept/decline on a released offer.
func (e *Engine) SetOfferDecision(ctx context.Context, actor models.Actor, appID string, accept bool) (*models.Application, error) {
	if err := requireRole(actor, models.ActorStudent); err != nil {
		return nil, err
	}
	if err := e.requireOwnership(ctx, appID, actor); err != nil {
		return nil, err
	}

	note := "offer accepted"
	if !accept {
		note = "offer declined"
	}

	return e.transition(ctx, appID, statemachine.ActionOfferDecision, statemachine.Evidence{Approve: accept},
		func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error) {
			return repository.ApplicationUpdate{Status: next, Note: note}, nil
		}, notify.EventStatusChanged)
}

// transition is the guarded commit loop shared by every status-changing
// operation: fetch, evaluate the pure transition, build the update, commit
// under the fetched version, and retry a bounded number of times when a
// concurrent writer won the race.
func (e *Engine) transition(
	ctx context.Context,
	appID string,
	action statemachine.Action,
	ev statemachine.Evidence,
	build func(app *models.Application, next models.Status) (repository.ApplicationUpdate, error),
	eventType notify.EventType,
) (*models.Application, error) {
	started := time.Now()

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		app, err := e.apps.Get(ctx, appID)
		if err != nil {
			return nil, e.fail(action, err)
		}

		next, err := statemachine.Next(app.Status, action, ev)
		if err != nil {
			return nil, e.fail(action, err)
		}

		upd, err := build(app, next)
		if err != nil {
			return nil, e.fail(action, err)
		}

		updated, err := e.apps.ApplyTransition(ctx, appID, app.Version, upd)
		if err == nil {
			metrics.TransitionsCommitted.WithLabelValues(string(action)).Inc()
			metrics.TransitionDuration.WithLabelValues(string(action)).Observe(time.Since(started).Seconds())
			e.log.Info("transition committed", map[string]interface{}{
				"application_id": appID,
				"action":         string(action),
				"from":           string(app.Status),
				"to":             string(next),
			})
			e.emit(ctx, updated, eventType, updated.StudentID)
			return updated, nil
		}
		if !errors.IsCode(err, errors.ErrCodeConcurrencyConflict) {
			return nil, e.fail(action, err)
		}

		lastErr = err
		e.log.Debug("transition lost version race, retrying", map[string]interface{}{
			"application_id": appID,
			"action":         string(action),
			"attempt":        attempt + 1,
		})
	}

	return nil, e.fail(action, lastErr)
}

func (e *Engine) fail(action statemachine.Action, err error) error {
	metrics.TransitionsFailed.WithLabelValues(string(action), string(errors.CodeOf(err))).Inc()
	return err
}

func (e *Engine) emit(ctx context.Context, app *models.Application, eventType notify.EventType, recipientID string) {
	e.emitter.Emit(ctx, notify.Event{
		RecipientID:   recipientID,
		EventType:     eventType,
		ApplicationID: app.ID,
		NewStatus:     string(app.Status),
		OccurredAt:    e.now(),
	})
}

func (e *Engine) requireOwnership(ctx context.Context, appID string, actor models.Actor) error {
	app, err := e.apps.Get(ctx, appID)
	if err != nil {
		return err
	}
	if app.StudentID != actor.ID {
		return errors.NewForbidden(fmt.Sprintf("application %s does not belong to student %s", appID, actor.ID))
	}
	return nil
}

func requireRole(actor models.Actor, role models.ActorRole) error {
	if actor.Role != role {
		return errors.NewForbidden(fmt.Sprintf("operation requires role %s, caller is %s", role, actor.Role))
	}
	return nil
}

func requireAssignedInterviewer(app *models.Application, actor models.Actor, round models.Round) error {
	if round == "" {
		return errors.NewInvalidTransition(string(app.Status), "interview_round_operation")
	}
	assigned := app.AssignedInterviewer(round)
	if assigned == nil || *assigned != actor.ID {
		return errors.NewForbidden(fmt.Sprintf("caller %s is not the assigned interviewer for the %s round", actor.ID, round))
	}
	return nil
}

func approvalFor(approve bool) models.Approval {
	if approve {
		return models.ApprovalApproved
	}
	return models.ApprovalRejected
}
