// Package memory is an in-memory repository implementation. It honors the
// same versioning and atomicity contracts as the postgres implementation,
// so the engine and scheduler tests, including the racing-writer scenarios,
// run against it unchanged.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/repository"
)

// Store holds every repository behind one mutex so that Reserve can touch
// an interviewer and an application in a single critical section, matching
// the transactional linkage the postgres implementation gets from a tx.
type Store struct {
	mu           sync.Mutex
	applications map[string]*models.Application
	appByPair    map[string]string // jobID|studentID -> application id
	interviewers map[string]*models.Interviewer
	assessments  map[string]*models.Assessment
	assessByApp  map[string]string // application id -> assessment id
	jobs         map[string]*models.Job
}

func NewStore() *Store {
	return &Store{
		applications: make(map[string]*models.Application),
		appByPair:    make(map[string]string),
		interviewers: make(map[string]*models.Interviewer),
		assessments:  make(map[string]*models.Assessment),
		assessByApp:  make(map[string]string),
		jobs:         make(map[string]*models.Job),
	}
}

func (s *Store) Applications() repository.ApplicationRepository { return (*applicationRepo)(s) }
func (s *Store) Interviewers() repository.InterviewerRepository { return (*interviewerRepo)(s) }
func (s *Store) Assessments() repository.AssessmentRepository   { return (*assessmentRepo)(s) }
func (s *Store) Jobs() repository.JobRepository                 { return (*jobRepo)(s) }

func pairKey(jobID, studentID string) string {
	return jobID + "|" + studentID
}

func copyApplication(a *models.Application) *models.Application {
	cp := *a
	cp.Timeline = append([]models.TimelineEvent(nil), a.Timeline...)
	cp.Feedback = append([]models.InterviewFeedback(nil), a.Feedback...)
	return &cp
}

func copyAssessment(a *models.Assessment) *models.Assessment {
	cp := *a
	cp.MCQQuestions = append([]models.MCQQuestion(nil), a.MCQQuestions...)
	if a.Answers != nil {
		ans := *a.Answers
		ans.MCQAnswers = append([]int(nil), a.Answers.MCQAnswers...)
		cp.Answers = &ans
	}
	return &cp
}

type applicationRepo Store

func (r *applicationRepo) Create(ctx context.Context, app *models.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(app.JobID, app.StudentID)
	if _, ok := r.appByPair[key]; ok {
		return errors.NewAlreadyExists("application", fmt.Sprintf("job: %s, student: %s", app.JobID, app.StudentID))
	}
	r.applications[app.ID] = copyApplication(app)
	r.appByPair[key] = app.ID
	return nil
}

func (r *applicationRepo) Get(ctx context.Context, id string) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.applications[id]
	if !ok {
		return nil, errors.NewNotFound("application", id)
	}
	return copyApplication(app), nil
}

func (r *applicationRepo) ApplyTransition(ctx context.Context, id string, expectedVersion int64, upd repository.ApplicationUpdate) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.applications[id]
	if !ok {
		return nil, errors.NewNotFound("application", id)
	}
	if app.Version != expectedVersion {
		return nil, errors.NewConcurrencyConflict("application", id)
	}
	applyUpdate(app, upd, time.Now().UTC())
	return copyApplication(app), nil
}

// applyUpdate mutates app in place under the store lock. Shared with
// Reserve, which commits an assignment update inside the same critical
// section that increments the interviewer.
func applyUpdate(app *models.Application, upd repository.ApplicationUpdate, now time.Time) {
	app.Status = upd.Status
	app.Version++
	app.UpdatedAt = now
	app.Timeline = append(app.Timeline, models.TimelineEvent{
		Status:    upd.Status,
		Timestamp: now,
		Notes:     upd.Note,
	})

	if upd.ResumeApproval != nil {
		app.ResumeApproval = *upd.ResumeApproval
	}
	if upd.AssessmentApproval != nil {
		app.AssessmentApproval = *upd.AssessmentApproval
	}
	if upd.AIInterviewApproval != nil {
		app.AIInterviewApproval = *upd.AIInterviewApproval
	}
	if upd.ResumeScore != nil {
		app.ResumeScore = upd.ResumeScore
	}
	if upd.AssessmentScore != nil {
		app.AssessmentScore = upd.AssessmentScore
	}
	if upd.AIInterviewScore != nil {
		app.AIInterviewScore = upd.AIInterviewScore
	}
	if upd.RoundScore != nil {
		score := upd.RoundScore.Score
		switch upd.RoundScore.Round {
		case models.RoundProfessional:
			app.ProfessionalInterviewScore = &score
		case models.RoundManager:
			app.ManagerInterviewScore = &score
		case models.RoundHR:
			app.HRInterviewScore = &score
		}
	}
	if upd.Assignment != nil {
		id := upd.Assignment.InterviewerID
		switch upd.Assignment.Round {
		case models.RoundProfessional:
			app.AssignedProfessionalID = &id
		case models.RoundManager:
			app.AssignedManagerID = &id
		case models.RoundHR:
			app.AssignedHRID = &id
		}
	}
	if upd.Schedule != nil {
		app.MeetingLink = upd.Schedule.MeetingLink
		when := upd.Schedule.When
		app.ScheduledDate = &when
	}
	if upd.Feedback != nil {
		app.Feedback = append(app.Feedback, *upd.Feedback)
	}
}

type interviewerRepo Store

func (r *interviewerRepo) Create(ctx context.Context, iv *models.Interviewer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.interviewers[iv.ID]; ok {
		return errors.NewAlreadyExists("interviewer", fmt.Sprintf("id: %s", iv.ID))
	}
	cp := *iv
	r.interviewers[iv.ID] = &cp
	return nil
}

func (r *interviewerRepo) Get(ctx context.Context, id string) (*models.Interviewer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	iv, ok := r.interviewers[id]
	if !ok {
		return nil, errors.NewNotFound("interviewer", id)
	}
	cp := *iv
	return &cp, nil
}

func (r *interviewerRepo) Reserve(ctx context.Context, appID string, expectedVersion int64, round models.Round, ceiling int) (*models.Interviewer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	app, ok := r.applications[appID]
	if !ok {
		return nil, errors.NewNotFound("application", appID)
	}
	if app.Version != expectedVersion {
		return nil, errors.NewConcurrencyConflict("application", appID)
	}
	if app.AssignedInterviewer(round) != nil {
		return nil, errors.NewAlreadyExists("assignment",
			fmt.Sprintf("application: %s, round: %s", appID, round))
	}

	role := round.RequiredRole()
	var candidates []*models.Interviewer
	for _, iv := range r.interviewers {
		if iv.ApprovalStatus == models.ApprovalApproved && iv.Role == role && iv.ActiveInterviewCount < ceiling {
			candidates = append(candidates, iv)
		}
	}
	if len(candidates) == 0 {
		return nil, errors.NewNoEligibleInterviewer(string(round))
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ActiveInterviewCount != b.ActiveInterviewCount {
			return a.ActiveInterviewCount < b.ActiveInterviewCount
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		return a.ID < b.ID
	})

	now := time.Now().UTC()
	chosen := candidates[0]
	chosen.ActiveInterviewCount++
	chosen.UpdatedAt = now

	applyUpdate(app, repository.ApplicationUpdate{
		Status:     app.Status,
		Note:       fmt.Sprintf("assigned to %s for %s round", chosen.Name, round),
		Assignment: &repository.Assignment{Round: round, InterviewerID: chosen.ID},
	}, now)

	cp := *chosen
	return &cp, nil
}

func (r *interviewerRepo) Release(ctx context.Context, id string, rating float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	iv, ok := r.interviewers[id]
	if !ok {
		return errors.NewNotFound("interviewer", id)
	}
	if iv.ActiveInterviewCount > 0 {
		iv.ActiveInterviewCount--
	}
	taken := iv.InterviewsTaken
	iv.Rating = (iv.Rating*float64(taken) + rating) / float64(taken+1)
	iv.InterviewsTaken = taken + 1
	iv.UpdatedAt = time.Now().UTC()
	return nil
}

type assessmentRepo Store

func (r *assessmentRepo) Create(ctx context.Context, a *models.Assessment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assessByApp[a.ApplicationID]; ok {
		return errors.NewAlreadyExists("assessment", fmt.Sprintf("application: %s", a.ApplicationID))
	}
	r.assessments[a.ID] = copyAssessment(a)
	r.assessByApp[a.ApplicationID] = a.ID
	return nil
}

func (r *assessmentRepo) Get(ctx context.Context, id string) (*models.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assessments[id]
	if !ok {
		return nil, errors.NewNotFound("assessment", id)
	}
	return copyAssessment(a), nil
}

func (r *assessmentRepo) GetByApplication(ctx context.Context, applicationID string) (*models.Assessment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.assessByApp[applicationID]
	if !ok {
		return nil, errors.NewNotFound("assessment", "application: "+applicationID)
	}
	return copyAssessment(r.assessments[id]), nil
}

func (r *assessmentRepo) MarkStarted(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assessments[id]
	if !ok {
		return errors.NewNotFound("assessment", id)
	}
	if a.Status == models.AssessmentCompleted {
		return errors.NewAlreadySubmitted("assessment", id)
	}
	if a.Status != models.AssessmentPending {
		return errors.NewInvalidTransition(string(a.Status), "start_assessment")
	}
	a.Status = models.AssessmentInProgress
	started := at
	a.StartedAt = &started
	return nil
}

func (r *assessmentRepo) Complete(ctx context.Context, id string, answers models.AssessmentAnswers, score int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assessments[id]
	if !ok {
		return errors.NewNotFound("assessment", id)
	}
	if a.Status == models.AssessmentCompleted {
		return errors.NewAlreadySubmitted("assessment", id)
	}
	a.Status = models.AssessmentCompleted
	ans := answers
	ans.MCQAnswers = append([]int(nil), answers.MCQAnswers...)
	a.Answers = &ans
	s := score
	a.Score = &s
	completed := at
	a.CompletedAt = &completed
	return nil
}

type jobRepo Store

func (r *jobRepo) Create(ctx context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return errors.NewAlreadyExists("job", fmt.Sprintf("id: %s", job.ID))
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, errors.NewNotFound("job", id)
	}
	cp := *job
	return &cp, nil
}
