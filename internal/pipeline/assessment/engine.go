// Package assessment materializes and scores the one-per-application timed
// test. The question snapshot is drawn at creation from a static bank; the
// score is written exactly once on submission.
package assessment

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"placement-pipeline/internal/common/config"
	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/pipeline/random"
	"placement-pipeline/internal/repository"
)

// Engine creates, starts and scores assessments. The random source and the
// clock are injectable so tests can pin both.
type Engine struct {
	repo repository.AssessmentRepository
	rng  random.Rand
	cfg  config.AssessmentConfig
	log  logger.Logger
	now  func() time.Time
}

func NewEngine(repo repository.AssessmentRepository, rng random.Rand, cfg config.AssessmentConfig, log logger.Logger) *Engine {
	return &Engine{
		repo: repo,
		rng:  rng,
		cfg:  cfg,
		log:  log,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the engine's clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Create draws a random MCQ subset without replacement plus one coding
// problem and stores the assessment with deadline = now + configured days.
// The duration only bounds the timed session, not the deadline. Returns
// AlreadyExists when the application already has an assessment.
func (e *Engine) Create(ctx context.Context, applicationID, jobID string, durationMinutes int) (*models.Assessment, error) {
	if durationMinutes <= 0 {
		durationMinutes = e.cfg.DefaultDurationMins
	}

	now := e.now()
	a := &models.Assessment{
		ID:              uuid.New().String(),
		ApplicationID:   applicationID,
		JobID:           jobID,
		Status:          models.AssessmentPending,
		Deadline:        now.AddDate(0, 0, e.cfg.DeadlineDays),
		DurationMinutes: durationMinutes,
		MCQQuestions:    e.drawMCQs(),
		CodingProblem:   codingBank[e.rng.Intn(len(codingBank))],
		CreatedAt:       now,
	}

	if err := e.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	e.log.Info("assessment created", map[string]interface{}{
		"assessment_id":  a.ID,
		"application_id": applicationID,
		"deadline":       a.Deadline,
		"mcq_count":      len(a.MCQQuestions),
	})

	return a, nil
}

// drawMCQs is a partial Fisher-Yates over a copy of the bank: the first
// mcqCount positions end up a uniform sample without replacement.
func (e *Engine) drawMCQs() []models.MCQQuestion {
	count := e.cfg.MCQCount
	if count <= 0 || count > len(mcqBank) {
		count = len(mcqBank)
	}

	pool := append([]models.MCQQuestion(nil), mcqBank...)
	for i := 0; i < count; i++ {
		j := i + e.rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}

// Get returns the assessment; past the deadline a still-pending assessment
// reads as Expired.
func (e *Engine) Get(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == models.AssessmentPending && e.now().After(a.Deadline) {
		return nil, errors.NewExpired("assessment", a.Deadline)
	}
	return a, nil
}

// GetByApplication looks the assessment up by its application.
func (e *Engine) GetByApplication(ctx context.Context, applicationID string) (*models.Assessment, error) {
	return e.repo.GetByApplication(ctx, applicationID)
}

// Start moves a pending assessment to in_progress. Legal only before the
// deadline.
func (e *Engine) Start(ctx context.Context, id string) (*models.Assessment, error) {
	a, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != models.AssessmentPending {
		return nil, errors.NewInvalidTransition(string(a.Status), "start_assessment")
	}
	if e.now().After(a.Deadline) {
		return nil, errors.NewExpired("assessment", a.Deadline)
	}

	startedAt := e.now()
	if err := e.repo.MarkStarted(ctx, id, startedAt); err != nil {
		return nil, err
	}

	a.Status = models.AssessmentInProgress
	a.StartedAt = &startedAt
	return a, nil
}

// Submit scores the answers and completes the assessment. Legal from
// pending or in_progress so a missed Start call does not block submission.
// A pending assessment past its deadline is Expired; one already started is
// deliberately not deadline-checked here, the session duration is the
// student's bound.
func (e *Engine) Submit(ctx context.Context, id string, answers models.AssessmentAnswers) (*models.Assessment, int, error) {
	a, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	switch a.Status {
	case models.AssessmentCompleted:
		return nil, 0, errors.NewAlreadySubmitted("assessment", id)
	case models.AssessmentPending:
		if e.now().After(a.Deadline) {
			return nil, 0, errors.NewExpired("assessment", a.Deadline)
		}
	case models.AssessmentInProgress:
	default:
		return nil, 0, errors.NewInvalidTransition(string(a.Status), "submit_assessment")
	}

	score := e.score(a.MCQQuestions, answers)
	completedAt := e.now()
	if err := e.repo.Complete(ctx, id, answers, score, completedAt); err != nil {
		return nil, 0, err
	}

	e.log.Info("assessment submitted", map[string]interface{}{
		"assessment_id":  id,
		"application_id": a.ApplicationID,
		"score":          score,
	})

	a.Status = models.AssessmentCompleted
	a.Answers = &answers
	a.Score = &score
	a.CompletedAt = &completedAt
	return a, score, nil
}

// score combines the MCQ percentage with the coding heuristic using the
// configured weights. The coding check is a length heuristic; execution
// based grading is out of scope.
func (e *Engine) score(questions []models.MCQQuestion, answers models.AssessmentAnswers) int {
	correct := 0
	for i, q := range questions {
		if i < len(answers.MCQAnswers) && answers.MCQAnswers[i] == q.CorrectOption {
			correct++
		}
	}

	mcqScore := 0.0
	if len(questions) > 0 {
		mcqScore = float64(correct) / float64(len(questions)) * 100
	}

	codingScore := 0.0
	if len(strings.TrimSpace(answers.CodingAnswer)) >= e.cfg.MinCodingAnswerLength {
		codingScore = 100
	}

	return int(math.Round(mcqScore*e.cfg.MCQWeight + codingScore*e.cfg.CodingWeight))
}
