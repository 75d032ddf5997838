package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-pipeline/internal/common/config"
	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/notify"
	"placement-pipeline/internal/pipeline/assessment"
	"placement-pipeline/internal/pipeline/random"
	"placement-pipeline/internal/pipeline/scheduler"
	"placement-pipeline/internal/repository/memory"
)

type testHarness struct {
	engine  *Engine
	store   *memory.Store
	emitted *notify.CollectingEmitter
}

var (
	student      = models.Actor{ID: "student-1", Role: models.ActorStudent}
	admin        = models.Actor{ID: "admin-1", Role: models.ActorAdmin}
	otherStudent = models.Actor{ID: "student-2", Role: models.ActorStudent}
)

func interviewerActor(id string) models.Actor {
	return models.Actor{ID: id, Role: models.ActorInterviewer}
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	store := memory.NewStore()
	log := logger.NewTestLogger(t)
	emitted := &notify.CollectingEmitter{}

	assessCfg := config.AssessmentConfig{
		MCQCount:              5,
		DeadlineDays:          3,
		DefaultDurationMins:   60,
		MinCodingAnswerLength: 50,
		MCQWeight:             0.7,
		CodingWeight:          0.3,
	}

	eng := New(
		store.Applications(),
		store.Jobs(),
		scheduler.New(store.Interviewers(), 10, log),
		assessment.NewEngine(store.Assessments(), random.NewSeeded(1), assessCfg, log),
		emitted,
		3,
		log,
	)

	ctx := context.Background()
	require.NoError(t, store.Jobs().Create(ctx, &models.Job{
		ID:          "job-1",
		CompanyName: "Acme",
		RoleTitle:   "Backend Engineer",
		Deadline:    time.Now().UTC().Add(30 * 24 * time.Hour),
		Active:      true,
	}))

	now := time.Now().UTC()
	for _, iv := range []models.Interviewer{
		{ID: "tech-1", Name: "Tara", Email: "tara@example.com", Role: models.RoleTechnical, ApprovalStatus: models.ApprovalApproved, Rating: 4.5},
		{ID: "mgr-1", Name: "Meera", Email: "meera@example.com", Role: models.RoleManager, ApprovalStatus: models.ApprovalApproved, Rating: 4.2},
		{ID: "hr-1", Name: "Hari", Email: "hari@example.com", Role: models.RoleHR, ApprovalStatus: models.ApprovalApproved, Rating: 4.0},
	} {
		iv.CreatedAt, iv.UpdatedAt = now, now
		ivCopy := iv
		require.NoError(t, store.Interviewers().Create(ctx, &ivCopy))
	}

	return &testHarness{engine: eng, store: store, emitted: emitted}
}

func (h *testHarness) assertInvariants(t *testing.T, appID string) *models.Application {
	t.Helper()
	app, err := h.store.Applications().Get(context.Background(), appID)
	require.NoError(t, err)
	require.NotEmpty(t, app.Timeline)
	assert.Equal(t, app.Status, app.Timeline[len(app.Timeline)-1].Status,
		"last timeline entry must match current status")
	return app
}

// driveToRound walks a fresh application through every gate up to the
// given round's scheduled status, asserting the invariant at each step.
func (h *testHarness) driveToScheduled(t *testing.T, round models.Round) *models.Application {
	t.Helper()
	ctx := context.Background()
	eng := h.engine

	app, err := eng.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)

	_, err = eng.StartResumeReview(ctx, admin, app.ID)
	require.NoError(t, err)
	_, err = eng.SetResumeDecision(ctx, admin, app.ID, true, nil)
	require.NoError(t, err)

	_, assess, err := eng.ReleaseAssessment(ctx, admin, app.ID, 60)
	require.NoError(t, err)
	_, err = eng.StartAssessment(ctx, student, assess.ID)
	require.NoError(t, err)

	answers := models.AssessmentAnswers{MCQAnswers: make([]int, len(assess.MCQQuestions))}
	for i, q := range assess.MCQQuestions {
		answers.MCQAnswers[i] = q.CorrectOption
	}
	_, err = eng.SubmitAssessment(ctx, student, assess.ID, answers)
	require.NoError(t, err)

	_, err = eng.SetAssessmentDecision(ctx, admin, app.ID, true)
	require.NoError(t, err)
	_, err = eng.CompleteAIInterview(ctx, student, app.ID, 82.0)
	require.NoError(t, err)
	_, err = eng.SetAIInterviewDecision(ctx, admin, app.ID, true)
	require.NoError(t, err)

	interviewers := map[models.Round]models.Actor{
		models.RoundProfessional: interviewerActor("tech-1"),
		models.RoundManager:      interviewerActor("mgr-1"),
		models.RoundHR:           interviewerActor("hr-1"),
	}

	for _, r := range models.Rounds {
		iv, err := eng.AssignInterviewer(ctx, admin, app.ID, r)
		require.NoError(t, err)
		_, err = eng.ScheduleInterview(ctx, interviewers[r], app.ID, "https://meet.example.com/"+string(r), time.Now().UTC().Add(24*time.Hour))
		require.NoError(t, err)
		h.assertInvariants(t, app.ID)

		if r == round {
			assert.Equal(t, interviewers[r].ID, iv.ID)
			return h.assertInvariants(t, app.ID)
		}

		_, err = eng.SubmitFeedback(ctx, interviewers[r], app.ID, 4.5, models.RecommendationRecommend, "solid")
		require.NoError(t, err)
	}

	t.Fatalf("round %s never reached", round)
	return nil
}

func TestEngine_FullRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	eng := h.engine

	app := h.driveToScheduled(t, models.RoundHR)

	_, err := eng.SubmitFeedback(ctx, interviewerActor("hr-1"), app.ID, 4.8, models.RecommendationStronglyRecommend, "great fit")
	require.NoError(t, err)

	_, err = eng.ReleaseOffer(ctx, admin, app.ID)
	require.NoError(t, err)
	final, err := eng.SetOfferDecision(ctx, student, app.ID, true)
	require.NoError(t, err)

	assert.Equal(t, models.StatusOfferAccepted, final.Status)
	h.assertInvariants(t, app.ID)

	// No skipped gate: the timeline visits the expected stations in order.
	wantOrder := []models.Status{
		models.StatusApplied,
		models.StatusResumeUnderReview,
		models.StatusResumeShortlisted,
		models.StatusAssessmentReleased,
		models.StatusAssessmentInProgress,
		models.StatusAssessmentSubmitted,
		models.StatusAssessmentApproved,
		models.StatusAIInterviewPending,
		models.StatusAIInterviewCompleted,
		models.StatusProfessionalInterviewPending,
		models.StatusProfessionalInterviewScheduled,
		models.StatusProfessionalInterviewCompleted,
		models.StatusManagerInterviewPending,
		models.StatusManagerInterviewScheduled,
		models.StatusManagerInterviewCompleted,
		models.StatusHRInterviewPending,
		models.StatusHRInterviewScheduled,
		models.StatusHRInterviewCompleted,
		models.StatusOfferReleased,
		models.StatusOfferAccepted,
	}
	var visited []models.Status
	seen := make(map[models.Status]bool)
	for _, ev := range final.Timeline {
		if !seen[ev.Status] {
			seen[ev.Status] = true
			visited = append(visited, ev.Status)
		}
	}
	assert.Equal(t, wantOrder, visited)

	// All capacity released by the end.
	for _, id := range []string{"tech-1", "mgr-1", "hr-1"} {
		iv, err := h.store.Interviewers().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, iv.ActiveInterviewCount, "interviewer %s", id)
		assert.Equal(t, 1, iv.InterviewsTaken, "interviewer %s", id)
	}

	// Scores recorded along the way. All MCQs correct with an empty coding
	// answer weighs in at round(100*0.7 + 0*0.3) = 70.
	require.NotNil(t, final.AssessmentScore)
	assert.InDelta(t, 70, *final.AssessmentScore, 1e-9)
	require.NotNil(t, final.AIInterviewScore)
	require.NotNil(t, final.HRInterviewScore)
	require.Len(t, final.Feedback, 3)
}

func TestEngine_SubmitApplication_ClosedJob(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.Jobs().Create(ctx, &models.Job{
		ID:       "job-expired",
		Deadline: time.Now().UTC().Add(-time.Hour),
		Active:   true,
	}))

	_, err := h.engine.SubmitApplication(ctx, student, "job-expired")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
}

func TestEngine_SubmitApplication_Duplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)

	_, err = h.engine.SubmitApplication(ctx, student, "job-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))
}

func TestEngine_RoleChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)

	_, err = h.engine.SetResumeDecision(ctx, student, app.ID, true, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))

	_, err = h.engine.SubmitApplication(ctx, admin, "job-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}

func TestEngine_OwnershipChecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)
	_, err = h.engine.StartResumeReview(ctx, admin, app.ID)
	require.NoError(t, err)
	_, err = h.engine.SetResumeDecision(ctx, admin, app.ID, true, nil)
	require.NoError(t, err)
	_, assess, err := h.engine.ReleaseAssessment(ctx, admin, app.ID, 60)
	require.NoError(t, err)

	_, err = h.engine.SubmitAssessment(ctx, otherStudent, assess.ID, models.AssessmentAnswers{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}

func TestEngine_WrongInterviewerForbidden(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app := h.driveToScheduled(t, models.RoundProfessional)

	_, err := h.engine.SubmitFeedback(ctx, interviewerActor("mgr-1"), app.ID, 4.0, models.RecommendationRecommend, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
}

// Maybe resolves conservatively to rejection, and the interviewer's slot is
// still released exactly once.
func TestEngine_SubmitFeedback_MaybeRejects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app := h.driveToScheduled(t, models.RoundProfessional)

	before, err := h.store.Interviewers().Get(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, 1, before.ActiveInterviewCount)

	updated, err := h.engine.SubmitFeedback(ctx, interviewerActor("tech-1"), app.ID, 3.0, models.RecommendationMaybe, "unsure")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)

	after, err := h.store.Interviewers().Get(ctx, "tech-1")
	require.NoError(t, err)
	assert.Equal(t, 0, after.ActiveInterviewCount)
	assert.Equal(t, before.InterviewsTaken+1, after.InterviewsTaken)
	h.assertInvariants(t, app.ID)
}

func TestEngine_TerminalStateLocksFurtherActions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)
	_, err = h.engine.SetResumeDecision(ctx, admin, app.ID, false, nil)
	require.NoError(t, err)

	_, err = h.engine.StartResumeReview(ctx, admin, app.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
}

// Two admins deciding the same resume at once: exactly one decision lands.
func TestEngine_ConcurrentDecisions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)
	_, err = h.engine.StartResumeReview(ctx, admin, app.ID)
	require.NoError(t, err)

	admin2 := models.Actor{ID: "admin-2", Role: models.ActorAdmin}

	var wg sync.WaitGroup
	results := make([]error, 2)
	decisions := []bool{true, false}
	actors := []models.Actor{admin, admin2}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.engine.SetResumeDecision(ctx, actors[i], app.ID, decisions[i], nil)
		}(i)
	}
	wg.Wait()

	// The retry loop replays the loser against the new status, where the
	// decision action is no longer legal; either way only one decision
	// committed.
	final := h.assertInvariants(t, app.ID)
	assert.Contains(t, []models.Status{models.StatusResumeShortlisted, models.StatusRejected}, final.Status)

	failures := 0
	for _, err := range results {
		if err != nil {
			failures++
			code := errors.CodeOf(err)
			assert.Contains(t, []errors.ErrorCode{errors.ErrCodeInvalidTransition, errors.ErrCodeConcurrencyConflict}, code)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestEngine_EventsEmittedPerTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)
	_, err = h.engine.StartResumeReview(ctx, admin, app.ID)
	require.NoError(t, err)
	_, err = h.engine.SetResumeDecision(ctx, admin, app.ID, false, nil)
	require.NoError(t, err)

	require.Len(t, h.emitted.Events, 3)
	assert.Equal(t, notify.EventApplicationSubmitted, h.emitted.Events[0].EventType)
	assert.Equal(t, notify.EventStatusChanged, h.emitted.Events[1].EventType)
	assert.Equal(t, notify.EventApplicationRejected, h.emitted.Events[2].EventType)
	for _, ev := range h.emitted.Events {
		assert.Equal(t, app.ID, ev.ApplicationID)
		assert.Equal(t, student.ID, ev.RecipientID)
		assert.NotEmpty(t, ev.NewStatus)
	}
}

func TestEngine_ReleaseAssessment_OnlyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)
	_, err = h.engine.SetResumeDecision(ctx, admin, app.ID, true, nil)
	require.NoError(t, err)

	_, _, err = h.engine.ReleaseAssessment(ctx, admin, app.ID, 60)
	require.NoError(t, err)

	_, _, err = h.engine.ReleaseAssessment(ctx, admin, app.ID, 60)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
}

func TestEngine_AssessmentDecisionAdvancesToAI(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)
	_, err = h.engine.SetResumeDecision(ctx, admin, app.ID, true, nil)
	require.NoError(t, err)
	_, assess, err := h.engine.ReleaseAssessment(ctx, admin, app.ID, 60)
	require.NoError(t, err)
	_, err = h.engine.SubmitAssessment(ctx, student, assess.ID, models.AssessmentAnswers{MCQAnswers: make([]int, 5)})
	require.NoError(t, err)

	updated, err := h.engine.SetAssessmentDecision(ctx, admin, app.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAIInterviewPending, updated.Status)
	assert.Equal(t, models.ApprovalApproved, updated.AssessmentApproval)

	// Both the gate status and the auto-advance landed on the timeline.
	statuses := make([]models.Status, 0, len(updated.Timeline))
	for _, ev := range updated.Timeline {
		statuses = append(statuses, ev.Status)
	}
	assert.Contains(t, statuses, models.StatusAssessmentApproved)
	h.assertInvariants(t, app.ID)
}

func TestEngine_AIDecisionLegalFromPendingToo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app, err := h.engine.SubmitApplication(ctx, student, "job-1")
	require.NoError(t, err)
	_, err = h.engine.SetResumeDecision(ctx, admin, app.ID, true, nil)
	require.NoError(t, err)
	_, assess, err := h.engine.ReleaseAssessment(ctx, admin, app.ID, 60)
	require.NoError(t, err)
	_, err = h.engine.SubmitAssessment(ctx, student, assess.ID, models.AssessmentAnswers{MCQAnswers: make([]int, 5)})
	require.NoError(t, err)
	_, err = h.engine.SetAssessmentDecision(ctx, admin, app.ID, true)
	require.NoError(t, err)

	// Skip CompleteAIInterview: the admin may decide on the pending status.
	updated, err := h.engine.SetAIInterviewDecision(ctx, admin, app.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)
}

func TestEngine_AssignInterviewer_NoneEligible(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app := h.driveToScheduled(t, models.RoundProfessional)
	_, err := h.engine.SubmitFeedback(ctx, interviewerActor("tech-1"), app.ID, 4.0, models.RecommendationRecommend, "")
	require.NoError(t, err)

	// Saturate the only manager interviewer up to the ceiling through
	// reservations on other applications.
	for i := 0; i < 10; i++ {
		seeded := seedPendingManagerApp(t, h, i)
		_, err := h.engine.AssignInterviewer(ctx, admin, seeded, models.RoundManager)
		require.NoError(t, err)
	}
	mgr, err := h.store.Interviewers().Get(ctx, "mgr-1")
	require.NoError(t, err)
	require.Equal(t, 10, mgr.ActiveInterviewCount)

	_, err = h.engine.AssignInterviewer(ctx, admin, app.ID, models.RoundManager)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoEligibleInterviewer))
}

// A second assignment for a round that already has one must be rejected
// and must not reserve a second slot.
func TestEngine_AssignInterviewer_RepeatRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	app := h.driveToScheduled(t, models.RoundProfessional)
	_, err := h.engine.SubmitFeedback(ctx, interviewerActor("tech-1"), app.ID, 4.0, models.RecommendationRecommend, "good")
	require.NoError(t, err)

	iv, err := h.engine.AssignInterviewer(ctx, admin, app.ID, models.RoundManager)
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", iv.ID)
	assert.Equal(t, 1, iv.ActiveInterviewCount)

	_, err = h.engine.AssignInterviewer(ctx, admin, app.ID, models.RoundManager)
	require.Error(t, err, "second assignment must be rejected")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))

	mgr, err := h.store.Interviewers().Get(ctx, "mgr-1")
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.ActiveInterviewCount, "capacity reserved exactly once")

	after := h.assertInvariants(t, app.ID)
	require.NotNil(t, after.AssignedManagerID)
	assert.Equal(t, "mgr-1", *after.AssignedManagerID)
}

// seedPendingManagerApp plants an application already waiting for a manager
// interviewer, bypassing the earlier gates.
func seedPendingManagerApp(t *testing.T, h *testHarness, n int) string {
	t.Helper()
	now := time.Now().UTC()
	id := "seeded-mgr-" + string(rune('a'+n))
	status := models.StatusManagerInterviewPending
	require.NoError(t, h.store.Applications().Create(context.Background(), &models.Application{
		ID:        id,
		JobID:     "job-1",
		StudentID: "seed-student-" + id,
		Status:    status,
		AppliedAt: now,
		Timeline:  []models.TimelineEvent{{Status: status, Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}))
	return id
}
