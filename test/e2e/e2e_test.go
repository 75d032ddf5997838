// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-pipeline/internal/common/config"
	"placement-pipeline/internal/common/database"
	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/notify"
	"placement-pipeline/internal/pipeline/assessment"
	"placement-pipeline/internal/pipeline/engine"
	"placement-pipeline/internal/pipeline/random"
	"placement-pipeline/internal/pipeline/scheduler"
	"placement-pipeline/internal/repository/postgres"
)

// Runs the full application lifecycle against real PostgreSQL and Redis.
// Skipped unless E2E_TESTS=1 and both services are reachable on localhost.
func TestFullPipelineE2E(t *testing.T) {
	if os.Getenv("E2E_TESTS") == "" {
		t.Skip("set E2E_TESTS=1 to run against real services")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	require.NoError(t, err)

	// Force localhost regardless of deployed config.
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"

	log := logger.NewTestLogger(t)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL connection failed")
	defer pg.Close()
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "Redis client creation failed")
	defer rdb.Close()
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")

	db := pg.GetDB()
	require.NoError(t, postgres.RunMigrations(db))

	apps := postgres.NewApplicationRepository(db)
	jobs := postgres.NewJobRepository(db)
	interviewers := postgres.NewInterviewerRepository(db)
	assessments := postgres.NewAssessmentRepository(db)

	queue := fmt.Sprintf("pipeline:events:e2e:%s", uuid.New().String()[:8])
	emitter := notify.NewRedisEmitter(rdb.GetClient(), queue, log)

	eng := engine.New(
		apps,
		jobs,
		scheduler.New(interviewers, cfg.Pipeline.CapacityCeiling, log),
		assessment.NewEngine(assessments, random.NewSeeded(7), cfg.Assessment, log),
		emitter,
		cfg.Pipeline.MaxTransitionRetries,
		log,
	)

	// Unique IDs per run so the test is rerunnable without cleanup.
	run := uuid.New().String()[:8]
	jobID := "e2e-job-" + run
	student := models.Actor{ID: "e2e-student-" + run, Role: models.ActorStudent}
	admin := models.Actor{ID: "e2e-admin-" + run, Role: models.ActorAdmin}

	require.NoError(t, jobs.Create(ctx, &models.Job{
		ID:          jobID,
		CompanyName: "Acme Corp",
		RoleTitle:   "Backend Engineer",
		Deadline:    time.Now().Add(30 * 24 * time.Hour),
		Active:      true,
	}))

	ivIDs := map[models.Round]string{}
	for round, role := range map[models.Round]models.InterviewerRole{
		models.RoundProfessional: models.RoleTechnical,
		models.RoundManager:      models.RoleManager,
		models.RoundHR:           models.RoleHR,
	} {
		id := fmt.Sprintf("e2e-iv-%s-%s", round, run)
		require.NoError(t, interviewers.Create(ctx, &models.Interviewer{
			ID:             id,
			Name:           string(round) + " interviewer",
			Email:          id + "@example.com",
			Role:           role,
			ApprovalStatus: models.ApprovalApproved,
			Rating:         4.0,
		}))
		ivIDs[round] = id
	}

	// --- Submit and resume gate ---
	app, err := eng.SubmitApplication(ctx, student, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApplied, app.Status)

	_, err = eng.StartResumeReview(ctx, admin, app.ID)
	require.NoError(t, err)
	resumeScore := 82.0
	app, err = eng.SetResumeDecision(ctx, admin, app.ID, true, &resumeScore)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResumeShortlisted, app.Status)

	// --- Assessment gate ---
	_, assess, err := eng.ReleaseAssessment(ctx, admin, app.ID, 60)
	require.NoError(t, err)
	require.Len(t, assess.MCQQuestions, cfg.Assessment.MCQCount)

	_, err = eng.StartAssessment(ctx, student, assess.ID)
	require.NoError(t, err)

	answers := models.AssessmentAnswers{
		CodingAnswer: "func solve(nums []int, target int) []int { m := map[int]int{}; for i, n := range nums { if j, ok := m[target-n]; ok { return []int{j, i} }; m[n] = i }; return nil }",
	}
	for _, q := range assess.MCQQuestions {
		answers.MCQAnswers = append(answers.MCQAnswers, q.CorrectOption)
	}
	submitted, err := eng.SubmitAssessment(ctx, student, assess.ID, answers)
	require.NoError(t, err)
	require.NotNil(t, submitted.Score)
	assert.Equal(t, 100, *submitted.Score)

	app, err = eng.SetAssessmentDecision(ctx, admin, app.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAIInterviewPending, app.Status)

	// --- AI interview gate ---
	_, err = eng.CompleteAIInterview(ctx, student, app.ID, 88)
	require.NoError(t, err)
	app, err = eng.SetAIInterviewDecision(ctx, admin, app.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProfessionalInterviewPending, app.Status)

	// --- Three human rounds ---
	for _, round := range models.Rounds {
		iv, err := eng.AssignInterviewer(ctx, admin, app.ID, round)
		require.NoError(t, err, "assigning %s round", round)
		assert.Equal(t, ivIDs[round], iv.ID)
		assert.Equal(t, 1, iv.ActiveInterviewCount)

		ivActor := models.Actor{ID: iv.ID, Role: models.ActorInterviewer}
		_, err = eng.ScheduleInterview(ctx, ivActor, app.ID, "https://meet.example.com/"+run, time.Now().Add(24*time.Hour))
		require.NoError(t, err)

		app, err = eng.SubmitFeedback(ctx, ivActor, app.ID, 4.5, models.RecommendationRecommend, "solid round")
		require.NoError(t, err)

		released, err := interviewers.Get(ctx, iv.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, released.ActiveInterviewCount, "capacity not released after %s round", round)
		assert.Equal(t, 1, released.InterviewsTaken)
	}
	assert.Equal(t, models.StatusHRInterviewCompleted, app.Status)

	// --- Offer ---
	_, err = eng.ReleaseOffer(ctx, admin, app.ID)
	require.NoError(t, err)
	app, err = eng.SetOfferDecision(ctx, student, app.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOfferAccepted, app.Status)

	// Timeline invariant: last entry mirrors the final status.
	require.NotEmpty(t, app.Timeline)
	assert.Equal(t, app.Status, app.Timeline[len(app.Timeline)-1].Status)
	assert.Len(t, app.Feedback, 3)

	// Every transition landed an event on the outbox queue.
	depth, err := rdb.GetClient().LLen(ctx, queue).Result()
	require.NoError(t, err)
	assert.Greater(t, depth, int64(15), "expected one outbox event per committed transition")
	rdb.GetClient().Del(ctx, queue)
}

// A duplicate submission for the same job/student pair must be rejected by
// the database uniqueness constraint, not just the in-memory guard.
func TestDuplicateApplicationE2E(t *testing.T) {
	if os.Getenv("E2E_TESTS") == "" {
		t.Skip("set E2E_TESTS=1 to run against real services")
	}

	ctx := context.Background()

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Database.Postgres.Host = "localhost"

	log := logger.NewTestLogger(t)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	defer pg.Close()
	require.NoError(t, pg.Ping(ctx))

	db := pg.GetDB()
	require.NoError(t, postgres.RunMigrations(db))

	eng := engine.New(
		postgres.NewApplicationRepository(db),
		postgres.NewJobRepository(db),
		scheduler.New(postgres.NewInterviewerRepository(db), cfg.Pipeline.CapacityCeiling, log),
		assessment.NewEngine(postgres.NewAssessmentRepository(db), random.New(), cfg.Assessment, log),
		notify.NopEmitter{},
		cfg.Pipeline.MaxTransitionRetries,
		log,
	)

	run := uuid.New().String()[:8]
	jobID := "e2e-dup-job-" + run
	student := models.Actor{ID: "e2e-dup-student-" + run, Role: models.ActorStudent}

	require.NoError(t, postgres.NewJobRepository(db).Create(ctx, &models.Job{
		ID:          jobID,
		CompanyName: "Acme Corp",
		RoleTitle:   "Backend Engineer",
		Deadline:    time.Now().Add(24 * time.Hour),
		Active:      true,
	}))

	_, err = eng.SubmitApplication(ctx, student, jobID)
	require.NoError(t, err)

	_, err = eng.SubmitApplication(ctx, student, jobID)
	require.Error(t, err)
}
