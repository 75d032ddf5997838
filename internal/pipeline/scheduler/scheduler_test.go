package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/repository/memory"
)

const testCeiling = 10

func seedApplication(t *testing.T, store *memory.Store, id string, status models.Status) *models.Application {
	t.Helper()
	now := time.Now().UTC()
	app := &models.Application{
		ID:        id,
		JobID:     "job-1",
		StudentID: "student-" + id,
		Status:    status,
		AppliedAt: now,
		Timeline:  []models.TimelineEvent{{Status: status, Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Applications().Create(context.Background(), app))
	return app
}

func seedInterviewer(t *testing.T, store *memory.Store, id string, role models.InterviewerRole, active int, rating float64) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.Interviewers().Create(context.Background(), &models.Interviewer{
		ID:                   id,
		Name:                 "Interviewer " + id,
		Email:                id + "@example.com",
		Role:                 role,
		ApprovalStatus:       models.ApprovalApproved,
		ActiveInterviewCount: active,
		Rating:               rating,
		CreatedAt:            now,
		UpdatedAt:            now,
	}))
}

func TestScheduler_Assign_PrefersLeastLoadedThenRating(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	seedInterviewer(t, store, "iv-busy", models.RoleTechnical, 5, 5.0)
	seedInterviewer(t, store, "iv-idle-low", models.RoleTechnical, 1, 3.0)
	seedInterviewer(t, store, "iv-idle-high", models.RoleTechnical, 1, 4.8)

	app := seedApplication(t, store, "app-1", models.StatusProfessionalInterviewPending)
	s := New(store.Interviewers(), testCeiling, logger.NewTestLogger(t))

	iv, err := s.Assign(ctx, app, models.RoundProfessional)
	require.NoError(t, err)
	assert.Equal(t, "iv-idle-high", iv.ID)
	assert.Equal(t, 2, iv.ActiveInterviewCount)

	// The assignment reference and a timeline note land atomically with
	// the reservation; the status itself does not move.
	updated, err := store.Applications().Get(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedProfessionalID)
	assert.Equal(t, "iv-idle-high", *updated.AssignedProfessionalID)
	assert.Equal(t, models.StatusProfessionalInterviewPending, updated.Status)
	assert.Equal(t, updated.Status, updated.Timeline[len(updated.Timeline)-1].Status)
	assert.Greater(t, updated.Version, app.Version)
}

func TestScheduler_Assign_TieBrokenByID(t *testing.T) {
	store := memory.NewStore()

	seedInterviewer(t, store, "iv-b", models.RoleManager, 2, 4.0)
	seedInterviewer(t, store, "iv-a", models.RoleManager, 2, 4.0)

	app := seedApplication(t, store, "app-1", models.StatusManagerInterviewPending)
	s := New(store.Interviewers(), testCeiling, logger.NewTestLogger(t))

	iv, err := s.Assign(context.Background(), app, models.RoundManager)
	require.NoError(t, err)
	assert.Equal(t, "iv-a", iv.ID)
}

// An interviewer at the ceiling stays out of the candidate pool no matter
// how well rated.
func TestScheduler_Assign_CeilingExcludes(t *testing.T) {
	store := memory.NewStore()

	seedInterviewer(t, store, "iv-top", models.RoleTechnical, testCeiling, 5.0)
	seedInterviewer(t, store, "iv-ok", models.RoleTechnical, 4, 2.5)

	app := seedApplication(t, store, "app-1", models.StatusProfessionalInterviewPending)
	s := New(store.Interviewers(), testCeiling, logger.NewTestLogger(t))

	iv, err := s.Assign(context.Background(), app, models.RoundProfessional)
	require.NoError(t, err)
	assert.Equal(t, "iv-ok", iv.ID)
}

func TestScheduler_Assign_RoleMustMatchRound(t *testing.T) {
	store := memory.NewStore()

	seedInterviewer(t, store, "iv-tech", models.RoleTechnical, 0, 4.0)

	app := seedApplication(t, store, "app-1", models.StatusHRInterviewPending)
	s := New(store.Interviewers(), testCeiling, logger.NewTestLogger(t))

	_, err := s.Assign(context.Background(), app, models.RoundHR)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoEligibleInterviewer))
}

func TestScheduler_Assign_WrongStatus(t *testing.T) {
	store := memory.NewStore()

	seedInterviewer(t, store, "iv-1", models.RoleTechnical, 0, 4.0)

	app := seedApplication(t, store, "app-1", models.StatusApplied)
	s := New(store.Interviewers(), testCeiling, logger.NewTestLogger(t))

	_, err := s.Assign(context.Background(), app, models.RoundProfessional)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))
}

// A round is staffed exactly once: a second assignment attempt must fail
// without touching anyone's capacity, even when another interviewer could
// take it.
func TestScheduler_Assign_RepeatForRoundRejected(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	seedInterviewer(t, store, "mgr-a", models.RoleManager, 0, 4.5)
	seedInterviewer(t, store, "mgr-b", models.RoleManager, 0, 4.0)

	app := seedApplication(t, store, "app-1", models.StatusManagerInterviewPending)
	s := New(store.Interviewers(), testCeiling, logger.NewTestLogger(t))

	first, err := s.Assign(ctx, app, models.RoundManager)
	require.NoError(t, err)
	assert.Equal(t, "mgr-a", first.ID)

	updated, err := store.Applications().Get(ctx, app.ID)
	require.NoError(t, err)

	_, err = s.Assign(ctx, updated, models.RoundManager)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))

	// Exactly one slot reserved across the pool, and the assignment
	// reference still points at the first interviewer.
	for id, want := range map[string]int{"mgr-a": 1, "mgr-b": 0} {
		iv, err := store.Interviewers().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, iv.ActiveInterviewCount, id)
	}
	after, err := store.Applications().Get(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, after.AssignedManagerID)
	assert.Equal(t, "mgr-a", *after.AssignedManagerID)
}

// The repository guard holds even when the caller presents a stale
// application snapshot without the assignment reference.
func TestScheduler_Assign_StaleSnapshotStillRejected(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	seedInterviewer(t, store, "mgr-a", models.RoleManager, 0, 4.5)

	app := seedApplication(t, store, "app-1", models.StatusManagerInterviewPending)
	s := New(store.Interviewers(), testCeiling, logger.NewTestLogger(t))

	_, err := s.Assign(ctx, app, models.RoundManager)
	require.NoError(t, err)

	// Replay with the pre-assignment snapshot: the version check catches it
	// before any second increment.
	_, err = s.Assign(ctx, app, models.RoundManager)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConcurrencyConflict))

	iv, err := store.Interviewers().Get(ctx, "mgr-a")
	require.NoError(t, err)
	assert.Equal(t, 1, iv.ActiveInterviewCount)
}

// One slot left under the ceiling, two racing assignments on different
// applications: exactly one wins it.
func TestScheduler_Assign_CeilingRace(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	seedInterviewer(t, store, "iv-last", models.RoleTechnical, testCeiling-1, 4.0)

	appA := seedApplication(t, store, "app-a", models.StatusProfessionalInterviewPending)
	appB := seedApplication(t, store, "app-b", models.StatusProfessionalInterviewPending)
	s := New(store.Interviewers(), testCeiling, logger.NewNoOpLogger())

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, app := range []*models.Application{appA, appB} {
		wg.Add(1)
		go func(i int, app *models.Application) {
			defer wg.Done()
			_, results[i] = s.Assign(ctx, app, models.RoundProfessional)
		}(i, app)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, errors.IsCode(err, errors.ErrCodeNoEligibleInterviewer))
		}
	}
	assert.Equal(t, 1, succeeded)

	iv, err := store.Interviewers().Get(ctx, "iv-last")
	require.NoError(t, err)
	assert.Equal(t, testCeiling, iv.ActiveInterviewCount)
}

func TestScheduler_Release(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	seedInterviewer(t, store, "iv-1", models.RoleHR, 1, 0)
	s := New(store.Interviewers(), testCeiling, logger.NewTestLogger(t))

	require.NoError(t, s.Release(ctx, "iv-1", 4.0))

	iv, err := store.Interviewers().Get(ctx, "iv-1")
	require.NoError(t, err)
	assert.Equal(t, 0, iv.ActiveInterviewCount)
	assert.Equal(t, 1, iv.InterviewsTaken)
	assert.InDelta(t, 4.0, iv.Rating, 1e-9)

	// Already at zero: the floor holds and the average folds in the new
	// rating.
	require.NoError(t, s.Release(ctx, "iv-1", 5.0))
	iv, err = store.Interviewers().Get(ctx, "iv-1")
	require.NoError(t, err)
	assert.Equal(t, 0, iv.ActiveInterviewCount)
	assert.Equal(t, 2, iv.InterviewsTaken)
	assert.InDelta(t, 4.5, iv.Rating, 1e-9)
}
