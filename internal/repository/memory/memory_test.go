package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/models"
)

func seedAssessment(t *testing.T, store *Store) string {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.Assessments().Create(context.Background(), &models.Assessment{
		ID:              "assess-1",
		ApplicationID:   "app-1",
		JobID:           "job-1",
		Status:          models.AssessmentPending,
		Deadline:        now.Add(72 * time.Hour),
		DurationMinutes: 60,
		CreatedAt:       now,
	}))
	return "assess-1"
}

// A completed assessment is final: a late start must not reopen it and the
// score written at completion must never change.
func TestAssessmentRepo_CompletedIsFinal(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Assessments()
	id := seedAssessment(t, store)
	now := time.Now().UTC()

	require.NoError(t, repo.Complete(ctx, id, models.AssessmentAnswers{MCQAnswers: []int{1}}, 42, now))

	err := repo.MarkStarted(ctx, id, now.Add(time.Second))
	require.Error(t, err, "completed must be final")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadySubmitted))

	err = repo.Complete(ctx, id, models.AssessmentAnswers{}, 99, now.Add(2*time.Second))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadySubmitted))

	a, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentCompleted, a.Status)
	require.NotNil(t, a.Score)
	assert.Equal(t, 42, *a.Score, "score written exactly once")
}

func TestAssessmentRepo_MarkStartedOnlyFromPending(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	repo := store.Assessments()
	id := seedAssessment(t, store)
	now := time.Now().UTC()

	require.NoError(t, repo.MarkStarted(ctx, id, now))

	err := repo.MarkStarted(ctx, id, now.Add(time.Second))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidTransition))

	a, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AssessmentInProgress, a.Status)
	require.NotNil(t, a.StartedAt)
	assert.True(t, a.StartedAt.Equal(now), "startedAt recorded by the first start only")
}
