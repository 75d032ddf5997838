// Package scheduler picks and reserves interviewers for human rounds.
// Selection is a greedy load-balancing policy: least-loaded first, then
// highest-rated, ties broken by id for determinism.
package scheduler

import (
	"context"
	"fmt"

	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/common/metrics"
	"placement-pipeline/internal/models"
	"placement-pipeline/internal/repository"
)

type Scheduler struct {
	interviewers repository.InterviewerRepository
	ceiling      int
	log          logger.Logger
}

func New(interviewers repository.InterviewerRepository, ceiling int, log logger.Logger) *Scheduler {
	return &Scheduler{interviewers: interviewers, ceiling: ceiling, log: log}
}

// Assign reserves an interviewer for the application's round. The
// application must be in the round's pending status and not yet assigned;
// the candidate filter, the capacity increment and the assignment write
// commit atomically in the repository. Never blocks: an empty candidate
// pool surfaces immediately as NoEligibleInterviewer.
func (s *Scheduler) Assign(ctx context.Context, app *models.Application, round models.Round) (*models.Interviewer, error) {
	if !round.Valid() {
		return nil, errors.NewValidationFailed("unknown round: " + string(round))
	}
	if app.Status != round.PendingStatus() {
		return nil, errors.NewInvalidTransition(string(app.Status), "assign_interviewer")
	}
	// One assignment per round: a repeat would increment a second slot that
	// no feedback submission ever releases.
	if app.AssignedInterviewer(round) != nil {
		return nil, errors.NewAlreadyExists("assignment",
			fmt.Sprintf("application: %s, round: %s", app.ID, round))
	}

	iv, err := s.interviewers.Reserve(ctx, app.ID, app.Version, round, s.ceiling)
	if err != nil {
		metrics.AssignmentsRejected.WithLabelValues(string(round)).Inc()
		s.log.Warn("interviewer reservation failed", map[string]interface{}{
			"application_id": app.ID,
			"round":          string(round),
			"error":          err.Error(),
		})
		return nil, err
	}

	metrics.AssignmentsReserved.WithLabelValues(string(round)).Inc()
	s.log.Info("interviewer reserved", map[string]interface{}{
		"application_id": app.ID,
		"round":          string(round),
		"interviewer_id": iv.ID,
		"active_count":   iv.ActiveInterviewCount,
	})

	return iv, nil
}

// Release frees the interviewer's slot after a round completes, folding the
// round rating into their running average. The repository floors the count
// at zero.
func (s *Scheduler) Release(ctx context.Context, interviewerID string, rating float64) error {
	return s.interviewers.Release(ctx, interviewerID, rating)
}
