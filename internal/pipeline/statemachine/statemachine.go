// Package statemachine defines the closed transition table for the
// application lifecycle. Next is pure: it never touches storage, so the
// engine can evaluate a transition before committing it atomically.
package statemachine

import (
	"placement-pipeline/internal/common/errors"
	"placement-pipeline/internal/models"
)

// Action names a lifecycle transition request.
type Action string

const (
	// ActionSubmitApplication creates the application; it has no source
	// status and never reaches Next.
	ActionSubmitApplication Action = "submit_application"

	ActionStartResumeReview    Action = "start_resume_review"
	ActionResumeDecision       Action = "resume_decision"
	ActionReleaseAssessment    Action = "release_assessment"
	ActionStartAssessment      Action = "start_assessment"
	ActionSubmitAssessment     Action = "submit_assessment"
	ActionAssessmentDecision   Action = "assessment_decision"
	ActionAdvanceToAIInterview Action = "advance_to_ai_interview"
	ActionCompleteAIInterview  Action = "complete_ai_interview"
	ActionAIInterviewDecision  Action = "ai_interview_decision"
	ActionScheduleInterview    Action = "schedule_interview"
	ActionSubmitFeedback       Action = "submit_feedback"
	ActionAdvanceRound         Action = "advance_round"
	ActionReleaseOffer         Action = "release_offer"
	ActionOfferDecision        Action = "offer_decision"
)

// Evidence carries the gate outcome a transition depends on. Decision
// actions read Approve; SubmitFeedback reads Recommendation.
type Evidence struct {
	Approve        bool
	Recommendation models.Recommendation
}

// Next computes the status that results from applying action to current.
// Illegal combinations return InvalidTransition and never mutate anything.
func Next(current models.Status, action Action, ev Evidence) (models.Status, error) {
	if current.IsTerminal() {
		return "", errors.NewInvalidTransition(string(current), string(action))
	}

	switch action {
	case ActionStartResumeReview:
		if current == models.StatusApplied {
			return models.StatusResumeUnderReview, nil
		}

	case ActionResumeDecision:
		if current == models.StatusApplied || current == models.StatusResumeUnderReview {
			if ev.Approve {
				return models.StatusResumeShortlisted, nil
			}
			return models.StatusRejected, nil
		}

	case ActionReleaseAssessment:
		if current == models.StatusResumeShortlisted {
			return models.StatusAssessmentReleased, nil
		}

	case ActionStartAssessment:
		if current == models.StatusAssessmentReleased {
			return models.StatusAssessmentInProgress, nil
		}

	case ActionSubmitAssessment:
		// A missed start call is tolerated: submit is legal straight
		// from released.
		if current == models.StatusAssessmentReleased || current == models.StatusAssessmentInProgress {
			return models.StatusAssessmentSubmitted, nil
		}

	case ActionAssessmentDecision:
		if current == models.StatusAssessmentSubmitted {
			if ev.Approve {
				return models.StatusAssessmentApproved, nil
			}
			return models.StatusRejected, nil
		}

	case ActionAdvanceToAIInterview:
		if current == models.StatusAssessmentApproved {
			return models.StatusAIInterviewPending, nil
		}

	case ActionCompleteAIInterview:
		if current == models.StatusAIInterviewPending {
			return models.StatusAIInterviewCompleted, nil
		}

	case ActionAIInterviewDecision:
		if current == models.StatusAIInterviewPending || current == models.StatusAIInterviewCompleted {
			if ev.Approve {
				return models.StatusProfessionalInterviewPending, nil
			}
			return models.StatusRejected, nil
		}

	case ActionScheduleInterview:
		if round := current.Round(); round != "" && current == round.PendingStatus() {
			return round.ScheduledStatus(), nil
		}

	case ActionSubmitFeedback:
		if round := current.Round(); round != "" && current == round.ScheduledStatus() {
			if ev.Recommendation.Passed() {
				return round.CompletedStatus(), nil
			}
			return models.StatusRejected, nil
		}

	case ActionAdvanceRound:
		if round := current.Round(); round != "" && current == round.CompletedStatus() {
			if next := round.Next(); next != "" {
				return next.PendingStatus(), nil
			}
			// The HR round advances only through an explicit offer
			// release.
		}

	case ActionReleaseOffer:
		if current == models.StatusHRInterviewCompleted {
			return models.StatusOfferReleased, nil
		}

	case ActionOfferDecision:
		if current == models.StatusOfferReleased {
			if ev.Approve {
				return models.StatusOfferAccepted, nil
			}
			return models.StatusOfferRejected, nil
		}
	}

	return "", errors.NewInvalidTransition(string(current), string(action))
}
