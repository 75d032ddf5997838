// internal/models/status.go
package models

// Status is the closed set of pipeline states an application moves through.
type Status string

const (
	StatusApplied            Status = "applied"
	StatusResumeUnderReview  Status = "resume_under_review"
	StatusResumeShortlisted  Status = "resume_shortlisted"
	StatusAssessmentReleased Status = "assessment_released"
	StatusAssessmentInProgress Status = "assessment_in_progress"
	StatusAssessmentSubmitted  Status = "assessment_submitted"
	StatusAssessmentApproved   Status = "assessment_approved"
	StatusAIInterviewPending   Status = "ai_interview_pending"
	StatusAIInterviewCompleted Status = "ai_interview_completed"

	StatusProfessionalInterviewPending   Status = "professional_interview_pending"
	StatusProfessionalInterviewScheduled Status = "professional_interview_scheduled"
	StatusProfessionalInterviewCompleted Status = "professional_interview_completed"
	StatusManagerInterviewPending        Status = "manager_interview_pending"
	StatusManagerInterviewScheduled      Status = "manager_interview_scheduled"
	StatusManagerInterviewCompleted      Status = "manager_interview_completed"
	StatusHRInterviewPending             Status = "hr_interview_pending"
	StatusHRInterviewScheduled           Status = "hr_interview_scheduled"
	StatusHRInterviewCompleted           Status = "hr_interview_completed"

	StatusOfferReleased Status = "offer_released"
	StatusOfferAccepted Status = "offer_accepted"
	StatusOfferRejected Status = "offer_rejected"
	StatusRejected      Status = "rejected"
)

// AllStatuses enumerates every valid status, useful for exhaustive checks.
var AllStatuses = []Status{
	StatusApplied,
	StatusResumeUnderReview,
	StatusResumeShortlisted,
	StatusAssessmentReleased,
	StatusAssessmentInProgress,
	StatusAssessmentSubmitted,
	StatusAssessmentApproved,
	StatusAIInterviewPending,
	StatusAIInterviewCompleted,
	StatusProfessionalInterviewPending,
	StatusProfessionalInterviewScheduled,
	StatusProfessionalInterviewCompleted,
	StatusManagerInterviewPending,
	StatusManagerInterviewScheduled,
	StatusManagerInterviewCompleted,
	StatusHRInterviewPending,
	StatusHRInterviewScheduled,
	StatusHRInterviewCompleted,
	StatusOfferReleased,
	StatusOfferAccepted,
	StatusOfferRejected,
	StatusRejected,
}

// IsTerminal reports whether no further transition is legal from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusOfferAccepted, StatusOfferRejected:
		return true
	}
	return false
}

// Round returns the human interview round the status belongs to, or "" when
// the status is outside the interview phase.
func (s Status) Round() Round {
	switch s {
	case StatusProfessionalInterviewPending, StatusProfessionalInterviewScheduled, StatusProfessionalInterviewCompleted:
		return RoundProfessional
	case StatusManagerInterviewPending, StatusManagerInterviewScheduled, StatusManagerInterviewCompleted:
		return RoundManager
	case StatusHRInterviewPending, StatusHRInterviewScheduled, StatusHRInterviewCompleted:
		return RoundHR
	}
	return ""
}

// Round identifies one of the three human interview stages, conducted in
// fixed order: professional (technical), manager, HR.
type Round string

const (
	RoundProfessional Round = "professional"
	RoundManager      Round = "manager"
	RoundHR           Round = "hr"
)

// Rounds lists the human interview rounds in pipeline order.
var Rounds = []Round{RoundProfessional, RoundManager, RoundHR}

// Valid reports whether r names a known interview round.
func (r Round) Valid() bool {
	switch r {
	case RoundProfessional, RoundManager, RoundHR:
		return true
	}
	return false
}

// PendingStatus returns the round's "awaiting scheduling" status.
func (r Round) PendingStatus() Status {
	switch r {
	case RoundProfessional:
		return StatusProfessionalInterviewPending
	case RoundManager:
		return StatusManagerInterviewPending
	case RoundHR:
		return StatusHRInterviewPending
	}
	return ""
}

// ScheduledStatus returns the round's "interview scheduled" status.
func (r Round) ScheduledStatus() Status {
	switch r {
	case RoundProfessional:
		return StatusProfessionalInterviewScheduled
	case RoundManager:
		return StatusManagerInterviewScheduled
	case RoundHR:
		return StatusHRInterviewScheduled
	}
	return ""
}

// CompletedStatus returns the round's "passed" status.
func (r Round) CompletedStatus() Status {
	switch r {
	case RoundProfessional:
		return StatusProfessionalInterviewCompleted
	case RoundManager:
		return StatusManagerInterviewCompleted
	case RoundHR:
		return StatusHRInterviewCompleted
	}
	return ""
}

// Next returns the round that follows r, or "" after the HR round.
func (r Round) Next() Round {
	switch r {
	case RoundProfessional:
		return RoundManager
	case RoundManager:
		return RoundHR
	}
	return ""
}

// RequiredRole maps a round to the interviewer role qualified to conduct it.
func (r Round) RequiredRole() InterviewerRole {
	switch r {
	case RoundProfessional:
		return RoleTechnical
	case RoundManager:
		return RoleManager
	case RoundHR:
		return RoleHR
	}
	return ""
}
