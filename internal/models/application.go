// internal/models/application.go
package models

import "time"

// Approval is the tri-state decision flag for the resume, assessment and
// AI-interview gates.
type Approval string

const (
	ApprovalPending  Approval = "pending"
	ApprovalApproved Approval = "approved"
	ApprovalRejected Approval = "rejected"
)

// Recommendation is the verdict an interviewer submits with round feedback.
type Recommendation string

const (
	RecommendationStronglyRecommend Recommendation = "Strongly Recommend"
	RecommendationRecommend         Recommendation = "Recommend"
	RecommendationPass              Recommendation = "Pass"
	RecommendationMaybe             Recommendation = "Maybe"
	RecommendationReject            Recommendation = "Reject"
	RecommendationFail              Recommendation = "Fail"
)

// Passed reports whether the recommendation advances the candidate.
// Anything outside the explicit pass set, including Maybe, counts as a fail.
func (r Recommendation) Passed() bool {
	switch r {
	case RecommendationStronglyRecommend, RecommendationRecommend, RecommendationPass:
		return true
	}
	return false
}

// TimelineEvent is one immutable entry in an application's audit timeline.
type TimelineEvent struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`
}

// InterviewFeedback records the outcome of one completed human round.
// Entries are created once and never edited.
type InterviewFeedback struct {
	Round          Round          `json:"round"`
	InterviewerID  string         `json:"interviewerId"`
	Rating         float64        `json:"rating"` // 0-5
	Recommendation Recommendation `json:"recommendation"`
	Comments       string         `json:"comments,omitempty"`
	ConductedAt    time.Time      `json:"conductedAt"`
}

// Application is the central pipeline entity. Status, timeline and feedback
// are mutated only through the transition engine; Version backs the
// optimistic concurrency check on every write.
type Application struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	StudentID string    `json:"studentId"`
	Status    Status    `json:"status"`
	Version   int64     `json:"version"`
	AppliedAt time.Time `json:"appliedAt"`

	ResumeScore     *float64 `json:"resumeScore,omitempty"`
	AssessmentScore *float64 `json:"assessmentScore,omitempty"`
	AIInterviewScore *float64 `json:"aiInterviewScore,omitempty"`

	ResumeApproval      Approval `json:"resumeApproval"`
	AssessmentApproval  Approval `json:"assessmentApproval"`
	AIInterviewApproval Approval `json:"aiInterviewApproval"`

	AssignedProfessionalID *string `json:"assignedProfessionalId,omitempty"`
	AssignedManagerID      *string `json:"assignedManagerId,omitempty"`
	AssignedHRID           *string `json:"assignedHrId,omitempty"`

	ProfessionalInterviewScore *float64 `json:"professionalInterviewScore,omitempty"`
	ManagerInterviewScore      *float64 `json:"managerInterviewScore,omitempty"`
	HRInterviewScore           *float64 `json:"hrInterviewScore,omitempty"`

	MeetingLink   string     `json:"meetingLink,omitempty"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`

	Timeline []TimelineEvent     `json:"timeline"`
	Feedback []InterviewFeedback `json:"interviewFeedback,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CurrentRound derives the active human round from the status.
func (a *Application) CurrentRound() Round {
	return a.Status.Round()
}

// AssignedInterviewer returns the interviewer reference for the given round,
// or nil when the round has no assignment yet.
func (a *Application) AssignedInterviewer(round Round) *string {
	switch round {
	case RoundProfessional:
		return a.AssignedProfessionalID
	case RoundManager:
		return a.AssignedManagerID
	case RoundHR:
		return a.AssignedHRID
	}
	return nil
}

// ActorRole distinguishes the three caller identities the engine recognizes.
type ActorRole string

const (
	ActorStudent     ActorRole = "student"
	ActorAdmin       ActorRole = "admin"
	ActorInterviewer ActorRole = "interviewer"
)

// Actor identifies the caller of an engine operation. Authentication happens
// outside the core; the engine only checks role and ownership.
type Actor struct {
	ID   string    `json:"id"`
	Role ActorRole `json:"role"`
}
