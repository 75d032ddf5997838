// internal/models/interviewer.go
package models

import "time"

// InterviewerRole is the professional's function, matched against the round
// being staffed.
type InterviewerRole string

const (
	RoleTechnical InterviewerRole = "Technical"
	RoleManager   InterviewerRole = "Manager"
	RoleHR        InterviewerRole = "HR"
	RoleAdmin     InterviewerRole = "Admin"
)

// Interviewer is a professional who conducts human interview rounds.
// ActiveInterviewCount is the shared capacity counter: incremented exactly
// once per assignment and decremented exactly once per completed round,
// never above the configured ceiling and never below zero.
type Interviewer struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Email                string          `json:"email"`
	Role                 InterviewerRole `json:"role"`
	ApprovalStatus       Approval        `json:"approvalStatus"`
	ActiveInterviewCount int             `json:"activeInterviewCount"`
	InterviewsTaken      int             `json:"interviewsTaken"`
	Rating               float64         `json:"rating"` // running average, 0-5
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}
