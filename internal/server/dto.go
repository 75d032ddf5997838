package server

import "placement-pipeline/internal/models"

type submitApplicationRequest struct {
	JobID string `json:"jobId"`
}

type decisionRequest struct {
	Approve bool     `json:"approve"`
	Score   *float64 `json:"score,omitempty"`
}

type releaseAssessmentRequest struct {
	DurationMinutes int `json:"durationMinutes"`
}

type submitAssessmentRequest struct {
	MCQAnswers   []int  `json:"mcqAnswers"`
	CodingAnswer string `json:"codingAnswer"`
}

type completeAIInterviewRequest struct {
	Score float64 `json:"score"`
}

type assignInterviewerRequest struct {
	Round string `json:"round"`
}

type scheduleInterviewRequest struct {
	MeetingLink string `json:"meetingLink"`
	ScheduledAt string `json:"scheduledAt"`
}

type submitFeedbackRequest struct {
	Rating         float64 `json:"rating"`
	Recommendation string  `json:"recommendation"`
	Comments       string  `json:"comments"`
}

type offerDecisionRequest struct {
	Accept bool `json:"accept"`
}

type assignInterviewerResponse struct {
	Interviewer *models.Interviewer `json:"interviewer"`
}

type submitAssessmentResponse struct {
	Assessment *models.Assessment `json:"assessment"`
	Score      int                `json:"score"`
}

type releaseAssessmentResponse struct {
	Application *models.Application `json:"application"`
	Assessment  *models.Assessment  `json:"assessment"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
