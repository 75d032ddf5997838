// internal/models/assessment.go
package models

import "time"

// AssessmentStatus moves strictly forward: pending -> in_progress -> completed.
type AssessmentStatus string

const (
	AssessmentPending    AssessmentStatus = "pending"
	AssessmentInProgress AssessmentStatus = "in_progress"
	AssessmentCompleted  AssessmentStatus = "completed"
)

// MCQQuestion is one multiple-choice question with the index of the correct
// option. The correct option is never exposed to students.
type MCQQuestion struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"-"`
}

// CodingProblem is the single coding exercise attached to an assessment.
type CodingProblem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
}

// AssessmentAnswers holds the student's submission.
type AssessmentAnswers struct {
	MCQAnswers   []int  `json:"mcqAnswers"`
	CodingAnswer string `json:"codingAnswer,omitempty"`
}

// Assessment is the one-per-application timed test. The question snapshot is
// drawn once at creation and never re-rolled; the score is written exactly
// once when the assessment completes.
type Assessment struct {
	ID              string           `json:"id"`
	ApplicationID   string           `json:"applicationId"`
	JobID           string           `json:"jobId"`
	Status          AssessmentStatus `json:"status"`
	Deadline        time.Time        `json:"deadline"`
	DurationMinutes int              `json:"durationMinutes"`
	MCQQuestions    []MCQQuestion    `json:"mcqQuestions"`
	CodingProblem   CodingProblem    `json:"codingProblem"`
	Score           *int             `json:"score,omitempty"`
	StartedAt       *time.Time       `json:"startedAt,omitempty"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`
	Answers         *AssessmentAnswers `json:"answers,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}
