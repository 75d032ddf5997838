// Package notify carries lifecycle events from the transition engine to
// students and interviewers. Emission is fire-and-forget: a committed
// transition is never rolled back because a notification could not be
// queued or delivered.
package notify

import "time"

// EventType labels the lifecycle moment an event describes.
type EventType string

const (
	EventApplicationSubmitted EventType = "application_submitted"
	EventStatusChanged        EventType = "status_changed"
	EventAssessmentReleased   EventType = "assessment_released"
	EventAssessmentSubmitted  EventType = "assessment_submitted"
	EventInterviewAssigned    EventType = "interview_assigned"
	EventInterviewScheduled   EventType = "interview_scheduled"
	EventOfferReleased        EventType = "offer_released"
	EventApplicationRejected  EventType = "application_rejected"
)

// Event is one outbound notification, pushed after a transition commits.
type Event struct {
	RecipientID   string    `json:"recipientId"`
	EventType     EventType `json:"eventType"`
	ApplicationID string    `json:"applicationId"`
	NewStatus     string    `json:"newStatus"`
	OccurredAt    time.Time `json:"occurredAt"`
}
