// internal/models/job.go
package models

import "time"

// Job is the minimal read-only view of a posting the pipeline needs:
// an application may only be submitted while the job is active and before
// its deadline. Job management itself lives outside the core.
type Job struct {
	ID          string    `json:"id"`
	CompanyName string    `json:"companyName"`
	RoleTitle   string    `json:"roleTitle"`
	Deadline    time.Time `json:"deadline"`
	Active      bool      `json:"active"`
}

// AcceptingApplications reports whether the job can take a new application
// at the given instant.
func (j *Job) AcceptingApplications(now time.Time) bool {
	return j.Active && now.Before(j.Deadline)
}
