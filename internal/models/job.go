// internal/models/job.go
package models

import "time"

const (
	JobStatusOpen   = "open"
	JobStatusFilled = "filled"
	JobStatusClosed = "closed"
)

// Job is an offered gig as surfaced in the swipe feed.
type Job struct {
	ID              string    `json:"id"`
	EmployerID      string    `json:"employerId"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Location        string    `json:"location,omitempty"`
	HourlyRateCents int64     `json:"hourlyRateCents"`
	Status          string    `json:"status"`
	PostedAt        time.Time `json:"postedAt"`
}
