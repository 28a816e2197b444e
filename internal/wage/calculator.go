// Package wage abstracts the payment amount computation invoked after a work
// session completes. Tax and surcharge details live behind the Calculator
// interface and are out of scope for the lifecycle engine.
package wage

import (
	"time"

	"gigbroker/internal/models"
)

// Calculator produces a payment amount in cents for a completed session.
type Calculator interface {
	Estimate(start, end time.Time, job models.Job) int64
}

// HourlyCalculator prorates the job's hourly rate over the session duration,
// billed per started minute, with a configurable floor.
type HourlyCalculator struct {
	MinimumCents int64
}

func NewHourlyCalculator(minimumCents int64) *HourlyCalculator {
	return &HourlyCalculator{MinimumCents: minimumCents}
}

func (c *HourlyCalculator) Estimate(start, end time.Time, job models.Job) int64 {
	if end.Before(start) {
		return 0
	}

	d := end.Sub(start)
	minutes := int64(d / time.Minute)
	if d%time.Minute != 0 {
		minutes++
	}

	amount := job.HourlyRateCents * minutes / 60
	if amount < c.MinimumCents {
		amount = c.MinimumCents
	}
	return amount
}
