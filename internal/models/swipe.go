// internal/models/swipe.go
package models

// SwipeDirection is the gesture a worker makes on a job card.
type SwipeDirection string

const (
	SwipeAccept SwipeDirection = "accept" // swipe right: apply to the job
	SwipeReject SwipeDirection = "reject" // swipe left: mark not interested
)

// SwipeMode selects which pool of jobs the feed is showing. The two pools are
// disjoint universes and never share dedup state.
type SwipeMode string

const (
	ModeNormal                SwipeMode = "NORMAL"
	ModeReconsideringRejected SwipeMode = "RECONSIDERING_REJECTED"
)
