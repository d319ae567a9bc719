// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Recruitment lifecycle metrics
	IncRecruitmentCreated()
	IncRecruitmentUpdated()
	IncRecruitmentDeleted()
	IncStatusChanged(status string) // "COMPLETED" or "CANCELLED"

	// Participation metrics
	IncJoinAccepted()
	IncJoinRejected(reason string) // "full", "closed", "self_join", "duplicate", "conflict", "not_found"
	IncLeaveAccepted()
	IncLeaveRejected(reason string) // "not_participating", "not_found"
	ObserveJoinDuration(duration time.Duration)

	// Fan-out metrics
	IncEventPublished(status string) // "success" or "dropped"

	// Realtime transport metrics
	SetConnectedClients(count int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
