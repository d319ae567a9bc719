package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncRecruitmentCreated is a no-op.
func (n *NoopRecorder) IncRecruitmentCreated() {}

// IncRecruitmentUpdated is a no-op.
func (n *NoopRecorder) IncRecruitmentUpdated() {}

// IncRecruitmentDeleted is a no-op.
func (n *NoopRecorder) IncRecruitmentDeleted() {}

// IncStatusChanged is a no-op.
func (n *NoopRecorder) IncStatusChanged(status string) {}

// IncJoinAccepted is a no-op.
func (n *NoopRecorder) IncJoinAccepted() {}

// IncJoinRejected is a no-op.
func (n *NoopRecorder) IncJoinRejected(reason string) {}

// IncLeaveAccepted is a no-op.
func (n *NoopRecorder) IncLeaveAccepted() {}

// IncLeaveRejected is a no-op.
func (n *NoopRecorder) IncLeaveRejected(reason string) {}

// ObserveJoinDuration is a no-op.
func (n *NoopRecorder) ObserveJoinDuration(duration time.Duration) {}

// IncEventPublished is a no-op.
func (n *NoopRecorder) IncEventPublished(status string) {}

// SetConnectedClients is a no-op.
func (n *NoopRecorder) SetConnectedClients(count int64) {}
