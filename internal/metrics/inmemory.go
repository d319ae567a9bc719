package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	RecruitmentsCreated uint64
	RecruitmentsUpdated uint64
	RecruitmentsDeleted uint64
	StatusChanges       map[string]uint64
	JoinsAccepted       uint64
	JoinsRejected       map[string]uint64
	LeavesAccepted      uint64
	LeavesRejected      map[string]uint64
	JoinDurationCount   uint64
	JoinDurationTotalNs int64
	EventsPublished     uint64
	EventsDropped       uint64
	ConnectedClients    int64
}

// InMemoryRecorder stores metrics in memory for tests and the debug
// metrics endpoint.
type InMemoryRecorder struct {
	recruitmentsCreated uint64
	recruitmentsUpdated uint64
	recruitmentsDeleted uint64
	joinsAccepted       uint64
	leavesAccepted      uint64
	joinDurationCount   uint64
	joinDurationTotalNs int64
	eventsPublished     uint64
	eventsDropped       uint64
	connectedClients    int64

	mu             sync.Mutex
	statusChanges  map[string]uint64
	joinsRejected  map[string]uint64
	leavesRejected map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		statusChanges:  make(map[string]uint64),
		joinsRejected:  make(map[string]uint64),
		leavesRejected: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	statusChanges := copyCounts(m.statusChanges)
	joinsRejected := copyCounts(m.joinsRejected)
	leavesRejected := copyCounts(m.leavesRejected)
	m.mu.Unlock()

	return Snapshot{
		RecruitmentsCreated: atomic.LoadUint64(&m.recruitmentsCreated),
		RecruitmentsUpdated: atomic.LoadUint64(&m.recruitmentsUpdated),
		RecruitmentsDeleted: atomic.LoadUint64(&m.recruitmentsDeleted),
		StatusChanges:       statusChanges,
		JoinsAccepted:       atomic.LoadUint64(&m.joinsAccepted),
		JoinsRejected:       joinsRejected,
		LeavesAccepted:      atomic.LoadUint64(&m.leavesAccepted),
		LeavesRejected:      leavesRejected,
		JoinDurationCount:   atomic.LoadUint64(&m.joinDurationCount),
		JoinDurationTotalNs: atomic.LoadInt64(&m.joinDurationTotalNs),
		EventsPublished:     atomic.LoadUint64(&m.eventsPublished),
		EventsDropped:       atomic.LoadUint64(&m.eventsDropped),
		ConnectedClients:    atomic.LoadInt64(&m.connectedClients),
	}
}

// IncRecruitmentCreated increments the created counter.
func (m *InMemoryRecorder) IncRecruitmentCreated() {
	atomic.AddUint64(&m.recruitmentsCreated, 1)
}

// IncRecruitmentUpdated increments the updated counter.
func (m *InMemoryRecorder) IncRecruitmentUpdated() {
	atomic.AddUint64(&m.recruitmentsUpdated, 1)
}

// IncRecruitmentDeleted increments the deleted counter.
func (m *InMemoryRecorder) IncRecruitmentDeleted() {
	atomic.AddUint64(&m.recruitmentsDeleted, 1)
}

// IncStatusChanged increments the counter for a terminal transition.
func (m *InMemoryRecorder) IncStatusChanged(status string) {
	m.mu.Lock()
	m.statusChanges[status]++
	m.mu.Unlock()
}

// IncJoinAccepted increments the accepted join counter.
func (m *InMemoryRecorder) IncJoinAccepted() {
	atomic.AddUint64(&m.joinsAccepted, 1)
}

// IncJoinRejected increments the rejected join counter for a reason.
func (m *InMemoryRecorder) IncJoinRejected(reason string) {
	m.mu.Lock()
	m.joinsRejected[reason]++
	m.mu.Unlock()
}

// IncLeaveAccepted increments the accepted leave counter.
func (m *InMemoryRecorder) IncLeaveAccepted() {
	atomic.AddUint64(&m.leavesAccepted, 1)
}

// IncLeaveRejected increments the rejected leave counter for a reason.
func (m *InMemoryRecorder) IncLeaveRejected(reason string) {
	m.mu.Lock()
	m.leavesRejected[reason]++
	m.mu.Unlock()
}

// ObserveJoinDuration records join latency.
func (m *InMemoryRecorder) ObserveJoinDuration(duration time.Duration) {
	atomic.AddUint64(&m.joinDurationCount, 1)
	atomic.AddInt64(&m.joinDurationTotalNs, duration.Nanoseconds())
}

// IncEventPublished increments the fan-out counter by status.
func (m *InMemoryRecorder) IncEventPublished(status string) {
	if status == "success" {
		atomic.AddUint64(&m.eventsPublished, 1)
		return
	}
	atomic.AddUint64(&m.eventsDropped, 1)
}

// SetConnectedClients records the current realtime client count.
func (m *InMemoryRecorder) SetConnectedClients(count int64) {
	atomic.StoreInt64(&m.connectedClients, count)
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
