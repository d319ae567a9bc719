package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/queueup/queueup/internal/metrics"
	"github.com/queueup/queueup/internal/model"
)

// PublishTimeout is the max time to wait for a broadcast to be accepted.
const PublishTimeout = 100 * time.Millisecond

// Publisher fans out recruitment changes. Implementations must emit exactly
// one envelope per channel per call and must never fail the caller: fan-out
// is at-least-effort broadcast, not part of the consistency contract, so
// callers invoke it only after the mutation is durably committed.
type Publisher interface {
	ParticipantJoined(ctx context.Context, rec *model.Recruitment, userID int64)
	ParticipantLeft(ctx context.Context, rec *model.Recruitment, userID int64)
	RecruitmentUpdated(ctx context.Context, rec *model.Recruitment)
	StatusChanged(ctx context.Context, rec *model.Recruitment, reason string)
}

// RedisPublisher broadcasts envelopes over Redis pub/sub channels.
type RedisPublisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewRedisPublisher creates a publisher backed by Redis pub/sub.
func NewRedisPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *RedisPublisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedisPublisher{
		redis:   client,
		logger:  logger.With("component", "event.publisher"),
		metrics: recorder,
	}
}

// ParticipantJoined broadcasts a join: the scoped channel carries the
// participant change, the global channel carries the updated snapshot.
func (p *RedisPublisher) ParticipantJoined(ctx context.Context, rec *model.Recruitment, userID int64) {
	p.broadcast(ctx, rec, envelope(TypeParticipantJoined, rec.ID, participantChange(rec, userID)))
}

// ParticipantLeft broadcasts a leave.
func (p *RedisPublisher) ParticipantLeft(ctx context.Context, rec *model.Recruitment, userID int64) {
	p.broadcast(ctx, rec, envelope(TypeParticipantLeft, rec.ID, participantChange(rec, userID)))
}

// RecruitmentUpdated broadcasts a created or edited recruitment.
func (p *RedisPublisher) RecruitmentUpdated(ctx context.Context, rec *model.Recruitment) {
	p.broadcast(ctx, rec, envelope(TypeRecruitmentUpdated, rec.ID, SnapshotRecruitment(rec)))
}

// StatusChanged broadcasts a terminal transition. The envelope type follows
// the new status.
func (p *RedisPublisher) StatusChanged(ctx context.Context, rec *model.Recruitment, reason string) {
	typ := TypeRecruitmentCompleted
	if rec.Status == model.StatusCancelled {
		typ = TypeRecruitmentCancelled
	}
	payload := StatusChange{Status: string(rec.Status), Reason: reason}
	p.broadcast(ctx, rec, envelope(typ, rec.ID, payload))
}

// broadcast emits the typed envelope on the recruitment-scoped channel and
// a RECRUITMENT_UPDATED snapshot on the global channel. Status changes keep
// their type on both channels so list observers can drop closed entries.
func (p *RedisPublisher) broadcast(ctx context.Context, rec *model.Recruitment, scoped Envelope) {
	global := scoped
	if scoped.Type == TypeParticipantJoined || scoped.Type == TypeParticipantLeft {
		global = envelope(TypeRecruitmentUpdated, rec.ID, SnapshotRecruitment(rec))
	}

	p.publish(ctx, RecruitmentChannel(rec.ID), scoped)
	p.publish(ctx, GlobalChannel, global)
}

// publish sends one envelope to one channel. Failures are logged, counted,
// and swallowed: a committed mutation is never rolled back because a
// subscriber channel is unreachable.
func (p *RedisPublisher) publish(ctx context.Context, channel string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		p.logger.Warn("failed to marshal envelope",
			"type", env.Type,
			"recruitment_id", env.RecruitmentID,
			"error", err,
		)
		p.metrics.IncEventPublished("dropped")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	if err := p.redis.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Warn("failed to publish event",
			"channel", channel,
			"type", env.Type,
			"recruitment_id", env.RecruitmentID,
			"error", err,
		)
		p.metrics.IncEventPublished("dropped")
		return
	}

	p.logger.Debug("event published",
		"channel", channel,
		"type", env.Type,
		"recruitment_id", env.RecruitmentID,
	)
	p.metrics.IncEventPublished("success")
}

// NoopPublisher discards all events. Used when fan-out is disabled and as a
// default in tests.
type NoopPublisher struct{}

// NewNoopPublisher returns a Publisher that discards everything.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (*NoopPublisher) ParticipantJoined(context.Context, *model.Recruitment, int64) {}
func (*NoopPublisher) ParticipantLeft(context.Context, *model.Recruitment, int64)   {}
func (*NoopPublisher) RecruitmentUpdated(context.Context, *model.Recruitment)       {}
func (*NoopPublisher) StatusChanged(context.Context, *model.Recruitment, string)    {}

// NewEnvelope builds an envelope with a fresh event ID and timestamp.
func NewEnvelope(typ Type, recruitmentID int64, data any) Envelope {
	return envelope(typ, recruitmentID, data)
}

func envelope(typ Type, recruitmentID int64, data any) Envelope {
	now := time.Now().UTC()
	return Envelope{
		ID:            ulid.Make().String(),
		Type:          typ,
		RecruitmentID: recruitmentID,
		Data:          data,
		Timestamp:     now,
	}
}

func participantChange(rec *model.Recruitment, userID int64) ParticipantChange {
	return ParticipantChange{
		UserID:              userID,
		CurrentParticipants: len(rec.Participants),
		MaxParticipants:     rec.Capacity,
		IsFull:              rec.IsFull(),
	}
}

var _ Publisher = (*RedisPublisher)(nil)
var _ Publisher = (*NoopPublisher)(nil)
