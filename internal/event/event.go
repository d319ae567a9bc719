// Package event provides the broadcast contract for recruitment changes.
// Every accepted mutation fans out one envelope to the channel scoped to
// the recruitment and one to the global channel for list-level observers.
package event

import (
	"fmt"
	"time"

	"github.com/queueup/queueup/internal/model"
)

// Type identifies the kind of broadcast message.
type Type string

const (
	TypeRecruitmentUpdated   Type = "RECRUITMENT_UPDATED"
	TypeParticipantJoined    Type = "PARTICIPANT_JOINED"
	TypeParticipantLeft      Type = "PARTICIPANT_LEFT"
	TypeRecruitmentCompleted Type = "RECRUITMENT_COMPLETED"
	TypeRecruitmentCancelled Type = "RECRUITMENT_CANCELLED"
	TypeError                Type = "ERROR"
)

// GlobalChannel receives an envelope for every accepted mutation.
const GlobalChannel = "recruitments"

// ChannelPattern matches every per-recruitment channel for pattern
// subscribers.
const ChannelPattern = "recruitment:*"

// RecruitmentChannel returns the channel scoped to a single recruitment.
func RecruitmentChannel(recruitmentID int64) string {
	return fmt.Sprintf("recruitment:%d", recruitmentID)
}

// Envelope is the wire format for all broadcast messages. Field names are
// part of the client contract and stay camelCase.
type Envelope struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	RecruitmentID int64     `json:"recruitmentId"`
	Data          any       `json:"data,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ParticipantChange is the payload for PARTICIPANT_JOINED and
// PARTICIPANT_LEFT envelopes.
type ParticipantChange struct {
	UserID              int64 `json:"userId"`
	CurrentParticipants int   `json:"currentParticipants"`
	MaxParticipants     int   `json:"maxParticipants"`
	IsFull              bool  `json:"isFull"`
}

// StatusChange is the payload for RECRUITMENT_COMPLETED and
// RECRUITMENT_CANCELLED envelopes.
type StatusChange struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Error is the payload for ERROR envelopes, unicast to the requester only.
type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ParticipantSnapshot mirrors a participant in broadcast payloads.
type ParticipantSnapshot struct {
	UserID   int64     `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RecruitmentSnapshot is the payload for RECRUITMENT_UPDATED envelopes: an
// immutable view of the aggregate for list-level observers.
type RecruitmentSnapshot struct {
	ID                  int64                 `json:"id"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	OwnerID             int64                 `json:"ownerId"`
	AttractionID        *int64                `json:"attractionId,omitempty"`
	MaxParticipants     int                   `json:"maxParticipants"`
	CurrentParticipants int                   `json:"currentParticipants"`
	IsFull              bool                  `json:"isFull"`
	Status              string                `json:"status"`
	ExpiresAt           *time.Time            `json:"expiresAt,omitempty"`
	Participants        []ParticipantSnapshot `json:"participants"`
	CreatedAt           time.Time             `json:"createdAt"`
	UpdatedAt           time.Time             `json:"updatedAt"`
}

// SnapshotRecruitment converts an aggregate into its broadcast view.
func SnapshotRecruitment(rec *model.Recruitment) RecruitmentSnapshot {
	participants := make([]ParticipantSnapshot, 0, len(rec.Participants))
	for _, p := range rec.Participants {
		participants = append(participants, ParticipantSnapshot{
			UserID:   p.UserID,
			JoinedAt: p.JoinedAt,
		})
	}

	return RecruitmentSnapshot{
		ID:                  rec.ID,
		Title:               rec.Title,
		Description:         rec.Description,
		OwnerID:             rec.OwnerID,
		AttractionID:        rec.AttractionID,
		MaxParticipants:     rec.Capacity,
		CurrentParticipants: len(rec.Participants),
		IsFull:              rec.IsFull(),
		Status:              string(rec.Status),
		ExpiresAt:           rec.ExpiresAt,
		Participants:        participants,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
}
