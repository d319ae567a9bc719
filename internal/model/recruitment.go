// Package model defines domain entities for the application.
package model

import "time"

// Capacity bounds for a recruitment.
const (
	MinCapacity = 2
	MaxCapacity = 8

	// DefaultCapacity is used when a create request omits the capacity.
	DefaultCapacity = 4
)

// RecruitmentStatus represents the lifecycle state of a recruitment.
type RecruitmentStatus string

const (
	StatusActive    RecruitmentStatus = "ACTIVE"
	StatusCompleted RecruitmentStatus = "COMPLETED"
	StatusCancelled RecruitmentStatus = "CANCELLED"
)

// IsValid checks if the status is a known value.
func (s RecruitmentStatus) IsValid() bool {
	return s == StatusActive || s == StatusCompleted || s == StatusCancelled
}

// IsTerminal returns true for statuses that freeze the participant set.
func (s RecruitmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether a status change is legal.
// The only legal transitions are ACTIVE -> COMPLETED and ACTIVE -> CANCELLED.
func (s RecruitmentStatus) CanTransitionTo(next RecruitmentStatus) bool {
	return s == StatusActive && next.IsTerminal()
}

// Participant is a user who joined a recruitment. The owner is never a
// participant.
type Participant struct {
	UserID   int64     `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Recruitment represents a bounded-capacity group-formation request.
type Recruitment struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	OwnerID      int64             `json:"owner_id"`
	AttractionID *int64            `json:"attraction_id,omitempty"`
	Capacity     int               `json:"capacity"`
	Status       RecruitmentStatus `json:"status"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	Participants []Participant     `json:"participants"`
	// Version is the optimistic concurrency token maintained by the store.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFull returns true when no slots remain.
func (r *Recruitment) IsFull() bool {
	return len(r.Participants) >= r.Capacity
}

// IsParticipating returns true if the user has joined this recruitment.
func (r *Recruitment) IsParticipating(userID int64) bool {
	for _, p := range r.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the recruitment is completed or cancelled.
func (r *Recruitment) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// IsOwner returns true if the user created this recruitment.
func (r *Recruitment) IsOwner(userID int64) bool {
	return r.OwnerID == userID
}

// ValidCapacity checks the fixed capacity range.
func ValidCapacity(capacity int) bool {
	return capacity >= MinCapacity && capacity <= MaxCapacity
}
