// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/queueup/queueup/internal/model"
)

// CreateRecruitmentRequest represents the request body for creating a recruitment.
type CreateRecruitmentRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	AttractionID *int64     `json:"attraction_id,omitempty"`
	Capacity     int        `json:"capacity,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// UpdateRecruitmentRequest represents the request body for updating a recruitment.
type UpdateRecruitmentRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// StatusChangeRequest carries the optional reason for cancel and complete.
type StatusChangeRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ParticipantResponse represents a participant in API responses.
type ParticipantResponse struct {
	UserID   int64     `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// RecruitmentResponse represents a recruitment in API responses.
type RecruitmentResponse struct {
	ID                  int64                 `json:"id"`
	Title               string                `json:"title"`
	Description         string                `json:"description"`
	OwnerID             int64                 `json:"owner_id"`
	AttractionID        *int64                `json:"attraction_id,omitempty"`
	Capacity            int                   `json:"capacity"`
	CurrentParticipants int                   `json:"current_participants"`
	IsFull              bool                  `json:"is_full"`
	Status              string                `json:"status"`
	ExpiresAt           *time.Time            `json:"expires_at,omitempty"`
	Participants        []ParticipantResponse `json:"participants"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// RecruitmentListResponse represents a list of recruitments.
type RecruitmentListResponse struct {
	Data []RecruitmentResponse `json:"data"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToRecruitmentResponse converts a Recruitment model to RecruitmentResponse DTO.
func ToRecruitmentResponse(rec *model.Recruitment) *RecruitmentResponse {
	participants := make([]ParticipantResponse, len(rec.Participants))
	for i, p := range rec.Participants {
		participants[i] = ParticipantResponse{
			UserID:   p.UserID,
			JoinedAt: p.JoinedAt,
		}
	}
	return &RecruitmentResponse{
		ID:                  rec.ID,
		Title:               rec.Title,
		Description:         rec.Description,
		OwnerID:             rec.OwnerID,
		AttractionID:        rec.AttractionID,
		Capacity:            rec.Capacity,
		CurrentParticipants: len(rec.Participants),
		IsFull:              rec.IsFull(),
		Status:              string(rec.Status),
		ExpiresAt:           rec.ExpiresAt,
		Participants:        participants,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
	}
}

// ToRecruitmentListResponse converts a slice of Recruitment models to RecruitmentListResponse.
func ToRecruitmentListResponse(recs []*model.Recruitment) *RecruitmentListResponse {
	responses := make([]RecruitmentResponse, len(recs))
	for i, rec := range recs {
		responses[i] = *ToRecruitmentResponse(rec)
	}
	return &RecruitmentListResponse{Data: responses}
}
