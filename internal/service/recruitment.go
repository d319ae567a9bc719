// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/queueup/queueup/internal/event"
	"github.com/queueup/queueup/internal/metrics"
	"github.com/queueup/queueup/internal/middleware"
	"github.com/queueup/queueup/internal/model"
	"github.com/queueup/queueup/internal/repository"
)

// Service errors. Each operation fails with a distinct kind so callers can
// branch with errors.Is instead of matching messages.
var (
	ErrRecruitmentNotFound  = errors.New("recruitment not found")
	ErrRecruitmentClosed    = errors.New("recruitment is not active")
	ErrRecruitmentFull      = errors.New("recruitment is full")
	ErrAlreadyParticipating = errors.New("user is already participating")
	ErrNotParticipating     = errors.New("user is not participating")
	ErrNotOwner             = errors.New("only the owner may perform this action")
	ErrSelfJoin             = errors.New("owner cannot join own recruitment")
	ErrInvalidCapacity      = errors.New("capacity must be between 2 and 8")
	ErrBlankTitle           = errors.New("title must not be blank")
	ErrTitleTooLong         = errors.New("title exceeds maximum length")
	ErrDescriptionTooLong   = errors.New("description exceeds maximum length")
	ErrExpiresInPast        = errors.New("expires_at must be in the future")
	ErrConflict             = errors.New("recruitment changed concurrently, please retry")
)

const (
	maxTitleLength       = 120
	maxDescriptionLength = 2000
)

// Store is the persistence boundary for recruitment aggregates. It is the
// sole owner of aggregate state: every mutation re-reads a snapshot,
// validates, and writes back through one of the guarded entry points.
// *repository.Repository satisfies it.
type Store interface {
	CreateRecruitment(ctx context.Context, rec *model.Recruitment) error
	GetRecruitmentByID(ctx context.Context, id int64) (*model.Recruitment, error)
	AddParticipant(ctx context.Context, recruitmentID, userID int64, joinedAt time.Time, expectedCount int) error
	RemoveParticipant(ctx context.Context, recruitmentID, userID int64) error
	UpdateRecruitmentStatus(ctx context.Context, id int64, from, to model.RecruitmentStatus) error
	UpdateRecruitmentDetails(ctx context.Context, id, version int64, title, description string) error
	DeleteRecruitment(ctx context.Context, id int64) error
	ListRecruitments(ctx context.Context, filter repository.RecruitmentFilter) ([]*model.Recruitment, error)
}

// RecruitmentService handles recruitment lifecycle and read queries.
type RecruitmentService struct {
	store     Store
	publisher event.Publisher
	metrics   metrics.Recorder
}

// NewRecruitmentService creates a new RecruitmentService.
func NewRecruitmentService(store Store, publisher event.Publisher, recorder metrics.Recorder) *RecruitmentService {
	if publisher == nil {
		publisher = event.NewNoopPublisher()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RecruitmentService{
		store:     store,
		publisher: publisher,
		metrics:   recorder,
	}
}

// CreateRecruitmentInput defines input for creating a recruitment.
type CreateRecruitmentInput struct {
	Title        string
	Description  string
	OwnerID      int64
	AttractionID *int64
	Capacity     int
	ExpiresAt    *time.Time
}

// Create persists a new recruitment with status ACTIVE and an empty
// participant set, then broadcasts it as the first update.
func (s *RecruitmentService) Create(ctx context.Context, input CreateRecruitmentInput) (*model.Recruitment, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateText(title, input.Description); err != nil {
		return nil, err
	}

	capacity := input.Capacity
	if capacity == 0 {
		capacity = model.DefaultCapacity
	}
	if !model.ValidCapacity(capacity) {
		return nil, ErrInvalidCapacity
	}

	if input.ExpiresAt != nil && input.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiresInPast
	}

	rec := &model.Recruitment{
		Title:        title,
		Description:  input.Description,
		OwnerID:      input.OwnerID,
		AttractionID: input.AttractionID,
		Capacity:     capacity,
		Status:       model.StatusActive,
		ExpiresAt:    input.ExpiresAt,
		Participants: []model.Participant{},
	}

	if err := s.store.CreateRecruitment(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create recruitment: %w", err)
	}

	s.metrics.IncRecruitmentCreated()
	s.publisher.RecruitmentUpdated(ctx, rec)

	return rec, nil
}

// FindByID retrieves a single recruitment.
func (s *RecruitmentService) FindByID(ctx context.Context, id int64) (*model.Recruitment, error) {
	rec, err := s.store.GetRecruitmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecruitmentNotFound) {
			return nil, ErrRecruitmentNotFound
		}
		return nil, err
	}
	return rec, nil
}

// FindAll retrieves all recruitments, newest first.
func (s *RecruitmentService) FindAll(ctx context.Context) ([]*model.Recruitment, error) {
	return s.store.ListRecruitments(ctx, repository.RecruitmentFilter{})
}

// FindActive retrieves recruitments still open for joining.
func (s *RecruitmentService) FindActive(ctx context.Context) ([]*model.Recruitment, error) {
	return s.store.ListRecruitments(ctx, repository.RecruitmentFilter{Status: model.StatusActive})
}

// FindByOwner retrieves recruitments created by a user.
func (s *RecruitmentService) FindByOwner(ctx context.Context, ownerID int64) ([]*model.Recruitment, error) {
	return s.store.ListRecruitments(ctx, repository.RecruitmentFilter{OwnerID: &ownerID})
}

// FindByParticipant retrieves recruitments a user has joined.
func (s *RecruitmentService) FindByParticipant(ctx context.Context, userID int64) ([]*model.Recruitment, error) {
	return s.store.ListRecruitments(ctx, repository.RecruitmentFilter{ParticipantID: &userID})
}

// FindByAttraction retrieves recruitments for an attraction.
func (s *RecruitmentService) FindByAttraction(ctx context.Context, attractionID int64) ([]*model.Recruitment, error) {
	return s.store.ListRecruitments(ctx, repository.RecruitmentFilter{AttractionID: &attractionID})
}

// UpdateRecruitmentInput defines input for updating a recruitment.
type UpdateRecruitmentInput struct {
	ID          int64
	RequesterID int64
	Title       *string
	Description *string
}

// Update edits the recruitment's free text. Owner-only.
func (s *RecruitmentService) Update(ctx context.Context, input UpdateRecruitmentInput) (*model.Recruitment, error) {
	rec, err := s.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if !rec.IsOwner(input.RequesterID) {
		return nil, ErrNotOwner
	}
	if rec.IsTerminal() {
		return nil, ErrRecruitmentClosed
	}

	title := rec.Title
	if input.Title != nil {
		title = strings.TrimSpace(*input.Title)
	}
	description := rec.Description
	if input.Description != nil {
		description = *input.Description
	}
	if err := validateText(title, description); err != nil {
		return nil, err
	}

	err = s.store.UpdateRecruitmentDetails(ctx, rec.ID, rec.Version, title, description)
	if err != nil {
		if errors.Is(err, repository.ErrConcurrentModification) {
			return nil, ErrConflict
		}
		return nil, err
	}

	updated, err := s.FindByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.IncRecruitmentUpdated()
	s.publisher.RecruitmentUpdated(ctx, updated)

	return updated, nil
}

// Cancel moves an ACTIVE recruitment to CANCELLED. Owner-only and
// irreversible; the participant set freezes.
func (s *RecruitmentService) Cancel(ctx context.Context, id, requesterID int64, reason string) (*model.Recruitment, error) {
	return s.transition(ctx, id, requesterID, model.StatusCancelled, reason)
}

// Complete moves an ACTIVE recruitment to COMPLETED. Owner-only and
// irreversible; the participant set freezes.
func (s *RecruitmentService) Complete(ctx context.Context, id, requesterID int64, reason string) (*model.Recruitment, error) {
	return s.transition(ctx, id, requesterID, model.StatusCompleted, reason)
}

// transition implements the owner-only terminal transitions. The status
// write is a compare-and-set from ACTIVE, so a concurrent transition loses
// cleanly instead of overwriting.
func (s *RecruitmentService) transition(ctx context.Context, id, requesterID int64, to model.RecruitmentStatus, reason string) (*model.Recruitment, error) {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !rec.IsOwner(requesterID) {
		return nil, ErrNotOwner
	}
	if !rec.Status.CanTransitionTo(to) {
		return nil, ErrRecruitmentClosed
	}

	err = s.store.UpdateRecruitmentStatus(ctx, id, model.StatusActive, to)
	if err != nil {
		if errors.Is(err, repository.ErrConcurrentModification) {
			// Lost a race with another transition. The aggregate is
			// terminal now either way.
			return nil, ErrRecruitmentClosed
		}
		return nil, err
	}

	updated, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.metrics.IncStatusChanged(string(to))
	s.publisher.StatusChanged(ctx, updated, reason)

	return updated, nil
}

// Delete removes a recruitment entirely. Owner-only, allowed in any status.
func (s *RecruitmentService) Delete(ctx context.Context, id, requesterID int64) error {
	rec, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if !rec.IsOwner(requesterID) {
		return ErrNotOwner
	}

	if err := s.store.DeleteRecruitment(ctx, id); err != nil {
		if errors.Is(err, repository.ErrRecruitmentNotFound) {
			return ErrRecruitmentNotFound
		}
		return err
	}

	s.metrics.IncRecruitmentDeleted()

	return nil
}

// validateText checks the free-text fields shared by create and update.
func validateText(title, description string) error {
	if title == "" {
		return ErrBlankTitle
	}
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if err := middleware.ValidateFreeText(title); err != nil {
		return err
	}
	if len(description) > maxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if err := middleware.ValidateFreeText(description); err != nil {
		return err
	}
	return nil
}
