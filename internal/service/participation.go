package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/queueup/queueup/internal/event"
	"github.com/queueup/queueup/internal/metrics"
	"github.com/queueup/queueup/internal/model"
	"github.com/queueup/queueup/internal/repository"
)

// maxJoinAttempts bounds the retry loop for joins that lose a capacity
// race. Each attempt re-reads the aggregate and re-validates from scratch.
const maxJoinAttempts = 3

// ParticipationService coordinates joins and leaves. Capacity is enforced
// by the store's conditional write; this layer owns the precondition
// checks and the bounded retry.
type ParticipationService struct {
	store     Store
	publisher event.Publisher
	metrics   metrics.Recorder
}

// NewParticipationService creates a new ParticipationService.
func NewParticipationService(store Store, publisher event.Publisher, recorder metrics.Recorder) *ParticipationService {
	if publisher == nil {
		publisher = event.NewNoopPublisher()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &ParticipationService{
		store:     store,
		publisher: publisher,
		metrics:   recorder,
	}
}

// Join adds a user to a recruitment. The capacity check and the insert are
// a single conditional write keyed on the participant count observed here,
// so two racing joins for the last slot cannot both commit. On a lost race
// the whole sequence retries with fresh state.
func (s *ParticipationService) Join(ctx context.Context, recruitmentID, userID int64) (*model.Recruitment, error) {
	start := time.Now()

	for attempt := 0; attempt < maxJoinAttempts; attempt++ {
		rec, err := s.store.GetRecruitmentByID(ctx, recruitmentID)
		if err != nil {
			if errors.Is(err, repository.ErrRecruitmentNotFound) {
				return nil, ErrRecruitmentNotFound
			}
			return nil, err
		}

		if err := s.checkJoinable(rec, userID); err != nil {
			s.metrics.IncJoinRejected(rejectReason(err))
			return nil, err
		}

		err = s.store.AddParticipant(ctx, recruitmentID, userID, time.Now(), len(rec.Participants))
		if err != nil {
			if errors.Is(err, repository.ErrConcurrentModification) {
				continue
			}
			if errors.Is(err, repository.ErrAlreadyJoined) {
				s.metrics.IncJoinRejected("already_participating")
				return nil, ErrAlreadyParticipating
			}
			return nil, fmt.Errorf("failed to add participant: %w", err)
		}

		updated, err := s.store.GetRecruitmentByID(ctx, recruitmentID)
		if err != nil {
			return nil, err
		}

		s.metrics.IncJoinAccepted()
		s.metrics.ObserveJoinDuration(time.Since(start))
		s.publisher.ParticipantJoined(ctx, updated, userID)

		return updated, nil
	}

	s.metrics.IncJoinRejected("conflict")
	return nil, ErrConflict
}

// Leave removes a user from a recruitment. Leaving a full recruitment
// reopens a slot; the owner is never a participant so cannot leave.
func (s *ParticipationService) Leave(ctx context.Context, recruitmentID, userID int64) (*model.Recruitment, error) {
	rec, err := s.store.GetRecruitmentByID(ctx, recruitmentID)
	if err != nil {
		if errors.Is(err, repository.ErrRecruitmentNotFound) {
			return nil, ErrRecruitmentNotFound
		}
		return nil, err
	}

	if rec.IsTerminal() {
		s.metrics.IncLeaveRejected("closed")
		return nil, ErrRecruitmentClosed
	}
	if !rec.IsParticipating(userID) {
		s.metrics.IncLeaveRejected("not_participating")
		return nil, ErrNotParticipating
	}

	err = s.store.RemoveParticipant(ctx, recruitmentID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotJoined) {
			s.metrics.IncLeaveRejected("not_participating")
			return nil, ErrNotParticipating
		}
		return nil, fmt.Errorf("failed to remove participant: %w", err)
	}

	updated, err := s.store.GetRecruitmentByID(ctx, recruitmentID)
	if err != nil {
		return nil, err
	}

	s.metrics.IncLeaveAccepted()
	s.publisher.ParticipantLeft(ctx, updated, userID)

	return updated, nil
}

// checkJoinable validates join preconditions against a snapshot. Order
// matters: state before identity before capacity, so the caller always
// sees the most specific refusal.
func (s *ParticipationService) checkJoinable(rec *model.Recruitment, userID int64) error {
	if rec.Status != model.StatusActive {
		return ErrRecruitmentClosed
	}
	if rec.IsOwner(userID) {
		return ErrSelfJoin
	}
	if rec.IsParticipating(userID) {
		return ErrAlreadyParticipating
	}
	if rec.IsFull() {
		return ErrRecruitmentFull
	}
	return nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrRecruitmentClosed):
		return "closed"
	case errors.Is(err, ErrSelfJoin):
		return "self_join"
	case errors.Is(err, ErrAlreadyParticipating):
		return "already_participating"
	case errors.Is(err, ErrRecruitmentFull):
		return "full"
	default:
		return "other"
	}
}
