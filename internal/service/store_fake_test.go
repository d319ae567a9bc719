package service

import (
	"context"
	"sync"
	"time"

	"github.com/queueup/queueup/internal/model"
	"github.com/queueup/queueup/internal/repository"
)

// fakeStore is an in-memory Store with the same conditional-write
// semantics as the Postgres repository: AddParticipant only commits when
// the stored participant count still matches the caller's snapshot.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]*model.Recruitment

	addErr    error
	deleteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, recs: make(map[int64]*model.Recruitment)}
}

func (f *fakeStore) seed(rec *model.Recruitment) *model.Recruitment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == 0 {
		rec.ID = f.nextID
		f.nextID++
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	f.recs[rec.ID] = rec
	return rec
}

func (f *fakeStore) CreateRecruitment(_ context.Context, rec *model.Recruitment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = f.nextID
	f.nextID++
	rec.Version = 1
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	clone := *rec
	f.recs[rec.ID] = &clone
	return nil
}

func (f *fakeStore) GetRecruitmentByID(_ context.Context, id int64) (*model.Recruitment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return nil, repository.ErrRecruitmentNotFound
	}
	return cloneRecruitment(rec), nil
}

func (f *fakeStore) AddParticipant(_ context.Context, recruitmentID, userID int64, joinedAt time.Time, expectedCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	rec, ok := f.recs[recruitmentID]
	if !ok {
		return repository.ErrRecruitmentNotFound
	}
	for _, p := range rec.Participants {
		if p.UserID == userID {
			return repository.ErrAlreadyJoined
		}
	}
	count := len(rec.Participants)
	if rec.Status != model.StatusActive || count != expectedCount || count >= rec.Capacity {
		return repository.ErrConcurrentModification
	}
	rec.Participants = append(rec.Participants, model.Participant{UserID: userID, JoinedAt: joinedAt})
	rec.Version++
	return nil
}

func (f *fakeStore) RemoveParticipant(_ context.Context, recruitmentID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[recruitmentID]
	if !ok {
		return repository.ErrRecruitmentNotFound
	}
	for i, p := range rec.Participants {
		if p.UserID == userID {
			rec.Participants = append(rec.Participants[:i], rec.Participants[i+1:]...)
			rec.Version++
			return nil
		}
	}
	return repository.ErrNotJoined
}

func (f *fakeStore) UpdateRecruitmentStatus(_ context.Context, id int64, from, to model.RecruitmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return repository.ErrRecruitmentNotFound
	}
	if rec.Status != from {
		return repository.ErrConcurrentModification
	}
	rec.Status = to
	rec.Version++
	return nil
}

func (f *fakeStore) UpdateRecruitmentDetails(_ context.Context, id, version int64, title, description string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[id]
	if !ok {
		return repository.ErrRecruitmentNotFound
	}
	if rec.Version != version {
		return repository.ErrConcurrentModification
	}
	rec.Title = title
	rec.Description = description
	rec.Version++
	return nil
}

func (f *fakeStore) DeleteRecruitment(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.recs[id]; !ok {
		return repository.ErrRecruitmentNotFound
	}
	delete(f.recs, id)
	return nil
}

func (f *fakeStore) ListRecruitments(_ context.Context, filter repository.RecruitmentFilter) ([]*model.Recruitment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Recruitment
	for _, rec := range f.recs {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.OwnerID != nil && rec.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.AttractionID != nil && (rec.AttractionID == nil || *rec.AttractionID != *filter.AttractionID) {
			continue
		}
		if filter.ParticipantID != nil && !rec.IsParticipating(*filter.ParticipantID) {
			continue
		}
		out = append(out, cloneRecruitment(rec))
	}
	return out, nil
}

func cloneRecruitment(rec *model.Recruitment) *model.Recruitment {
	clone := *rec
	clone.Participants = append([]model.Participant(nil), rec.Participants...)
	return &clone
}

// fakePublisher records published events for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	joined []int64
	left   []int64
	status []string
	sweeps int
}

func (p *fakePublisher) ParticipantJoined(_ context.Context, _ *model.Recruitment, userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = append(p.joined, userID)
}

func (p *fakePublisher) ParticipantLeft(_ context.Context, _ *model.Recruitment, userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.left = append(p.left, userID)
}

func (p *fakePublisher) RecruitmentUpdated(_ context.Context, _ *model.Recruitment) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweeps++
}

func (p *fakePublisher) StatusChanged(_ context.Context, rec *model.Recruitment, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = append(p.status, string(rec.Status))
}
