package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/queueup/queueup/internal/middleware"
	"github.com/queueup/queueup/internal/model"
)

func strPtr(s string) *string { return &s }

func TestCreateValidation(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		input   CreateRecruitmentInput
		wantErr error
	}{
		{
			name:    "blank title",
			input:   CreateRecruitmentInput{Title: "   ", OwnerID: 1, Capacity: 4},
			wantErr: ErrBlankTitle,
		},
		{
			name:    "title too long",
			input:   CreateRecruitmentInput{Title: strings.Repeat("a", maxTitleLength+1), OwnerID: 1, Capacity: 4},
			wantErr: ErrTitleTooLong,
		},
		{
			name: "description too long",
			input: CreateRecruitmentInput{
				Title:       "Ride group",
				Description: strings.Repeat("a", maxDescriptionLength+1),
				OwnerID:     1,
				Capacity:    4,
			},
			wantErr: ErrDescriptionTooLong,
		},
		{
			name:    "title with control characters",
			input:   CreateRecruitmentInput{Title: "Ride\x00group", OwnerID: 1, Capacity: 4},
			wantErr: middleware.ErrTextControlChars,
		},
		{
			name: "description not valid utf8",
			input: CreateRecruitmentInput{
				Title:       "Ride group",
				Description: string([]byte{0xff, 0xfe}),
				OwnerID:     1,
				Capacity:    4,
			},
			wantErr: middleware.ErrTextInvalidUTF8,
		},
		{
			name:    "capacity too small",
			input:   CreateRecruitmentInput{Title: "Ride group", OwnerID: 1, Capacity: 1},
			wantErr: ErrInvalidCapacity,
		},
		{
			name:    "capacity too large",
			input:   CreateRecruitmentInput{Title: "Ride group", OwnerID: 1, Capacity: 9},
			wantErr: ErrInvalidCapacity,
		},
		{
			name:    "expires in the past",
			input:   CreateRecruitmentInput{Title: "Ride group", OwnerID: 1, Capacity: 4, ExpiresAt: &past},
			wantErr: ErrExpiresInPast,
		},
		{
			name:    "valid",
			input:   CreateRecruitmentInput{Title: "Ride group", OwnerID: 1, Capacity: 4, ExpiresAt: &future},
			wantErr: nil,
		},
		{
			name:    "zero capacity defaults",
			input:   CreateRecruitmentInput{Title: "Ride group", OwnerID: 1},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRecruitmentService(newFakeStore(), nil, nil)

			rec, err := svc.Create(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if rec.Status != model.StatusActive {
				t.Errorf("status = %s, want ACTIVE", rec.Status)
			}
			if len(rec.Participants) != 0 {
				t.Errorf("participants = %d, want 0", len(rec.Participants))
			}
			if tt.input.Capacity == 0 && rec.Capacity != model.DefaultCapacity {
				t.Errorf("capacity = %d, want default %d", rec.Capacity, model.DefaultCapacity)
			}
		})
	}
}

func TestCreateTrimsTitle(t *testing.T) {
	svc := NewRecruitmentService(newFakeStore(), nil, nil)

	rec, err := svc.Create(context.Background(), CreateRecruitmentInput{Title: "  Ride group  ", OwnerID: 1})
	if err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if rec.Title != "Ride group" {
		t.Errorf("title = %q, want trimmed", rec.Title)
	}
}

func TestCreatePublishesUpdate(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewRecruitmentService(newFakeStore(), pub, nil)

	if _, err := svc.Create(context.Background(), CreateRecruitmentInput{Title: "Ride group", OwnerID: 1}); err != nil {
		t.Fatalf("Create() unexpected error: %v", err)
	}
	if pub.sweeps != 1 {
		t.Errorf("published updates = %d, want 1", pub.sweeps)
	}
}

func TestUpdate(t *testing.T) {
	ownerID := int64(1)

	tests := []struct {
		name    string
		setup   func(store *fakeStore) int64
		input   UpdateRecruitmentInput
		wantErr error
	}{
		{
			name:    "not found",
			setup:   func(store *fakeStore) int64 { return 999 },
			input:   UpdateRecruitmentInput{RequesterID: ownerID, Title: strPtr("New")},
			wantErr: ErrRecruitmentNotFound,
		},
		{
			name: "non-owner",
			setup: func(store *fakeStore) int64 {
				return activeRecruitment(store, ownerID, 4).ID
			},
			input:   UpdateRecruitmentInput{RequesterID: 2, Title: strPtr("New")},
			wantErr: ErrNotOwner,
		},
		{
			name: "terminal recruitment",
			setup: func(store *fakeStore) int64 {
				rec := activeRecruitment(store, ownerID, 4)
				rec.Status = model.StatusCancelled
				return rec.ID
			},
			input:   UpdateRecruitmentInput{RequesterID: ownerID, Title: strPtr("New")},
			wantErr: ErrRecruitmentClosed,
		},
		{
			name: "blank title",
			setup: func(store *fakeStore) int64 {
				return activeRecruitment(store, ownerID, 4).ID
			},
			input:   UpdateRecruitmentInput{RequesterID: ownerID, Title: strPtr("  ")},
			wantErr: ErrBlankTitle,
		},
		{
			name: "owner edits title",
			setup: func(store *fakeStore) int64 {
				return activeRecruitment(store, ownerID, 4).ID
			},
			input:   UpdateRecruitmentInput{RequesterID: ownerID, Title: strPtr("New title")},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewRecruitmentService(store, nil, nil)

			tt.input.ID = tt.setup(store)

			got, err := svc.Update(context.Background(), tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Update() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && tt.input.Title != nil && got.Title != strings.TrimSpace(*tt.input.Title) {
				t.Errorf("title = %q, want %q", got.Title, *tt.input.Title)
			}
		})
	}
}

func TestUpdateKeepsUnsetFields(t *testing.T) {
	store := newFakeStore()
	svc := NewRecruitmentService(store, nil, nil)

	rec := store.seed(&model.Recruitment{
		Title:       "Ride group",
		Description: "Meet at the gate",
		OwnerID:     1,
		Capacity:    4,
		Status:      model.StatusActive,
	})

	got, err := svc.Update(context.Background(), UpdateRecruitmentInput{
		ID:          rec.ID,
		RequesterID: 1,
		Title:       strPtr("New title"),
	})
	if err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	if got.Description != "Meet at the gate" {
		t.Errorf("description = %q, want unchanged", got.Description)
	}
}

func TestTransitions(t *testing.T) {
	ownerID := int64(1)

	tests := []struct {
		name       string
		from       model.RecruitmentStatus
		requester  int64
		transition func(svc *RecruitmentService, id int64) (*model.Recruitment, error)
		wantErr    error
		wantStatus model.RecruitmentStatus
	}{
		{
			name:      "owner cancels active",
			from:      model.StatusActive,
			requester: ownerID,
			transition: func(svc *RecruitmentService, id int64) (*model.Recruitment, error) {
				return svc.Cancel(context.Background(), id, ownerID, "rain")
			},
			wantStatus: model.StatusCancelled,
		},
		{
			name:      "owner completes active",
			from:      model.StatusActive,
			requester: ownerID,
			transition: func(svc *RecruitmentService, id int64) (*model.Recruitment, error) {
				return svc.Complete(context.Background(), id, ownerID, "")
			},
			wantStatus: model.StatusCompleted,
		},
		{
			name: "non-owner cancels",
			from: model.StatusActive,
			transition: func(svc *RecruitmentService, id int64) (*model.Recruitment, error) {
				return svc.Cancel(context.Background(), id, 2, "")
			},
			wantErr: ErrNotOwner,
		},
		{
			name: "cancel already cancelled",
			from: model.StatusCancelled,
			transition: func(svc *RecruitmentService, id int64) (*model.Recruitment, error) {
				return svc.Cancel(context.Background(), id, ownerID, "")
			},
			wantErr: ErrRecruitmentClosed,
		},
		{
			name: "complete after cancel",
			from: model.StatusCancelled,
			transition: func(svc *RecruitmentService, id int64) (*model.Recruitment, error) {
				return svc.Complete(context.Background(), id, ownerID, "")
			},
			wantErr: ErrRecruitmentClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			pub := &fakePublisher{}
			svc := NewRecruitmentService(store, pub, nil)

			rec := activeRecruitment(store, ownerID, 4)
			store.recs[rec.ID].Status = tt.from

			got, err := tt.transition(svc, rec.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("transition error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(pub.status) != 0 {
					t.Errorf("published status events on refused transition: %v", pub.status)
				}
				return
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if len(pub.status) != 1 || pub.status[0] != string(tt.wantStatus) {
				t.Errorf("published status events = %v, want [%s]", pub.status, tt.wantStatus)
			}
		})
	}
}

func TestCancelFreezesParticipants(t *testing.T) {
	store := newFakeStore()
	rsvc := NewRecruitmentService(store, nil, nil)
	psvc := NewParticipationService(store, nil, nil)

	rec := activeRecruitment(store, 1, 4)
	if _, err := psvc.Join(context.Background(), rec.ID, 2); err != nil {
		t.Fatalf("join: %v", err)
	}

	got, err := rsvc.Cancel(context.Background(), rec.ID, 1, "no longer going")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(got.Participants) != 1 {
		t.Errorf("participants = %d, want frozen at 1", len(got.Participants))
	}

	if _, err := psvc.Join(context.Background(), rec.ID, 3); !errors.Is(err, ErrRecruitmentClosed) {
		t.Errorf("join after cancel error = %v, want ErrRecruitmentClosed", err)
	}
	if _, err := psvc.Leave(context.Background(), rec.ID, 2); !errors.Is(err, ErrRecruitmentClosed) {
		t.Errorf("leave after cancel error = %v, want ErrRecruitmentClosed", err)
	}
}

func TestDelete(t *testing.T) {
	store := newFakeStore()
	svc := NewRecruitmentService(store, nil, nil)

	rec := activeRecruitment(store, 1, 4)

	if err := svc.Delete(context.Background(), rec.ID, 2); !errors.Is(err, ErrNotOwner) {
		t.Errorf("non-owner delete error = %v, want ErrNotOwner", err)
	}

	if err := svc.Delete(context.Background(), rec.ID, 1); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	if _, err := svc.FindByID(context.Background(), rec.ID); !errors.Is(err, ErrRecruitmentNotFound) {
		t.Errorf("find after delete error = %v, want ErrRecruitmentNotFound", err)
	}
}

func TestQueries(t *testing.T) {
	store := newFakeStore()
	svc := NewRecruitmentService(store, nil, nil)
	ctx := context.Background()

	attraction := int64(7)
	active := store.seed(&model.Recruitment{Title: "One", OwnerID: 1, AttractionID: &attraction, Capacity: 4, Status: model.StatusActive})
	done := store.seed(&model.Recruitment{Title: "Two", OwnerID: 2, Capacity: 4, Status: model.StatusCompleted})
	done.Participants = []model.Participant{{UserID: 3, JoinedAt: time.Now()}}

	all, err := svc.FindAll(ctx)
	if err != nil || len(all) != 2 {
		t.Errorf("FindAll() = %d recruitments, err %v, want 2", len(all), err)
	}

	actives, err := svc.FindActive(ctx)
	if err != nil || len(actives) != 1 || actives[0].ID != active.ID {
		t.Errorf("FindActive() = %+v, err %v, want only the active one", actives, err)
	}

	owned, err := svc.FindByOwner(ctx, 2)
	if err != nil || len(owned) != 1 || owned[0].ID != done.ID {
		t.Errorf("FindByOwner(2) = %+v, err %v", owned, err)
	}

	joined, err := svc.FindByParticipant(ctx, 3)
	if err != nil || len(joined) != 1 || joined[0].ID != done.ID {
		t.Errorf("FindByParticipant(3) = %+v, err %v", joined, err)
	}

	byAttr, err := svc.FindByAttraction(ctx, attraction)
	if err != nil || len(byAttr) != 1 || byAttr[0].ID != active.ID {
		t.Errorf("FindByAttraction(%d) = %+v, err %v", attraction, byAttr, err)
	}
}
