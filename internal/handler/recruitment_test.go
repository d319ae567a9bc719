package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/queueup/queueup/internal/auth"
	"github.com/queueup/queueup/internal/handler/dto"
	"github.com/queueup/queueup/internal/model"
	"github.com/queueup/queueup/internal/repository"
	"github.com/queueup/queueup/internal/service"
)

// memStore is a minimal in-memory service.Store for handler tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]*model.Recruitment
}

func newMemStore() *memStore {
	return &memStore{nextID: 1, recs: make(map[int64]*model.Recruitment)}
}

func (s *memStore) seed(rec *model.Recruitment) *model.Recruitment {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	if rec.Version == 0 {
		rec.Version = 1
	}
	s.recs[rec.ID] = rec
	return rec
}

func (s *memStore) CreateRecruitment(_ context.Context, rec *model.Recruitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	rec.Version = 1
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	clone := *rec
	s.recs[rec.ID] = &clone
	return nil
}

func (s *memStore) GetRecruitmentByID(_ context.Context, id int64) (*model.Recruitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, repository.ErrRecruitmentNotFound
	}
	clone := *rec
	clone.Participants = append([]model.Participant(nil), rec.Participants...)
	return &clone, nil
}

func (s *memStore) AddParticipant(_ context.Context, recruitmentID, userID int64, joinedAt time.Time, expectedCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[recruitmentID]
	if !ok {
		return repository.ErrRecruitmentNotFound
	}
	if len(rec.Participants) != expectedCount || len(rec.Participants) >= rec.Capacity {
		return repository.ErrConcurrentModification
	}
	rec.Participants = append(rec.Participants, model.Participant{UserID: userID, JoinedAt: joinedAt})
	return nil
}

func (s *memStore) RemoveParticipant(_ context.Context, recruitmentID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[recruitmentID]
	if !ok {
		return repository.ErrRecruitmentNotFound
	}
	for i, p := range rec.Participants {
		if p.UserID == userID {
			rec.Participants = append(rec.Participants[:i], rec.Participants[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotJoined
}

func (s *memStore) UpdateRecruitmentStatus(_ context.Context, id int64, from, to model.RecruitmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return repository.ErrRecruitmentNotFound
	}
	if rec.Status != from {
		return repository.ErrConcurrentModification
	}
	rec.Status = to
	return nil
}

func (s *memStore) UpdateRecruitmentDetails(_ context.Context, id, version int64, title, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
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

func (s *memStore) DeleteRecruitment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return repository.ErrRecruitmentNotFound
	}
	delete(s.recs, id)
	return nil
}

func (s *memStore) ListRecruitments(_ context.Context, filter repository.RecruitmentFilter) ([]*model.Recruitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Recruitment{}
	for _, rec := range s.recs {
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
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

// newTestRouter mounts the recruitment routes with a fixed authenticated
// user, mirroring the production route layout.
func newTestRouter(store *memStore, userID int64) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewRecruitmentService(store, nil, nil)
	participation := service.NewParticipationService(store, nil, nil)
	h := NewRecruitmentHandler(svc, participation, logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := auth.ContextWithAuth(req.Context(), &model.AuthContext{UserID: userID})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/api/v1/recruitments", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/active", h.ListActive)
		r.Get("/my", h.ListMine)
		r.Get("/participating", h.ListParticipating)
		r.Get("/attraction/{attractionId}", h.ListByAttraction)
		r.Get("/{id}", h.Get)
		r.Post("/", h.Create)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/complete", h.Complete)
		r.Post("/{id}/join", h.Join)
		r.Post("/{id}/leave", h.Leave)
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeRecruitment(t *testing.T, rec *httptest.ResponseRecorder) dto.RecruitmentResponse {
	t.Helper()
	var resp dto.RecruitmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCreateRecruitment(t *testing.T) {
	router := newTestRouter(newMemStore(), 1)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recruitments", dto.CreateRecruitmentRequest{
		Title:    "Flying Dinosaur group",
		Capacity: 4,
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	resp := decodeRecruitment(t, rec)
	if resp.OwnerID != 1 || resp.Status != "ACTIVE" || resp.Capacity != 4 {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateRecruitmentValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     dto.CreateRecruitmentRequest
		wantCode string
	}{
		{"blank title", dto.CreateRecruitmentRequest{Title: " ", Capacity: 4}, "BLANK_TITLE"},
		{"capacity too small", dto.CreateRecruitmentRequest{Title: "Group", Capacity: 1}, "INVALID_CAPACITY"},
		{"capacity too large", dto.CreateRecruitmentRequest{Title: "Group", Capacity: 9}, "INVALID_CAPACITY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(newMemStore(), 1)

			rec := doJSON(t, router, http.MethodPost, "/api/v1/recruitments", tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var errResp dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", errResp.Code, tt.wantCode)
			}
		})
	}
}

func TestGetRecruitment(t *testing.T) {
	store := newMemStore()
	seeded := store.seed(&model.Recruitment{Title: "Group", OwnerID: 2, Capacity: 4, Status: model.StatusActive})
	router := newTestRouter(store, 1)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/recruitments/1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeRecruitment(t, rec)
	if resp.ID != seeded.ID {
		t.Errorf("id = %d, want %d", resp.ID, seeded.ID)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/recruitments/999", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing id status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/recruitments/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestJoinEndpoint(t *testing.T) {
	store := newMemStore()
	store.seed(&model.Recruitment{Title: "Group", OwnerID: 2, Capacity: 2, Status: model.StatusActive})
	router := newTestRouter(store, 1)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/join", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decodeRecruitment(t, rec)
	if resp.CurrentParticipants != 1 {
		t.Errorf("current_participants = %d, want 1", resp.CurrentParticipants)
	}

	// Second join from the same user conflicts.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/join", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate join status = %d, want 409", rec.Code)
	}
}

func TestJoinOwnRecruitment(t *testing.T) {
	store := newMemStore()
	store.seed(&model.Recruitment{Title: "Group", OwnerID: 1, Capacity: 2, Status: model.StatusActive})
	router := newTestRouter(store, 1)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/join", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var errResp dto.ErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&errResp)
	if errResp.Code != "SELF_JOIN_FORBIDDEN" {
		t.Errorf("code = %s, want SELF_JOIN_FORBIDDEN", errResp.Code)
	}
}

func TestJoinFullRecruitment(t *testing.T) {
	store := newMemStore()
	store.seed(&model.Recruitment{
		Title: "Group", OwnerID: 2, Capacity: 2, Status: model.StatusActive,
		Participants: []model.Participant{
			{UserID: 3, JoinedAt: time.Now()},
			{UserID: 4, JoinedAt: time.Now()},
		},
	})
	router := newTestRouter(store, 1)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/join", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var errResp dto.ErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&errResp)
	if errResp.Code != "CAPACITY_EXCEEDED" {
		t.Errorf("code = %s, want CAPACITY_EXCEEDED", errResp.Code)
	}
}

func TestLeaveEndpoint(t *testing.T) {
	store := newMemStore()
	store.seed(&model.Recruitment{
		Title: "Group", OwnerID: 2, Capacity: 2, Status: model.StatusActive,
		Participants: []model.Participant{{UserID: 1, JoinedAt: time.Now()}},
	})
	router := newTestRouter(store, 1)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/leave", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/leave", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("repeat leave status = %d, want 409", rec.Code)
	}
}

func TestCancelRequiresOwner(t *testing.T) {
	store := newMemStore()
	store.seed(&model.Recruitment{Title: "Group", OwnerID: 2, Capacity: 2, Status: model.StatusActive})
	router := newTestRouter(store, 1)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/cancel", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCancelAndCompleteConflicts(t *testing.T) {
	store := newMemStore()
	store.seed(&model.Recruitment{Title: "Group", OwnerID: 1, Capacity: 2, Status: model.StatusActive})
	router := newTestRouter(store, 1)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/cancel", dto.StatusChangeRequest{Reason: "rain"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decodeRecruitment(t, rec)
	if resp.Status != "CANCELLED" {
		t.Errorf("status = %s, want CANCELLED", resp.Status)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/recruitments/1/complete", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("complete after cancel status = %d, want 409", rec.Code)
	}
}

func TestUpdateRecruitment(t *testing.T) {
	store := newMemStore()
	store.seed(&model.Recruitment{Title: "Old", OwnerID: 1, Capacity: 2, Status: model.StatusActive})
	router := newTestRouter(store, 1)

	title := "New title"
	rec := doJSON(t, router, http.MethodPatch, "/api/v1/recruitments/1", dto.UpdateRecruitmentRequest{Title: &title})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decodeRecruitment(t, rec)
	if resp.Title != "New title" {
		t.Errorf("title = %q, want %q", resp.Title, "New title")
	}
}

func TestDeleteRecruitment(t *testing.T) {
	store := newMemStore()
	store.seed(&model.Recruitment{Title: "Group", OwnerID: 1, Capacity: 2, Status: model.StatusActive})
	router := newTestRouter(store, 1)

	rec := doJSON(t, router, http.MethodDelete, "/api/v1/recruitments/1", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/recruitments/1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestQueryEndpoints(t *testing.T) {
	store := newMemStore()
	attraction := int64(7)
	store.seed(&model.Recruitment{Title: "Mine", OwnerID: 1, AttractionID: &attraction, Capacity: 2, Status: model.StatusActive})
	store.seed(&model.Recruitment{
		Title: "Joined", OwnerID: 2, Capacity: 2, Status: model.StatusCompleted,
		Participants: []model.Participant{{UserID: 1, JoinedAt: time.Now()}},
	})
	router := newTestRouter(store, 1)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/recruitments", 2},
		{"/api/v1/recruitments/active", 1},
		{"/api/v1/recruitments/my", 1},
		{"/api/v1/recruitments/participating", 1},
		{"/api/v1/recruitments/attraction/7", 1},
		{"/api/v1/recruitments/attraction/8", 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodGet, tt.path, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			var resp dto.RecruitmentListResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode list: %v", err)
			}
			if len(resp.Data) != tt.want {
				t.Errorf("len(data) = %d, want %d", len(resp.Data), tt.want)
			}
		})
	}
}
