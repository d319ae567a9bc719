package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/queueup/queueup/internal/auth"
	"github.com/queueup/queueup/internal/handler/dto"
	"github.com/queueup/queueup/internal/middleware"
	"github.com/queueup/queueup/internal/model"
	"github.com/queueup/queueup/internal/service"
)

// RecruitmentHandler handles HTTP requests for recruitment operations.
type RecruitmentHandler struct {
	svc           *service.RecruitmentService
	participation *service.ParticipationService
	logger        *slog.Logger
}

// NewRecruitmentHandler creates a new RecruitmentHandler.
func NewRecruitmentHandler(svc *service.RecruitmentService, participation *service.ParticipationService, logger *slog.Logger) *RecruitmentHandler {
	return &RecruitmentHandler{
		svc:           svc,
		participation: participation,
		logger:        logger,
	}
}

// Create handles POST /api/v1/recruitments.
func (h *RecruitmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRecruitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	input := service.CreateRecruitmentInput{
		Title:        req.Title,
		Description:  req.Description,
		OwnerID:      auth.UserIDFromContext(r.Context()),
		AttractionID: req.AttractionID,
		Capacity:     req.Capacity,
		ExpiresAt:    req.ExpiresAt,
	}

	rec, err := h.svc.Create(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("recruitment_created",
		"recruitment_id", rec.ID,
		"owner_id", rec.OwnerID,
		"capacity", rec.Capacity,
	)

	writeJSON(w, http.StatusCreated, dto.ToRecruitmentResponse(rec))
}

// Get handles GET /api/v1/recruitments/{id}.
func (h *RecruitmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recruitmentID(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.FindByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecruitmentResponse(rec))
}

// List handles GET /api/v1/recruitments.
func (h *RecruitmentHandler) List(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.FindAll(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecruitmentListResponse(recs))
}

// ListActive handles GET /api/v1/recruitments/active.
func (h *RecruitmentHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.FindActive(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecruitmentListResponse(recs))
}

// ListMine handles GET /api/v1/recruitments/my.
func (h *RecruitmentHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.FindByOwner(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecruitmentListResponse(recs))
}

// ListParticipating handles GET /api/v1/recruitments/participating.
func (h *RecruitmentHandler) ListParticipating(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.FindByParticipant(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecruitmentListResponse(recs))
}

// ListByAttraction handles GET /api/v1/recruitments/attraction/{attractionId}.
func (h *RecruitmentHandler) ListByAttraction(w http.ResponseWriter, r *http.Request) {
	attractionID, err := strconv.ParseInt(chi.URLParam(r, "attractionId"), 10, 64)
	if err != nil || attractionID <= 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "Attraction ID must be a positive integer")
		return
	}

	recs, err := h.svc.FindByAttraction(r.Context(), attractionID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecruitmentListResponse(recs))
}

// Update handles PATCH /api/v1/recruitments/{id}.
func (h *RecruitmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recruitmentID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateRecruitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	rec, err := h.svc.Update(r.Context(), service.UpdateRecruitmentInput{
		ID:          id,
		RequesterID: auth.UserIDFromContext(r.Context()),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("recruitment_updated", "recruitment_id", rec.ID)

	writeJSON(w, http.StatusOK, dto.ToRecruitmentResponse(rec))
}

// Delete handles DELETE /api/v1/recruitments/{id}.
func (h *RecruitmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recruitmentID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id, auth.UserIDFromContext(r.Context())); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("recruitment_deleted", "recruitment_id", id)

	w.WriteHeader(http.StatusNoContent)
}

// Cancel handles POST /api/v1/recruitments/{id}/cancel.
func (h *RecruitmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.svc.Cancel, "recruitment_cancelled")
}

// Complete handles POST /api/v1/recruitments/{id}/complete.
func (h *RecruitmentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.svc.Complete, "recruitment_completed")
}

// Join handles POST /api/v1/recruitments/{id}/join.
func (h *RecruitmentHandler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recruitmentID(w, r)
	if !ok {
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	rec, err := h.participation.Join(r.Context(), id, userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("participant_joined",
		"recruitment_id", id,
		"user_id", userID,
		"current_participants", len(rec.Participants),
	)

	writeJSON(w, http.StatusOK, dto.ToRecruitmentResponse(rec))
}

// Leave handles POST /api/v1/recruitments/{id}/leave.
func (h *RecruitmentHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recruitmentID(w, r)
	if !ok {
		return
	}

	userID := auth.UserIDFromContext(r.Context())
	rec, err := h.participation.Leave(r.Context(), id, userID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("participant_left",
		"recruitment_id", id,
		"user_id", userID,
		"current_participants", len(rec.Participants),
	)

	writeJSON(w, http.StatusOK, dto.ToRecruitmentResponse(rec))
}

type statusChangeFunc func(ctx context.Context, id, requesterID int64, reason string) (*model.Recruitment, error)

func (h *RecruitmentHandler) changeStatus(w http.ResponseWriter, r *http.Request, change statusChangeFunc, logEvent string) {
	id, ok := h.recruitmentID(w, r)
	if !ok {
		return
	}

	// Body is optional for status changes.
	var req dto.StatusChangeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := middleware.ValidateReason(req.Reason); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REASON", "Reason is too long or contains invalid characters")
		return
	}

	rec, err := change(r.Context(), id, auth.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info(logEvent, "recruitment_id", rec.ID, "status", rec.Status)

	writeJSON(w, http.StatusOK, dto.ToRecruitmentResponse(rec))
}

// recruitmentID parses the {id} path parameter.
func (h *RecruitmentHandler) recruitmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "INVALID_ID", "Recruitment ID must be a positive integer")
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses.
func (h *RecruitmentHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRecruitmentNotFound):
		h.writeError(w, http.StatusNotFound, "NOT_FOUND", "Recruitment not found")
	case errors.Is(err, service.ErrNotOwner):
		h.writeError(w, http.StatusForbidden, "FORBIDDEN", "Only the owner may perform this action")
	case errors.Is(err, service.ErrRecruitmentClosed):
		h.writeError(w, http.StatusConflict, "STATE_CONFLICT", "Recruitment is not active")
	case errors.Is(err, service.ErrRecruitmentFull):
		h.writeError(w, http.StatusConflict, "CAPACITY_EXCEEDED", "Recruitment is full")
	case errors.Is(err, service.ErrAlreadyParticipating):
		h.writeError(w, http.StatusConflict, "ALREADY_PARTICIPATING", "User has already joined this recruitment")
	case errors.Is(err, service.ErrNotParticipating):
		h.writeError(w, http.StatusConflict, "NOT_PARTICIPATING", "User has not joined this recruitment")
	case errors.Is(err, service.ErrSelfJoin):
		h.writeError(w, http.StatusConflict, "SELF_JOIN_FORBIDDEN", "Owner cannot join own recruitment")
	case errors.Is(err, service.ErrConflict):
		h.writeError(w, http.StatusConflict, "CONFLICT", "Recruitment changed concurrently, please retry")
	case errors.Is(err, service.ErrBlankTitle):
		h.writeError(w, http.StatusBadRequest, "BLANK_TITLE", "Title must not be blank")
	case errors.Is(err, service.ErrTitleTooLong):
		h.writeError(w, http.StatusBadRequest, "TITLE_TOO_LONG", "Title exceeds maximum length")
	case errors.Is(err, service.ErrDescriptionTooLong):
		h.writeError(w, http.StatusBadRequest, "DESCRIPTION_TOO_LONG", "Description exceeds maximum length")
	case errors.Is(err, middleware.ErrTextInvalidUTF8), errors.Is(err, middleware.ErrTextControlChars):
		h.writeError(w, http.StatusBadRequest, "INVALID_TEXT", "Text contains invalid characters")
	case errors.Is(err, service.ErrInvalidCapacity):
		h.writeError(w, http.StatusBadRequest, "INVALID_CAPACITY", "Capacity must be between 2 and 8")
	case errors.Is(err, service.ErrExpiresInPast):
		h.writeError(w, http.StatusUnprocessableEntity, "EXPIRES_IN_PAST", "Expiry date must be in the future")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *RecruitmentHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
