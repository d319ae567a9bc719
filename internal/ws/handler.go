package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/queueup/queueup/internal/auth"
	"github.com/queueup/queueup/internal/event"
	"github.com/queueup/queueup/internal/model"
	"github.com/queueup/queueup/internal/service"
)

// maxDecodeErrors bounds tolerance for malformed frames before the
// connection is dropped.
const maxDecodeErrors = 3

// Participator is the slice of the participation service the WebSocket
// layer needs.
type Participator interface {
	Join(ctx context.Context, recruitmentID, userID int64) (*model.Recruitment, error)
	Leave(ctx context.Context, recruitmentID, userID int64) (*model.Recruitment, error)
}

// Finder resolves a recruitment for status query frames.
type Finder interface {
	FindByID(ctx context.Context, recruitmentID int64) (*model.Recruitment, error)
}

// frame is the inbound wire format. Outbound traffic is event.Envelope
// JSON relayed verbatim, plus ERROR envelopes unicast to the requester.
type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type recruitmentPayload struct {
	RecruitmentID int64 `json:"recruitmentId"`
}

// Handler upgrades connections and speaks the frame protocol. Identity
// comes from the auth middleware, same as the REST surface.
type Handler struct {
	hub           *Hub
	participation Participator
	finder        Finder
	logger        *slog.Logger
}

// NewHandler creates a new WebSocket Handler.
func NewHandler(hub *Hub, participation Participator, finder Finder, logger *slog.Logger) *Handler {
	return &Handler{
		hub:           hub,
		participation: participation,
		finder:        finder,
		logger:        logger.With("component", "ws.handler"),
	}
}

// ServeHTTP upgrades the request and runs the frame loop until the client
// disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serve).ServeHTTP(w, r)
}

func (h *Handler) serve(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := conn.Request().Context()
	userID := auth.UserIDFromContext(ctx)

	c := newClient()
	h.hub.register(c)
	defer h.hub.unregister(c)

	// Writer drains the hub queue. It owns the connection for writes so
	// broadcast and unicast frames never interleave mid-message.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for payload := range c.send {
			if _, err := conn.Write(payload); err != nil {
				return
			}
		}
	}()

	h.logger.Info("websocket connected", slog.Int64("user_id", userID))

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var f frame
		if err := decoder.Decode(&f); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			decodeErrors++
			h.sendError(c, 0, "INVALID_FRAME", "invalid frame payload")
			if decodeErrors >= maxDecodeErrors {
				break
			}
			continue
		}
		decodeErrors = 0

		h.dispatch(ctx, c, userID, f)
	}

	h.hub.unregister(c)
	<-done
	h.logger.Info("websocket disconnected", slog.Int64("user_id", userID))
}

func (h *Handler) dispatch(ctx context.Context, c *client, userID int64, f frame) {
	switch f.Type {
	case "subscribe":
		id, ok := h.recruitmentID(c, f)
		if !ok {
			return
		}
		h.hub.subscribe(c, event.RecruitmentChannel(id))
	case "unsubscribe":
		id, ok := h.recruitmentID(c, f)
		if !ok {
			return
		}
		h.hub.unsubscribe(c, event.RecruitmentChannel(id))
	case "subscribe_all":
		h.hub.subscribeGlobal(c)
	case "unsubscribe_all":
		h.hub.unsubscribeGlobal(c)
	case "join":
		id, ok := h.recruitmentID(c, f)
		if !ok {
			return
		}
		if _, err := h.participation.Join(ctx, id, userID); err != nil {
			h.sendError(c, id, errorCode(err), err.Error())
			return
		}
		// Joining implies interest in what happens next.
		h.hub.subscribe(c, event.RecruitmentChannel(id))
	case "leave":
		id, ok := h.recruitmentID(c, f)
		if !ok {
			return
		}
		if _, err := h.participation.Leave(ctx, id, userID); err != nil {
			h.sendError(c, id, errorCode(err), err.Error())
		}
	case "status":
		id, ok := h.recruitmentID(c, f)
		if !ok {
			return
		}
		rec, err := h.finder.FindByID(ctx, id)
		if err != nil {
			h.sendError(c, id, errorCode(err), err.Error())
			return
		}
		h.sendSnapshot(c, rec)
	default:
		h.sendError(c, 0, "UNSUPPORTED_TYPE", "unsupported frame type")
	}
}

// recruitmentID parses the shared payload shape. A missing or non-positive
// id gets an ERROR unicast with recruitmentId 0 since there is nothing to
// scope it to.
func (h *Handler) recruitmentID(c *client, f frame) (int64, bool) {
	var payload recruitmentPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil || payload.RecruitmentID <= 0 {
		h.sendError(c, 0, "INVALID_PAYLOAD", "recruitmentId is required")
		return 0, false
	}
	return payload.RecruitmentID, true
}

// sendSnapshot unicasts the current aggregate state to one client as a
// RECRUITMENT_UPDATED envelope.
func (h *Handler) sendSnapshot(c *client, rec *model.Recruitment) {
	env := event.NewEnvelope(event.TypeRecruitmentUpdated, rec.ID, event.SnapshotRecruitment(rec))
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to marshal snapshot envelope", slog.String("error", err.Error()))
		return
	}
	h.hub.send(c, payload)
}

// sendError unicasts an ERROR envelope to one client. Refusals never
// reach other subscribers.
func (h *Handler) sendError(c *client, recruitmentID int64, code, message string) {
	env := event.NewEnvelope(event.TypeError, recruitmentID, event.Error{
		Message: message,
		Code:    code,
	})
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to marshal error envelope", slog.String("error", err.Error()))
		return
	}
	h.hub.send(c, payload)
}

// errorCode maps service refusals to stable client-facing codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, service.ErrRecruitmentNotFound):
		return "NOT_FOUND"
	case errors.Is(err, service.ErrRecruitmentClosed):
		return "STATE_CONFLICT"
	case errors.Is(err, service.ErrRecruitmentFull):
		return "CAPACITY_EXCEEDED"
	case errors.Is(err, service.ErrAlreadyParticipating):
		return "ALREADY_PARTICIPATING"
	case errors.Is(err, service.ErrNotParticipating):
		return "NOT_PARTICIPATING"
	case errors.Is(err, service.ErrSelfJoin):
		return "SELF_JOIN_FORBIDDEN"
	case errors.Is(err, service.ErrConflict):
		return "STATE_CONFLICT"
	default:
		return "INTERNAL"
	}
}
