package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"warbler/internal/httputil"
	"warbler/internal/metrics"
	"warbler/internal/model"
	"warbler/internal/service"
	"warbler/internal/transport/http/middleware"
)

// APIHandler serves the JSON endpoints used by bearer-token clients.
type APIHandler struct {
	timeline *service.TimelineService
	messages *service.MessageService
	metrics  *metrics.Metrics
}

func NewAPIHandler(timeline *service.TimelineService, messages *service.MessageService, m *metrics.Metrics) *APIHandler {
	return &APIHandler{
		timeline: timeline,
		messages: messages,
		metrics:  m,
	}
}

type createMessageRequest struct {
	Text string `json:"text"`
}

type timelineResponse struct {
	Messages []model.Message `json:"messages"`
}

// Timeline returns the current user's home timeline.
// GET /api/timeline
func (h *APIHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())

	messages, err := h.timeline.Home(r.Context(), actor.ID)
	if err != nil {
		log.Printf("[APIHandler] Timeline user=%d: %v", actor.ID, err)
		httputil.WriteInternalError(w, "Failed to load timeline")
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}

	httputil.WriteJSON(w, http.StatusOK, timelineResponse{Messages: messages})
}

// CreateMessage posts a message as the current user.
// POST /api/messages
func (h *APIHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	actor := middleware.UserFromContext(r.Context())

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	msg, err := h.messages.Create(r.Context(), actor.ID, req.Text)
	if err != nil {
		if errors.Is(err, model.ErrValidation) {
			httputil.WriteValidationError(w, err.Error())
			return
		}
		log.Printf("[APIHandler] CreateMessage user=%d: %v", actor.ID, err)
		httputil.WriteInternalError(w, "Failed to create message")
		return
	}

	h.metrics.MessagesCreated.Inc()
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// GetMessage returns one message.
// GET /api/messages/{id}
func (h *APIHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	messageID, ok := idParam(r, "id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid message ID")
		return
	}

	msg, err := h.messages.Get(r.Context(), messageID)
	if err != nil {
		if errors.Is(err, model.ErrMessageNotFound) {
			httputil.WriteNotFound(w, "Message not found")
			return
		}
		log.Printf("[APIHandler] GetMessage id=%d: %v", messageID, err)
		httputil.WriteInternalError(w, "Failed to get message")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, msg)
}
