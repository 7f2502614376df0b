package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/engine"
)

// EventHandler ingests domain events and dispatches them to the rule engine.
type EventHandler struct {
	dispatcher EventDispatcher
	log        *logrus.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(dispatcher EventDispatcher, log *logrus.Logger) *EventHandler {
	return &EventHandler{dispatcher: dispatcher, log: log}
}

type eventRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	Actor   string         `json:"actor"`
}

// Ingest handles POST /api/events. The tenant comes from the API key, never
// from the request body.
func (h *EventHandler) Ingest(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if strings.TrimSpace(req.Type) == "" {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, "type is required")

		return
	}

	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	result, err := h.dispatcher.HandleEvent(c.Request.Context(), engine.Event{
		TenantSlug: tenantSlug,
		Type:       req.Type,
		Payload:    req.Payload,
		Actor:      req.Actor,
	})
	if err != nil {
		h.log.WithError(err).Error("dispatching event")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":      "event.ingest",
		"tenant_slug": tenantSlug,
		"event_type":  req.Type,
		"matched":     result.Matched,
		"enqueued":    result.Enqueued,
	}).Info("audit")

	c.JSON(http.StatusOK, result)
}
