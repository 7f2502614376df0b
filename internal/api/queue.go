package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QueueHandler exposes a manual one-pass worker trigger.
type QueueHandler struct {
	processor QueueProcessor
	log       *logrus.Logger
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(processor QueueProcessor, log *logrus.Logger) *QueueHandler {
	return &QueueHandler{processor: processor, log: log}
}

// Process handles POST /api/queue/process: one claim/execute/record pass
// over both queues, returning the pass summary. Per-item failures are
// recorded in the summary, not surfaced as an HTTP error.
func (h *QueueHandler) Process(c *gin.Context) {
	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	summary, err := h.processor.RunOnce(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("manual queue pass")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":      "queue.process",
		"tenant_slug": tenantSlug,
		"failed":      summary.TotalFailed(),
	}).Info("audit")

	c.JSON(http.StatusOK, summary)
}
