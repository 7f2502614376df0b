package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/models"
)

// SummaryHandler aggregates rule, queue, and audit counts for the tenant
// dashboard.
type SummaryHandler struct {
	rules  RuleService
	queue  QueueService
	audits AuditService
	log    *logrus.Logger
}

// NewSummaryHandler creates a SummaryHandler.
func NewSummaryHandler(rules RuleService, queue QueueService, audits AuditService, log *logrus.Logger) *SummaryHandler {
	return &SummaryHandler{rules: rules, queue: queue, audits: audits, log: log}
}

type summaryResponse struct {
	Rules struct {
		Total   int `json:"total"`
		Enabled int `json:"enabled"`
	} `json:"rules"`
	Queue  models.QueueCounts `json:"queue"`
	Audits models.AuditCounts `json:"audits"`
}

// Get handles GET /api/summary.
func (h *SummaryHandler) Get(c *gin.Context) {
	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}
	ctx := c.Request.Context()

	var resp summaryResponse

	total, enabled, err := h.rules.Count(ctx, tenantSlug)
	if err != nil {
		h.log.WithError(err).Error("counting rules")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}
	resp.Rules.Total = total
	resp.Rules.Enabled = enabled

	if resp.Queue, err = h.queue.CountByStatus(ctx, tenantSlug); err != nil {
		h.log.WithError(err).Error("counting queue items")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	if resp.Audits, err = h.audits.Counts(ctx, tenantSlug); err != nil {
		h.log.WithError(err).Error("counting rule audits")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, resp)
}
