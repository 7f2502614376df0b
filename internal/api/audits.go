package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/models"
)

// AuditHandler serves the rule evaluation trail.
type AuditHandler struct {
	audits AuditService
	log    *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audits AuditService, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{audits: audits, log: log}
}

// List handles GET /api/audits.
func (h *AuditHandler) List(c *gin.Context) {
	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	opts := models.AuditQueryOpts{
		RuleID: c.Query("rule_id"),
		Limit:  parseInt(c.DefaultQuery("limit", "50"), 50),
		Offset: parseOffset(c.DefaultQuery("offset", "0")),
	}
	if raw := c.Query("matched"); raw != "" {
		matched, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "matched must be true or false")

			return
		}
		opts.Matched = &matched
	}

	entries, hasMore, err := h.audits.List(c.Request.Context(), tenantSlug, opts)
	if err != nil {
		h.log.WithError(err).Error("listing rule audits")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": entries, "has_more": hasMore})
}
