package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/models"
)

// ReportHandler runs saved reports and lists their jobs.
type ReportHandler struct {
	reports ReportService
	log     *logrus.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reports ReportService, log *logrus.Logger) *ReportHandler {
	return &ReportHandler{reports: reports, log: log}
}

type runReportRequest struct {
	Filters     map[string]any `json:"filters"`
	RequestedBy string         `json:"requestedBy"`
}

// Run handles POST /api/reports/:id/run: enqueues one job for the worker.
func (h *ReportHandler) Run(c *gin.Context) {
	reportID := c.Param("id")
	if err := validatePathID(reportID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	// Body is optional; an empty body runs with the report's saved filters.
	var req runReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

			return
		}
	}

	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	job, err := h.reports.EnqueueJob(c.Request.Context(), tenantSlug, reportID, req.RequestedBy, req.Filters)
	if err != nil {
		if errors.Is(err, models.ErrReportNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "report not found")

			return
		}

		h.log.WithError(err).Error("enqueueing report job")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":      "report.run",
		"tenant_slug": tenantSlug,
		"report_id":   reportID,
		"job_id":      job.ID,
	}).Info("audit")

	c.JSON(http.StatusAccepted, job)
}

// Jobs handles GET /api/reports/:id/jobs.
func (h *ReportHandler) Jobs(c *gin.Context) {
	reportID := c.Param("id")
	if err := validatePathID(reportID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	// Verify the report exists (and belongs to the tenant) so an unknown id
	// is a 404, not an empty list.
	if _, err := h.reports.GetReport(c.Request.Context(), tenantSlug, reportID); err != nil {
		if errors.Is(err, models.ErrReportNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "report not found")

			return
		}

		h.log.WithError(err).Error("loading report")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	limit := parseInt(c.DefaultQuery("limit", "50"), 50)

	jobs, err := h.reports.ListJobs(c.Request.Context(), tenantSlug, reportID, limit)
	if err != nil {
		h.log.WithError(err).Error("listing report jobs")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}
