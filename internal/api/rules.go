package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sysprohq/automation/internal/condition"
	"github.com/sysprohq/automation/internal/engine"
	"github.com/sysprohq/automation/internal/models"
)

// RuleHandler serves rule CRUD and simulation endpoints.
type RuleHandler struct {
	rules RuleService
	log   *logrus.Logger
}

// NewRuleHandler creates a RuleHandler with the given service and logger.
func NewRuleHandler(rules RuleService, log *logrus.Logger) *RuleHandler {
	return &RuleHandler{rules: rules, log: log}
}

// List handles GET /api/rules.
func (h *RuleHandler) List(c *gin.Context) {
	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	rules, err := h.rules.List(c.Request.Context(), tenantSlug)
	if err != nil {
		h.log.WithError(err).Error("listing rules")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// Get handles GET /api/rules/:id.
func (h *RuleHandler) Get(c *gin.Context) {
	ruleID := c.Param("id")
	if err := validatePathID(ruleID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	rule, err := h.rules.Get(c.Request.Context(), tenantSlug, ruleID)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "rule not found")

			return
		}

		h.log.WithError(err).Error("getting rule")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, rule)
}

// Create handles POST /api/rules.
func (h *RuleHandler) Create(c *gin.Context) {
	var req models.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	// Reject condition documents the evaluator cannot parse; a rule with a
	// malformed condition would never match.
	if _, err := condition.Parse(req.Condition); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, "condition: "+err.Error())

		return
	}

	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), tenantSlug, req)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateKey) {
			respondError(c, http.StatusConflict, ErrCodeConflict, "rule already exists")

			return
		}

		h.log.WithError(err).Error("creating rule")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{"action": "rule.create", "tenant_slug": tenantSlug, "rule_id": rule.ID}).Info("audit")

	c.JSON(http.StatusCreated, rule)
}

// Update handles PATCH /api/rules/:id.
func (h *RuleHandler) Update(c *gin.Context) {
	ruleID := c.Param("id")
	if err := validatePathID(ruleID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	var req models.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	if len(req.Condition) > 0 {
		if _, err := condition.Parse(req.Condition); err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, "condition: "+err.Error())

			return
		}
	}

	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	rule, err := h.rules.Update(c.Request.Context(), tenantSlug, ruleID, req)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "rule not found")

			return
		}

		h.log.WithError(err).Error("updating rule")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{"action": "rule.update", "tenant_slug": tenantSlug, "rule_id": rule.ID, "version": rule.Version}).Info("audit")

	c.JSON(http.StatusOK, rule)
}

// Delete handles DELETE /api/rules/:id.
func (h *RuleHandler) Delete(c *gin.Context) {
	ruleID := c.Param("id")
	if err := validatePathID(ruleID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	if err := h.rules.Delete(c.Request.Context(), tenantSlug, ruleID); err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "rule not found")

			return
		}

		h.log.WithError(err).Error("deleting rule")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{"action": "rule.delete", "tenant_slug": tenantSlug, "rule_id": ruleID}).Info("audit")

	c.Status(http.StatusNoContent)
}

// simulateRequest is the payload for POST /api/rules/simulate: a rule
// document (inline or by id) plus a sample event.
type simulateRequest struct {
	RuleID string          `json:"ruleId"`
	Rule   json.RawMessage `json:"rule"`
	Event  struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
		Actor   string         `json:"actor"`
	} `json:"event"`
}

// Simulate handles POST /api/rules/simulate. Pure dry run: nothing is
// persisted and nothing is enqueued.
func (h *RuleHandler) Simulate(c *gin.Context) {
	var req simulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	tenantSlug := getTenantSlug(c)
	if tenantSlug == "" {
		return
	}

	rule, err := h.resolveSimulationRule(c, tenantSlug, req)
	if err != nil {
		return // response already written
	}

	outcome := engine.Simulate(*rule, engine.Event{
		TenantSlug: tenantSlug,
		Type:       req.Event.Type,
		Payload:    req.Event.Payload,
		Actor:      req.Event.Actor,
	})

	c.JSON(http.StatusOK, outcome)
}

// resolveSimulationRule loads the rule by id or decodes the inline document.
// On failure it writes the error response and returns a non-nil error.
func (h *RuleHandler) resolveSimulationRule(c *gin.Context, tenantSlug string, req simulateRequest) (*models.Rule, error) {
	if req.RuleID != "" {
		rule, err := h.rules.Get(c.Request.Context(), tenantSlug, req.RuleID)
		if err != nil {
			if errors.Is(err, models.ErrRuleNotFound) {
				respondError(c, http.StatusNotFound, ErrCodeNotFound, "rule not found")
			} else {
				h.log.WithError(err).Error("loading rule for simulation")
				respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
			}
			return nil, err
		}
		return rule, nil
	}

	if len(req.Rule) == 0 {
		err := errors.New("either ruleId or rule is required")
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		return nil, err
	}

	// Inline rules simulate as enabled unless the document says otherwise.
	rule := models.Rule{ID: "inline", Enabled: true}
	if err := json.Unmarshal(req.Rule, &rule); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid rule document")
		return nil, err
	}
	return &rule, nil
}
