package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"chatbot-backend/internal/automation"
	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"

	"github.com/gin-gonic/gin"
)

// AutomationHandler serves workflow CRUD, execution history and manual
// triggering.
type AutomationHandler struct {
	workflows  store.WorkflowStore
	executions store.ExecutionStore
	engine     *automation.Engine
	logger     *slog.Logger
}

func NewAutomationHandler(
	workflows store.WorkflowStore,
	executions store.ExecutionStore,
	engine *automation.Engine,
	logger *slog.Logger,
) *AutomationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutomationHandler{
		workflows:  workflows,
		executions: executions,
		engine:     engine,
		logger:     logger,
	}
}

type workflowRequest struct {
	Name          string                 `json:"name" binding:"required"`
	Description   string                 `json:"description"`
	ChatbotID     string                 `json:"chatbot_id"`
	TriggerType   string                 `json:"trigger_type" binding:"required"`
	Conditions    []automation.Condition `json:"conditions"`
	Actions       []automation.Action    `json:"actions" binding:"required"`
	StopOnFailure bool                   `json:"stop_on_failure"`
	IsActive      *bool                  `json:"is_active"`
}

func (r *workflowRequest) toModel(tenant string) (*models.AutomationWorkflow, error) {
	conds, err := json.Marshal(r.Conditions)
	if err != nil {
		return nil, err
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return nil, err
	}
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &models.AutomationWorkflow{
		TenantID:      tenant,
		ChatbotID:     r.ChatbotID,
		Name:          r.Name,
		Description:   r.Description,
		TriggerType:   r.TriggerType,
		Conditions:    string(conds),
		Actions:       string(actions),
		StopOnFailure: r.StopOnFailure,
		IsActive:      active,
	}, nil
}

// Create adds a workflow.
func (h *AutomationHandler) Create(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wf, err := req.toModel(tenantID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.workflows.Create(c.Request.Context(), wf); err != nil {
		h.logger.Error("workflow creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, wf)
}

// List returns all of the tenant's workflows.
func (h *AutomationHandler) List(c *gin.Context) {
	wfs, err := h.workflows.List(c.Request.Context(), tenantID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": wfs})
}

// Get returns one workflow.
func (h *AutomationHandler) Get(c *gin.Context) {
	wf, err := h.workflows.GetByID(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, wf)
}

// Update replaces a workflow's definition.
func (h *AutomationHandler) Update(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenant := tenantID(c)
	existing, err := h.workflows.GetByID(c.Request.Context(), tenant, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	updated, err := req.toModel(tenant)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	if err := h.workflows.Update(c.Request.Context(), updated); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete removes a workflow.
func (h *AutomationHandler) Delete(c *gin.Context) {
	if err := h.workflows.Delete(c.Request.Context(), tenantID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type toggleRequest struct {
	IsActive bool `json:"is_active"`
}

// Toggle activates or deactivates a workflow.
func (h *AutomationHandler) Toggle(c *gin.Context) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.workflows.SetActive(c.Request.Context(), tenantID(c), c.Param("id"), req.IsActive)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "workflow not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_active": req.IsActive})
}

// Executions returns recent workflow runs, optionally filtered by workflow.
func (h *AutomationHandler) Executions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	execs, err := h.executions.List(c.Request.Context(), tenantID(c), c.Query("workflow_id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": execs})
}

// Templates returns the built-in workflow template catalogue.
func (h *AutomationHandler) Templates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": automation.WorkflowTemplates()})
}

type triggerRequest struct {
	TriggerType string         `json:"trigger_type" binding:"required"`
	Payload     map[string]any `json:"payload"`
}

// Trigger fires an event manually, mainly for testing workflows.
func (h *AutomationHandler) Trigger(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
	}

	results := h.engine.Trigger(c.Request.Context(), req.TriggerType, tenantID(c), req.Payload)
	c.JSON(http.StatusOK, gin.H{"results": results})
}
