package automation

import (
	"context"
	"encoding/json"
	"log/slog"

	"chatbot-backend/internal/models"
	"chatbot-backend/internal/store"
)

// Trigger event types. The set is closed; workflows referencing anything
// else never fire. user_inactive, keyword_detected and sentiment_negative
// have no firing source in the inbound pipeline and are reachable through
// the manual trigger endpoint.
const (
	TriggerNewConversation     = "new_conversation"
	TriggerMessageReceived     = "message_received"
	TriggerConversationEnded   = "conversation_ended"
	TriggerEscalationRequested = "escalation_requested"
	TriggerUserInactive        = "user_inactive"
	TriggerKeywordDetected     = "keyword_detected"
	TriggerSentimentNegative   = "sentiment_negative"
)

// WorkflowResult summarizes one workflow's run within a trigger.
type WorkflowResult struct {
	WorkflowID    string         `json:"workflow_id"`
	WorkflowName  string         `json:"workflow_name"`
	Matched       bool           `json:"matched"`
	Status        string         `json:"status,omitempty"`
	ExecutionID   string         `json:"execution_id,omitempty"`
	ActionResults []ActionResult `json:"action_results,omitempty"`
}

// Engine matches trigger events against tenant workflows and runs their
// actions in order. Workflows are isolated from each other: one failing or
// panicking run never blocks the next.
type Engine struct {
	workflows  store.WorkflowStore
	executions store.ExecutionStore
	executor   *Executor
	logger     *slog.Logger
}

func NewEngine(workflows store.WorkflowStore, executions store.ExecutionStore, executor *Executor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		workflows:  workflows,
		executions: executions,
		executor:   executor,
		logger:     logger,
	}
}

// Trigger runs every active workflow of the tenant registered for the event.
// Returns one result per workflow whose conditions matched.
func (e *Engine) Trigger(ctx context.Context, triggerType, tenantID string, payload map[string]any) []WorkflowResult {
	wfs, err := e.workflows.ListActiveByTrigger(ctx, tenantID, triggerType)
	if err != nil {
		e.logger.Error("loading workflows failed", "tenant_id", tenantID, "trigger", triggerType, "error", err)
		return nil
	}

	var results []WorkflowResult
	for i := range wfs {
		result := e.runWorkflow(ctx, &wfs[i], triggerType, tenantID, payload)
		if result.Matched {
			results = append(results, result)
		}
	}
	return results
}

func (e *Engine) runWorkflow(ctx context.Context, wf *models.AutomationWorkflow, triggerType, tenantID string, payload map[string]any) (result WorkflowResult) {
	result = WorkflowResult{WorkflowID: wf.ID, WorkflowName: wf.Name}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("workflow run panicked", "workflow_id", wf.ID, "panic", r)
			result.Status = models.ExecutionFailed
		}
	}()

	var conds []Condition
	if wf.Conditions != "" {
		if err := json.Unmarshal([]byte(wf.Conditions), &conds); err != nil {
			e.logger.Warn("workflow has malformed conditions, skipping", "workflow_id", wf.ID, "error", err)
			return result
		}
	}
	if !EvaluateConditions(conds, payload) {
		return result
	}
	result.Matched = true

	var actions []Action
	if wf.Actions != "" {
		if err := json.Unmarshal([]byte(wf.Actions), &actions); err != nil {
			e.logger.Warn("workflow has malformed actions", "workflow_id", wf.ID, "error", err)
			result.Status = models.ExecutionFailed
			return result
		}
	}

	payloadJSON, _ := json.Marshal(payload)
	exec := &models.AutomationExecution{
		TenantID:     tenantID,
		WorkflowID:   wf.ID,
		TriggerEvent: triggerType,
		Payload:      string(payloadJSON),
		Status:       models.ExecutionPending,
	}
	if err := e.executions.Create(ctx, exec); err != nil {
		e.logger.Error("creating execution record failed", "workflow_id", wf.ID, "error", err)
	}
	result.ExecutionID = exec.ID

	allOK := true
	for _, action := range actions {
		actionResult := e.executor.Execute(ctx, tenantID, action, payload)
		result.ActionResults = append(result.ActionResults, actionResult)
		if !actionResult.Success {
			allOK = false
			e.logger.Warn("workflow action failed",
				"workflow_id", wf.ID, "action", action.Type, "error", actionResult.Error)
			if wf.StopOnFailure {
				break
			}
		}
	}

	status := models.ExecutionSuccess
	if !allOK {
		status = models.ExecutionFailed
	}
	result.Status = status

	resultsJSON, _ := json.Marshal(result.ActionResults)
	if exec.ID != "" {
		if err := e.executions.Finalize(ctx, exec.ID, status, string(resultsJSON)); err != nil {
			e.logger.Error("finalizing execution failed", "execution_id", exec.ID, "error", err)
		}
	}
	return result
}
