package automation

// WorkflowTemplate is a ready-made workflow definition tenants can start
// from.
type WorkflowTemplate struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	TriggerType string      `json:"trigger_type"`
	Conditions  []Condition `json:"conditions"`
	Actions     []Action    `json:"actions"`
}

// WorkflowTemplates returns the built-in template catalogue.
func WorkflowTemplates() []WorkflowTemplate {
	return []WorkflowTemplate{
		{
			Name:        "Welcome Message",
			Description: "Greet users when they start a new conversation",
			TriggerType: TriggerNewConversation,
			Actions: []Action{
				{Type: ActionCustomResponse, Config: map[string]any{
					"response": "Welcome {user_name}! Thanks for reaching out. How can we help you today?",
				}},
			},
		},
		{
			Name:        "Escalation Alert",
			Description: "Notify the team on Slack when a conversation is escalated",
			TriggerType: TriggerEscalationRequested,
			Actions: []Action{
				{Type: ActionSlack, Config: map[string]any{
					"webhook_url": "",
					"message":     "Conversation {conversation_id} from {user_name} was escalated: {message_content}",
				}},
			},
		},
		{
			Name:        "Urgent Keyword Handoff",
			Description: "Tag and ticket conversations mentioning urgent issues",
			TriggerType: TriggerMessageReceived,
			Conditions: []Condition{
				{Field: "message_content", Operator: OpContains, Value: "urgent"},
			},
			Actions: []Action{
				{Type: ActionTagConversation, Config: map[string]any{"tags": []any{"urgent"}}},
				{Type: ActionCreateTicket, Config: map[string]any{
					"subject":  "Urgent: {message_content}",
					"priority": "high",
				}},
			},
		},
		{
			Name:        "CRM Sync",
			Description: "Forward every inbound message to an external CRM webhook",
			TriggerType: TriggerMessageReceived,
			Actions: []Action{
				{Type: ActionWebhook, Config: map[string]any{
					"url":    "",
					"method": "POST",
				}},
			},
		},
		{
			Name:        "Resolution Follow-up",
			Description: "Send a delayed satisfaction check after a conversation is resolved",
			TriggerType: TriggerConversationEnded,
			Actions: []Action{
				{Type: ActionCustomResponse, Config: map[string]any{
					"response":      "Thanks for chatting with us, {user_name}! Was your issue resolved to your satisfaction?",
					"delay_seconds": 300,
				}},
			},
		},
	}
}
