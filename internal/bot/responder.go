package bot

import "strings"

// Responder produces the bot's reply to an inbound user message. An empty
// reply means the bot stays silent for that message.
type Responder interface {
	Respond(tenantID, conversationID, text string) string
}

// KeywordResponder is a simple keyword-table responder. It stands in for a
// real NLP pipeline behind the same interface.
type KeywordResponder struct {
	Default string
}

func NewKeywordResponder() *KeywordResponder {
	return &KeywordResponder{
		Default: "Thank you for your message. An agent will get back to you shortly.",
	}
}

var keywordReplies = []struct {
	keywords []string
	reply    string
}{
	{[]string{"hello", "hi", "hey"}, "Hello! How can I help you today?"},
	{[]string{"help", "support"}, "I'm here to help! You can ask me about our products, pricing, or talk to a human agent."},
	{[]string{"price", "cost", "pricing"}, "Our plans start at $29/month. Would you like me to send you our full pricing details?"},
	{[]string{"bye", "goodbye", "thanks", "thank you"}, "You're welcome! Have a great day!"},
}

func (r *KeywordResponder) Respond(tenantID, conversationID, text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return ""
	}
	for _, entry := range keywordReplies {
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				return entry.reply
			}
		}
	}
	return r.Default
}
