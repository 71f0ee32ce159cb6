package automation

import (
	"strings"
	"time"
)

var placeholderKeys = map[string]string{
	"{conversation_id}": "conversation_id",
	"{chatbot_id}":      "chatbot_id",
	"{user_email}":      "user_email",
	"{user_name}":       "user_name",
	"{message_content}": "message_content",
	"{message_id}":      "message_id",
}

// placeholderValues builds the substitution table for one trigger payload.
// A token only enters the table when the payload carries its key, so tokens
// for context the event never had stay verbatim. Time placeholders are
// stamped at execution time, not trigger time.
func placeholderValues(payload map[string]any, now time.Time) map[string]string {
	values := map[string]string{
		"{timestamp}": now.UTC().Format(time.RFC3339),
		"{date}":      now.UTC().Format("2006-01-02"),
		"{time}":      now.UTC().Format("15:04:05"),
	}
	for token, key := range placeholderKeys {
		if v, ok := payload[key]; ok {
			values[token] = stringify(v)
		}
	}
	return values
}

// ResolvePlaceholders walks a decoded JSON tree and substitutes placeholder
// tokens in string leaves. Map keys and non-string values pass through
// untouched; tokens without a value in the table stay verbatim.
func ResolvePlaceholders(node any, payload map[string]any) any {
	return resolveNode(node, placeholderValues(payload, time.Now()))
}

func resolveNode(node any, values map[string]string) any {
	switch t := node.(type) {
	case string:
		return substitute(t, values)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, v := range t {
			out[k] = resolveNode(v, values)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			out[i] = resolveNode(v, values)
		}
		return out
	default:
		return node
	}
}

func substitute(s string, values map[string]string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	for token, value := range values {
		s = strings.ReplaceAll(s, token, value)
	}
	return s
}
