package automation

import (
	"fmt"
	"strconv"
	"strings"
)

// Condition is one field/operator/value triple. A workflow matches when all
// of its conditions pass (AND).
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Supported operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpIn          = "in"
	OpNotIn       = "not_in"
)

// extractField walks a dot path through nested maps. Missing keys or
// traversal through a non-map report absent.
func extractField(payload map[string]any, path string) (any, bool) {
	var current any = payload
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// EvaluateConditions reports whether every condition passes against the
// payload. An empty condition list always passes.
func EvaluateConditions(conds []Condition, payload map[string]any) bool {
	for _, cond := range conds {
		if !evaluate(cond, payload) {
			return false
		}
	}
	return true
}

func evaluate(cond Condition, payload map[string]any) bool {
	fieldValue, present := extractField(payload, cond.Field)

	switch cond.Operator {
	case OpEquals:
		return present && stringify(fieldValue) == stringify(cond.Value)
	case OpNotEquals:
		return !present || stringify(fieldValue) != stringify(cond.Value)
	case OpGreaterThan:
		if !present {
			return false
		}
		a, aok := toFloat(fieldValue)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b
	case OpLessThan:
		if !present {
			return false
		}
		a, aok := toFloat(fieldValue)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b
	case OpContains:
		return present && strings.Contains(
			strings.ToLower(stringify(fieldValue)),
			strings.ToLower(stringify(cond.Value)))
	case OpNotContains:
		if !present {
			return true
		}
		return !strings.Contains(
			strings.ToLower(stringify(fieldValue)),
			strings.ToLower(stringify(cond.Value)))
	case OpIn:
		return present && membership(fieldValue, cond.Value)
	case OpNotIn:
		return !present || !membership(fieldValue, cond.Value)
	default:
		// Unknown operators pass rather than silently filtering every
		// workflow out. Misconfigured rules surface in execution logs.
		return true
	}
}

func membership(fieldValue, listValue any) bool {
	list, ok := listValue.([]any)
	if !ok {
		return false
	}
	needle := stringify(fieldValue)
	for _, item := range list {
		if stringify(item) == needle {
			return true
		}
	}
	return false
}
