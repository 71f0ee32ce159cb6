package automation

import "testing"

func samplePayload() map[string]any {
	return map[string]any{
		"message_content": "I need URGENT help please",
		"channel_type":    "telegram",
		"message_count":   float64(7),
		"user": map[string]any{
			"profile": map[string]any{"plan": "pro"},
		},
	}
}

func TestEvaluateOperators(t *testing.T) {
	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equals match", Condition{"channel_type", OpEquals, "telegram"}, true},
		{"equals miss", Condition{"channel_type", OpEquals, "discord"}, false},
		{"equals numeric coercion", Condition{"message_count", OpEquals, "7"}, true},
		{"not_equals", Condition{"channel_type", OpNotEquals, "discord"}, true},
		{"greater_than", Condition{"message_count", OpGreaterThan, 5}, true},
		{"greater_than false", Condition{"message_count", OpGreaterThan, 7}, false},
		{"greater_than non-numeric", Condition{"channel_type", OpGreaterThan, 5}, false},
		{"less_than", Condition{"message_count", OpLessThan, 10}, true},
		{"less_than string number", Condition{"message_count", OpLessThan, "10"}, true},
		{"contains case-insensitive", Condition{"message_content", OpContains, "urgent"}, true},
		{"contains miss", Condition{"message_content", OpContains, "refund"}, false},
		{"not_contains", Condition{"message_content", OpNotContains, "refund"}, true},
		{"in", Condition{"channel_type", OpIn, []any{"telegram", "whatsapp"}}, true},
		{"in miss", Condition{"channel_type", OpIn, []any{"discord"}}, false},
		{"in non-list value", Condition{"channel_type", OpIn, "telegram"}, false},
		{"not_in", Condition{"channel_type", OpNotIn, []any{"discord"}}, true},
		{"dot path", Condition{"user.profile.plan", OpEquals, "pro"}, true},
		{"dot path through non-map", Condition{"channel_type.x", OpEquals, "y"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := evaluate(tc.cond, samplePayload()); got != tc.want {
				t.Errorf("evaluate(%+v) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestEvaluateAbsentField(t *testing.T) {
	payload := samplePayload()

	// Absent fields fail every positive comparison and pass the negated
	// forms.
	cases := []struct {
		op   string
		val  any
		want bool
	}{
		{OpEquals, "x", false},
		{OpNotEquals, "x", true},
		{OpGreaterThan, 1, false},
		{OpLessThan, 1, false},
		{OpContains, "x", false},
		{OpNotContains, "x", true},
		{OpIn, []any{"x"}, false},
		{OpNotIn, []any{"x"}, true},
	}
	for _, tc := range cases {
		cond := Condition{Field: "no.such.field", Operator: tc.op, Value: tc.val}
		if got := evaluate(cond, payload); got != tc.want {
			t.Errorf("%s on absent field = %v, want %v", tc.op, got, tc.want)
		}
	}
}

func TestEvaluateUnknownOperatorPasses(t *testing.T) {
	cond := Condition{Field: "channel_type", Operator: "regex_match", Value: ".*"}
	if !evaluate(cond, samplePayload()) {
		t.Error("unknown operator should pass the condition")
	}
}

func TestEvaluateConditionsAll(t *testing.T) {
	payload := samplePayload()
	if !EvaluateConditions(nil, payload) {
		t.Error("empty condition list should pass")
	}

	conds := []Condition{
		{"channel_type", OpEquals, "telegram"},
		{"message_content", OpContains, "urgent"},
	}
	if !EvaluateConditions(conds, payload) {
		t.Error("all-true conditions should pass")
	}

	conds = append(conds, Condition{"channel_type", OpEquals, "discord"})
	if EvaluateConditions(conds, payload) {
		t.Error("one failing condition should fail the set")
	}
}
