package normalize

import (
	"strings"

	v1 "github.com/pricewize-lab/pricewize/internal/api/v1"
)

// conditionKeywords is evaluated in order; within a group, any substring hit
// selects the condition. "very good" precedes "good" only for readability,
// both resolve to Good.
var conditionKeywords = []struct {
	keywords  []string
	condition v1.Condition
}{
	{[]string{"like new", "excellent"}, v1.ConditionExcellent},
	{[]string{"very good", "good"}, v1.ConditionGood},
	{[]string{"average", "fair"}, v1.ConditionFair},
	{[]string{"damaged", "poor"}, v1.ConditionPoor},
}

// Condition maps a free-text condition phrase to the fixed enum.
// Matching is case-insensitive substring matching. No match falls back to
// Good: a deliberate lossy default, not an error.
func Condition(text string) v1.Condition {
	lower := strings.ToLower(text)
	for _, group := range conditionKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.condition
			}
		}
	}
	return v1.ConditionGood
}
