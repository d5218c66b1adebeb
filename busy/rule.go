package busy

import (
	"fmt"
	"strings"
)

// Rule folds the latest busy value of every source into one value
type Rule func([]bool) bool

// All is true iff every value is true
func All(values []bool) bool {
	for _, v := range values {
		if !v {
			return false
		}
	}
	return true
}

// Any is true iff at least one value is true
func Any(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

// ParseRule maps a configuration name to a Rule. An empty name selects All.
func ParseRule(name string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all", "and":
		return All, nil
	case "any", "or":
		return Any, nil
	default:
		return nil, fmt.Errorf("unknown busy rule %q", name)
	}
}
