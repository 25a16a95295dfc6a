package triage

import "strings"

// Filter keys.
const (
	FilterStatus   = "status"
	FilterAssignee = "assignee"
)

// FilterCriteria maps a field name to a substring pattern.
type FilterCriteria map[string]string

// active returns the lowered, trimmed patterns that constrain the result.
// Keys other than status and assignee are ignored.
func (c FilterCriteria) active() map[string]string {
	out := make(map[string]string, len(c))
	for key, pattern := range c {
		if key != FilterStatus && key != FilterAssignee {
			continue
		}
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		out[key] = strings.ToLower(pattern)
	}
	return out
}

// Filter returns the tickets matching every non-empty pattern, in input order.
// Unrecognized keys do not constrain the result.
func Filter(tickets []TicketRecord, criteria FilterCriteria) []TicketRecord {
	patterns := criteria.active()
	out := make([]TicketRecord, 0, len(tickets))
	for _, t := range tickets {
		if matchesAll(t, patterns) {
			out = append(out, t.Clone())
		}
	}
	return out
}

func matchesAll(t TicketRecord, patterns map[string]string) bool {
	for key, pattern := range patterns {
		value, ok := fieldValue(t, key)
		if !ok || !strings.Contains(strings.ToLower(value), pattern) {
			return false
		}
	}
	return true
}

func fieldValue(t TicketRecord, key string) (string, bool) {
	switch key {
	case FilterStatus:
		if t.Status == "" {
			return "", false
		}
		return t.Status, true
	case FilterAssignee:
		if t.Assignee == nil || *t.Assignee == "" {
			return "", false
		}
		return *t.Assignee, true
	default:
		return "", false
	}
}
