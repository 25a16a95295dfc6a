package triage

// OtherStatusesKey is the overflow counter for statuses outside the allowlist.
const OtherStatusesKey = "Other Statuses"

// PriorityGroup is a named bucket of priority values. MatchesUnset makes the
// group also take tickets with an absent or empty priority.
type PriorityGroup struct {
	Name         string
	Priorities   []string
	MatchesUnset bool
}

func (g PriorityGroup) matches(priority *string) bool {
	if priority == nil || *priority == "" {
		return g.MatchesUnset
	}
	for _, p := range g.Priorities {
		if p == *priority {
			return true
		}
	}
	return false
}

// ClassifierConfig holds the status allowlist and the ordered priority groups.
type ClassifierConfig struct {
	Statuses      []string
	Groups        []PriorityGroup
	FallbackGroup string
}

// DefaultClassifierConfig mirrors the overview cards and priority tables.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Statuses: []string{
			"Ongoing", "Triage Pending", "Waiting", "Done", "Rejected",
			"Open", "In Progress", "Resolved", "Closed",
		},
		Groups: []PriorityGroup{
			{Name: "P1", Priorities: []string{"Highest", "High"}},
			{Name: "P2", Priorities: []string{"Medium"}},
			{Name: "Other", Priorities: []string{"Low", "Lowest", "Undefined"}, MatchesUnset: true},
		},
		FallbackGroup: "Other",
	}
}

// GroupNames returns the group names in display order, with the fallback
// group appended when it is not one of the defined groups.
func (c ClassifierConfig) GroupNames() []string {
	names := make([]string, 0, len(c.Groups)+1)
	seen := make(map[string]struct{}, len(c.Groups)+1)
	for _, g := range c.Groups {
		if _, ok := seen[g.Name]; ok {
			continue
		}
		seen[g.Name] = struct{}{}
		names = append(names, g.Name)
	}
	if _, ok := seen[c.FallbackGroup]; !ok {
		names = append(names, c.FallbackGroup)
	}
	return names
}

// Summary is the classifier output.
type Summary struct {
	// StatusCounts has one entry per allowlisted status plus OtherStatusesKey.
	StatusCounts map[string]int
	// StatusOrder lists the allowlisted statuses in card order.
	StatusOrder []string
	// Groups maps group name to tickets in encounter order.
	Groups map[string][]TicketRecord
	// GroupOrder lists group names in display order.
	GroupOrder []string
}

// Overflow returns the count of tickets whose status is not allowlisted.
func (s Summary) Overflow() int {
	return s.StatusCounts[OtherStatusesKey]
}

// Total returns the number of classified tickets.
func (s Summary) Total() int {
	total := 0
	for _, n := range s.StatusCounts {
		total += n
	}
	return total
}

// EmptySummary returns zero counts and empty groups for cfg.
func EmptySummary(cfg ClassifierConfig) Summary {
	s := Summary{
		StatusCounts: make(map[string]int, len(cfg.Statuses)+1),
		StatusOrder:  append([]string(nil), cfg.Statuses...),
		GroupOrder:   cfg.GroupNames(),
	}
	for _, status := range cfg.Statuses {
		s.StatusCounts[status] = 0
	}
	s.StatusCounts[OtherStatusesKey] = 0
	s.Groups = make(map[string][]TicketRecord, len(s.GroupOrder))
	for _, name := range s.GroupOrder {
		s.Groups[name] = []TicketRecord{}
	}
	return s
}

// Classify counts statuses against the allowlist and places every ticket in
// exactly one priority group, first match wins. The input is not modified.
func Classify(tickets []TicketRecord, cfg ClassifierConfig) Summary {
	s := EmptySummary(cfg)
	allowed := make(map[string]struct{}, len(cfg.Statuses))
	for _, status := range cfg.Statuses {
		allowed[status] = struct{}{}
	}

	for _, t := range tickets {
		if _, ok := allowed[t.Status]; ok {
			s.StatusCounts[t.Status]++
		} else {
			s.StatusCounts[OtherStatusesKey]++
		}

		group := cfg.FallbackGroup
		for _, g := range cfg.Groups {
			if g.matches(t.Priority) {
				group = g.Name
				break
			}
		}
		s.Groups[group] = append(s.Groups[group], t.Clone())
	}
	return s
}
