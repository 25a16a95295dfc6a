package triage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestClassify_Scenario(t *testing.T) {
	t1 := TicketRecord{LocalID: "1", Status: "Ongoing", Priority: StringPtr("Highest")}
	t2 := TicketRecord{LocalID: "2", Status: "Done", Priority: StringPtr("Low")}
	t3 := TicketRecord{LocalID: "3", Status: "Unknown"}

	s := Classify([]TicketRecord{t1, t2, t3}, DefaultClassifierConfig())

	assert.Equal(t, 1, s.StatusCounts["Ongoing"])
	assert.Equal(t, 1, s.StatusCounts["Done"])
	assert.Equal(t, 0, s.StatusCounts["Open"])
	assert.Equal(t, 1, s.StatusCounts[OtherStatusesKey])

	require.Len(t, s.Groups["P1"], 1)
	assert.Equal(t, "1", s.Groups["P1"][0].LocalID)
	assert.Empty(t, s.Groups["P2"])
	require.Len(t, s.Groups["Other"], 2)
	assert.Equal(t, "2", s.Groups["Other"][0].LocalID)
	assert.Equal(t, "3", s.Groups["Other"][1].LocalID)
}

func TestClassify_EmptyInput(t *testing.T) {
	cfg := DefaultClassifierConfig()
	s := Classify(nil, cfg)

	assert.Equal(t, 0, s.Total())
	require.Len(t, s.StatusCounts, len(cfg.Statuses)+1)
	for _, name := range []string{"P1", "P2", "Other"} {
		require.Contains(t, s.Groups, name)
		assert.Empty(t, s.Groups[name])
	}
	assert.Equal(t, []string{"P1", "P2", "Other"}, s.GroupOrder)
}

func TestClassify_StatusMatchIsExact(t *testing.T) {
	s := Classify([]TicketRecord{
		{LocalID: "1", Status: "open"},
		{LocalID: "2", Status: "Open "},
		{LocalID: "3", Status: "Open"},
	}, DefaultClassifierConfig())

	assert.Equal(t, 1, s.StatusCounts["Open"])
	assert.Equal(t, 2, s.Overflow())
}

func TestClassify_UnrecognizedPriorityFallsBack(t *testing.T) {
	cfg := ClassifierConfig{
		Statuses:      []string{"Open"},
		Groups:        []PriorityGroup{{Name: "Urgent", Priorities: []string{"Blocker"}}},
		FallbackGroup: "Rest",
	}
	s := Classify([]TicketRecord{
		{LocalID: "1", Status: "Open", Priority: StringPtr("Blocker")},
		{LocalID: "2", Status: "Open", Priority: StringPtr("Trivial")},
		{LocalID: "3", Status: "Open"},
	}, cfg)

	assert.Equal(t, []string{"Urgent", "Rest"}, s.GroupOrder)
	assert.Len(t, s.Groups["Urgent"], 1)
	assert.Len(t, s.Groups["Rest"], 2)
}

func TestClassify_FirstMatchWins(t *testing.T) {
	cfg := ClassifierConfig{
		Groups: []PriorityGroup{
			{Name: "A", Priorities: []string{"High"}},
			{Name: "B", Priorities: []string{"High", "Low"}},
		},
		FallbackGroup: "B",
	}
	s := Classify([]TicketRecord{{LocalID: "1", Priority: StringPtr("High")}}, cfg)
	assert.Len(t, s.Groups["A"], 1)
	assert.Empty(t, s.Groups["B"])
}

func TestClassify_DoesNotMutateInput(t *testing.T) {
	in := []TicketRecord{sampleTicket("1", "K-1", "Open"), sampleTicket("2", "K-2", "Weird")}
	before := cloneRecords(in)

	s := Classify(in, DefaultClassifierConfig())
	*s.Groups["P1"][0].Assignee = "mutated"

	assert.Equal(t, before, in)
}

var priorityValues = []string{"", "Highest", "High", "Medium", "Low", "Lowest", "Undefined", "Blocker", "high"}
var statusValues = []string{"Open", "Done", "Ongoing", "Closed", "Error", "open", "Backlog", ""}

func drawTickets(t *rapid.T) []TicketRecord {
	n := rapid.IntRange(0, 40).Draw(t, "n")
	out := make([]TicketRecord, n)
	for i := range out {
		out[i] = TicketRecord{
			LocalID: fmt.Sprintf("%d", i),
			Status:  rapid.SampledFrom(statusValues).Draw(t, "status"),
		}
		if rapid.Bool().Draw(t, "hasPriority") {
			p := rapid.SampledFrom(priorityValues).Draw(t, "priority")
			out[i].Priority = &p
		}
	}
	return out
}

func TestProperty_StatusCountsCoverInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tickets := drawTickets(t)
		s := Classify(tickets, DefaultClassifierConfig())
		if s.Total() != len(tickets) {
			t.Fatalf("counts sum to %d, want %d", s.Total(), len(tickets))
		}
	})
}

func TestProperty_EveryTicketInExactlyOneGroup(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tickets := drawTickets(t)
		s := Classify(tickets, DefaultClassifierConfig())

		seen := map[string]int{}
		total := 0
		for _, group := range s.Groups {
			total += len(group)
			for _, tk := range group {
				seen[tk.LocalID]++
			}
		}
		if total != len(tickets) {
			t.Fatalf("groups hold %d tickets, want %d", total, len(tickets))
		}
		for id, n := range seen {
			if n != 1 {
				t.Fatalf("ticket %s placed %d times", id, n)
			}
		}
	})
}

func TestProperty_GroupSizesIgnoreInputOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tickets := drawTickets(t)
		perm := rapid.Permutation(tickets).Draw(t, "perm")

		a := Classify(tickets, DefaultClassifierConfig())
		b := Classify(perm, DefaultClassifierConfig())
		for _, name := range a.GroupOrder {
			if len(a.Groups[name]) != len(b.Groups[name]) {
				t.Fatalf("group %s: %d vs %d", name, len(a.Groups[name]), len(b.Groups[name]))
			}
		}
		for k, v := range a.StatusCounts {
			if b.StatusCounts[k] != v {
				t.Fatalf("status %s: %d vs %d", k, v, b.StatusCounts[k])
			}
		}
	})
}

func TestProperty_GroupsPreserveEncounterOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tickets := drawTickets(t)
		s := Classify(tickets, DefaultClassifierConfig())
		for name, group := range s.Groups {
			last := -1
			for _, tk := range group {
				var idx int
				fmt.Sscanf(tk.LocalID, "%d", &idx)
				if idx <= last {
					t.Fatalf("group %s out of order", name)
				}
				last = idx
			}
		}
	})
}
