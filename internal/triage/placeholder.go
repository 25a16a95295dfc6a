package triage

import (
	"fmt"
	"strings"
	"time"
)

const placeholderPrefix = "placeholder-"

// PlaceholderTickets returns the clearly marked tickets shown when the initial
// fetch failed. Keys use the ERR- prefix and status "Error".
func PlaceholderTickets(now time.Time, n int) []TicketRecord {
	if n <= 0 {
		n = 2
	}
	out := make([]TicketRecord, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, TicketRecord{
			LocalID:     fmt.Sprintf("%s%d", placeholderPrefix, i),
			ExternalKey: fmt.Sprintf("ERR-%d", 100+i),
			Title:       fmt.Sprintf("Error Loading Ticket %d", i),
			Status:      "Error",
			Priority:    StringPtr("Unknown"),
			Assignee:    StringPtr("N/A"),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out
}

// IsPlaceholder reports whether r came from PlaceholderTickets.
func IsPlaceholder(r TicketRecord) bool {
	return strings.HasPrefix(r.LocalID, placeholderPrefix)
}
