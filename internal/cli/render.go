package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	groupStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

const timeLayout = "2006-01-02 15:04"

func renderOverview(w io.Writer, state triage.OverviewState) {
	fmt.Fprintln(w, headingStyle.Render("Status"))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, status := range state.Summary.StatusOrder {
		fmt.Fprintf(tw, "  %s\t%d\n", status, state.Summary.StatusCounts[status])
	}
	if n := state.Summary.Overflow(); n > 0 {
		fmt.Fprintf(tw, "  %s\t%d\n", triage.OtherStatusesKey, n)
	}
	_ = tw.Flush()

	for _, name := range state.Summary.GroupOrder {
		tickets := state.Summary.Groups[name]
		marker := "▾"
		if !state.Expanded[name] {
			marker = "▸"
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, groupStyle.Render(fmt.Sprintf("%s %s (%d)", marker, name, len(tickets))))
		if !state.Expanded[name] {
			continue
		}
		if len(tickets) == 0 {
			fmt.Fprintln(w, mutedStyle.Render("  no tickets"))
			continue
		}
		renderRows(w, tickets, "  ")
	}

	if state.Dataset == triage.DatasetDegraded {
		fmt.Fprintln(w)
		renderRows(w, state.Tickets, "  ")
	}
}

func renderTicketTable(w io.Writer, tickets []triage.TicketRecord) {
	if len(tickets) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No tickets match."))
		return
	}
	renderRows(w, tickets, "")
}

func renderRows(w io.Writer, tickets []triage.TicketRecord, indent string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%sKEY\tSTATUS\tPRIORITY\tASSIGNEE\tTITLE\n", indent)
	for _, t := range tickets {
		key := triage.DisplayKey(t)
		if triage.IsPlaceholder(t) {
			key += " (sample)"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t%s\n",
			indent, key, t.Status, valueOr(t.Priority, "-"), triage.DisplayAssignee(t), t.Title)
	}
	_ = tw.Flush()
}

func renderTicket(w io.Writer, t triage.TicketRecord, jiraBaseURL string) {
	fmt.Fprintf(w, "%s  %s\n", keyStyle.Render(triage.DisplayKey(t)), headingStyle.Render(t.Title))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Status\t%s\n", t.Status)
	fmt.Fprintf(tw, "Priority\t%s\n", valueOr(t.Priority, "-"))
	fmt.Fprintf(tw, "Assignee\t%s\n", triage.DisplayAssignee(t))
	fmt.Fprintf(tw, "Reporter\t%s\n", valueOr(t.Reporter, "-"))
	if t.Project != "" {
		fmt.Fprintf(tw, "Project\t%s\n", t.Project)
	}
	fmt.Fprintf(tw, "Created\t%s\n", formatTime(t.CreatedAt))
	fmt.Fprintf(tw, "Updated\t%s\n", formatTime(t.UpdatedAt))
	if t.DueAt != nil {
		fmt.Fprintf(tw, "Due\t%s\n", t.DueAt.Format(dto.DateLayout))
	}
	if link := triage.BrowseURL(t, jiraBaseURL); link != "" {
		fmt.Fprintf(tw, "Link\t%s\n", link)
	}
	_ = tw.Flush()

	if t.Description != nil && strings.TrimSpace(*t.Description) != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, *t.Description)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("Comments (%d)", t.CommentCount())))
	if t.CommentCount() == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  no comments yet"))
		return
	}
	for _, c := range t.Comments {
		fmt.Fprintf(w, "  %s %s\n", headingStyle.Render(triage.DisplayAuthor(c)), mutedStyle.Render(formatTime(c.CreatedAt)))
		for _, line := range strings.Split(c.Body, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func renderProjects(w io.Writer, projects []dto.ProjectResponse) {
	if len(projects) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No projects yet."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\n", p.JiraKey, p.Name)
	}
	_ = tw.Flush()
}

type overviewOutput struct {
	Dataset      triage.DatasetKind               `json:"dataset"`
	StatusCounts map[string]int                   `json:"status_counts"`
	Groups       map[string][]triage.TicketRecord `json:"groups"`
	Expanded     map[string]bool                  `json:"expanded"`
	Tickets      []triage.TicketRecord            `json:"tickets"`
	Error        string                           `json:"error,omitempty"`
}

func overviewJSON(state triage.OverviewState) overviewOutput {
	out := overviewOutput{
		Dataset:      state.Dataset,
		StatusCounts: state.Summary.StatusCounts,
		Groups:       state.Summary.Groups,
		Expanded:     state.Expanded,
		Tickets:      state.Tickets,
	}
	if state.Err != nil {
		out.Error = triage.UserMessage(state.Err)
	}
	return out
}

type listOutput struct {
	Dataset triage.DatasetKind    `json:"dataset"`
	Tickets []triage.TicketRecord `json:"tickets"`
	Error   string                `json:"error,omitempty"`
}

func listJSON(state triage.OverviewState, tickets []triage.TicketRecord) listOutput {
	out := listOutput{Dataset: state.Dataset, Tickets: tickets}
	if state.Err != nil {
		out.Error = triage.UserMessage(state.Err)
	}
	return out
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}
