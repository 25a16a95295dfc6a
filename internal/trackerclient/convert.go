package trackerclient

import (
	"fmt"
	"time"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/triage"
)

func toRecord(w dto.TicketResponse) (triage.TicketRecord, error) {
	rec := triage.TicketRecord{
		LocalID:     w.ID,
		ExternalKey: w.JiraID,
		Project:     w.Project,
		Title:       w.Title,
		Status:      w.Status,
		Priority:    w.Priority,
		Assignee:    w.Assignee,
		Reporter:    w.Reporter,
		Description: w.Description,
		CreatedAt:   w.CreatedDate,
		UpdatedAt:   w.UpdatedDate,
	}
	if w.DueDate != nil && *w.DueDate != "" {
		due, err := time.Parse(dto.DateLayout, *w.DueDate)
		if err != nil {
			return triage.TicketRecord{}, fmt.Errorf("ticket %s: due_date: %w", w.ID, err)
		}
		rec.DueAt = &due
	}
	if w.Comments != nil {
		rec.Comments = make([]triage.Comment, 0, len(w.Comments))
		for _, c := range w.Comments {
			rec.Comments = append(rec.Comments, toComment(c))
		}
	}
	return rec, nil
}

func toComment(w dto.CommentResponse) triage.Comment {
	return triage.Comment{
		ID:        w.ID,
		TicketID:  w.Ticket,
		Author:    w.Author,
		Body:      w.Body,
		CreatedAt: w.CreatedDate,
	}
}
