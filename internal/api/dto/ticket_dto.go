package dto

import (
	"time"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// DateLayout is the wire format of due dates.
const DateLayout = "2006-01-02"

// UpdateTicketRequest is the PATCH /api/tickets/:id payload.
type UpdateTicketRequest struct {
	Status *string `json:"status"`
}

// CreateCommentRequest is the POST /api/tickets/:id/comments payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// TicketResponse is the wire shape of a ticket, comments included.
type TicketResponse struct {
	ID          string            `json:"id"`
	JiraID      string            `json:"jira_id"`
	Project     string            `json:"project"`
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	Status      string            `json:"status"`
	Priority    *string           `json:"priority"`
	Assignee    *string           `json:"assignee"`
	Reporter    *string           `json:"reporter"`
	CreatedDate time.Time         `json:"created_date"`
	UpdatedDate time.Time         `json:"updated_date"`
	DueDate     *string           `json:"due_date"`
	Comments    []CommentResponse `json:"comments"`
}

// CommentResponse represents one thread entry.
type CommentResponse struct {
	ID          string    `json:"id"`
	Ticket      string    `json:"ticket"`
	Author      *string   `json:"author"`
	Body        string    `json:"body"`
	CreatedDate time.Time `json:"created_date"`
}

// ProjectResponse is the wire shape of a project.
type ProjectResponse struct {
	ID          string  `json:"id"`
	JiraKey     string  `json:"jira_key"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          string         `json:"id"`
	ChangeType  string         `json:"change_type"`
	ChangedByID *string        `json:"changed_by_id"`
	OldValue    map[string]any `json:"old_value,omitempty"`
	NewValue    map[string]any `json:"new_value,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:          t.ID,
		JiraID:      t.JiraID,
		Project:     t.ProjectKey,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Assignee:    t.Assignee,
		Reporter:    t.Reporter,
		CreatedDate: t.CreatedAt,
		UpdatedDate: t.UpdatedAt,
		Comments:    make([]CommentResponse, 0, len(t.Comments)),
	}
	if t.DueDate != nil {
		due := t.DueDate.Format(DateLayout)
		resp.DueDate = &due
	}
	for i := range t.Comments {
		resp.Comments = append(resp.Comments, NewCommentResponse(&t.Comments[i]))
	}
	return resp
}

// NewCommentResponse maps a domain comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:          c.ID,
		Ticket:      c.TicketID,
		Author:      c.AuthorName,
		Body:        c.Body,
		CreatedDate: c.CreatedAt,
	}
}

// NewProjectResponse maps a domain project.
func NewProjectResponse(p *domain.Project) ProjectResponse {
	return ProjectResponse{ID: p.ID, JiraKey: p.JiraKey, Name: p.Name, Description: p.Description}
}

// NewHistoryResponse maps an audit entry.
func NewHistoryResponse(h *domain.TicketHistory) HistoryResponse {
	return HistoryResponse{
		ID:          h.ID,
		ChangeType:  string(h.ChangeType),
		ChangedByID: h.ChangedByID,
		OldValue:    h.OldValue,
		NewValue:    h.NewValue,
		CreatedAt:   h.CreatedAt,
	}
}
