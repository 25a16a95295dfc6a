package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketImported      EventType = "ticket_imported"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
)

// Actor identifies who triggered an event. Imports triggered by a read carry
// the reading user.
type Actor struct {
	UserID   *string `json:"user_id,omitempty"`
	Username string  `json:"username,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	JiraID    string      `json:"jira_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketImportedPayload payload.
type TicketImportedPayload struct {
	ProjectKey string `json:"project_key"`
	Title      string `json:"title"`
	Created    bool   `json:"created"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	BodyPreview string `json:"body_preview"`
}
