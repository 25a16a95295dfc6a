package domain

import "time"

// Project groups tickets under a tracker project key.
type Project struct {
	ID          string
	JiraKey     string
	Name        string
	Description *string
}

// Ticket is the aggregate served to triage clients. Status and Priority are
// free-form strings as the upstream tracker reports them.
type Ticket struct {
	ID          string
	ProjectID   string
	ProjectKey  string
	JiraID      string
	Title       string
	Description *string
	Status      string
	Priority    *string
	Assignee    *string
	Reporter    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DueDate     *time.Time
	Comments    []Comment
}

// Comment is one entry in a ticket's thread.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   *string
	AuthorName *string
	Body       string
	CreatedAt  time.Time
}
