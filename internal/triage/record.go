package triage

import (
	"strings"
	"time"
)

const (
	unassignedLabel  = "Unassigned"
	unknownUserLabel = "Unknown User"
)

// TicketRecord is one issue as the tracker service reports it.
// Optional attributes are pointers; nil means the service did not send them.
type TicketRecord struct {
	LocalID     string     `json:"id,omitempty"`
	ExternalKey string     `json:"jira_id,omitempty"`
	Project     string     `json:"project,omitempty"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	Priority    *string    `json:"priority"`
	Assignee    *string    `json:"assignee"`
	Reporter    *string    `json:"reporter"`
	Description *string    `json:"description"`
	CreatedAt   time.Time  `json:"created_date"`
	UpdatedAt   time.Time  `json:"updated_date"`
	DueAt       *time.Time `json:"due_date,omitempty"`
	Comments    []Comment  `json:"comments"`
}

// Comment is a single entry in a ticket's thread.
type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket,omitempty"`
	Author    *string   `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_date"`
}

// DisplayKey returns the key used for list rows and detail routing.
func DisplayKey(r TicketRecord) string {
	if r.ExternalKey != "" {
		return r.ExternalKey
	}
	return r.LocalID
}

// DisplayAssignee returns the assignee or "Unassigned".
func DisplayAssignee(r TicketRecord) string {
	if r.Assignee == nil || *r.Assignee == "" {
		return unassignedLabel
	}
	return *r.Assignee
}

// DisplayAuthor returns the comment author or "Unknown User".
func DisplayAuthor(c Comment) string {
	if c.Author == nil || *c.Author == "" {
		return unknownUserLabel
	}
	return *c.Author
}

// BrowseURL builds the tracker deep link for a record. It returns "" when
// either the base URL or the external key is missing.
func BrowseURL(r TicketRecord, baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || r.ExternalKey == "" {
		return ""
	}
	return baseURL + "/browse/" + r.ExternalKey
}

// HasIdentity reports whether the record can be used as a list or link key.
func (r TicketRecord) HasIdentity() bool {
	return r.LocalID != "" || r.ExternalKey != ""
}

// CommentCount treats an absent thread as empty.
func (r TicketRecord) CommentCount() int {
	return len(r.Comments)
}

// Clone returns a deep copy so callers cannot mutate controller-owned state.
func (r TicketRecord) Clone() TicketRecord {
	out := r
	out.Priority = cloneString(r.Priority)
	out.Assignee = cloneString(r.Assignee)
	out.Reporter = cloneString(r.Reporter)
	out.Description = cloneString(r.Description)
	if r.DueAt != nil {
		due := *r.DueAt
		out.DueAt = &due
	}
	if r.Comments != nil {
		out.Comments = make([]Comment, len(r.Comments))
		for i, c := range r.Comments {
			c.Author = cloneString(c.Author)
			out.Comments[i] = c
		}
	}
	return out
}

func cloneRecords(in []TicketRecord) []TicketRecord {
	if in == nil {
		return nil
	}
	out := make([]TicketRecord, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// StringPtr is a small helper for building records with optional fields.
func StringPtr(s string) *string {
	return &s
}
