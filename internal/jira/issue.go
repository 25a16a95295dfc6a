package jira

import (
	"encoding/json"
	"strings"
	"time"
)

// Issue is the subset of a Jira issue the importer needs.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the issue's field bag.
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	Status      *Named          `json:"status"`
	Priority    *Named          `json:"priority"`
	Project     *Project        `json:"project"`
	Assignee    *User           `json:"assignee"`
	Reporter    *User           `json:"reporter"`
	Created     string          `json:"created"`
	Updated     string          `json:"updated"`
	DueDate     string          `json:"duedate"`
}

// Named is any Jira object identified by display name (status, priority).
type Named struct {
	Name string `json:"name"`
}

// Project identifies the owning Jira project.
type Project struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// User is a Jira account reference.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// DescriptionText flattens the description, which Jira sends either as a
// plain string or as an Atlassian Document Format tree.
func (f IssueFields) DescriptionText() *string {
	raw := strings.TrimSpace(string(f.Description))
	if raw == "" || raw == "null" {
		return nil
	}
	var plain string
	if err := json.Unmarshal(f.Description, &plain); err == nil {
		return &plain
	}
	var doc adfNode
	if err := json.Unmarshal(f.Description, &doc); err != nil {
		return nil
	}
	var b strings.Builder
	doc.render(&b)
	text := strings.TrimSpace(b.String())
	return &text
}

type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

func (n adfNode) render(b *strings.Builder) {
	switch n.Type {
	case "text":
		b.WriteString(n.Text)
	case "hardBreak":
		b.WriteString("\n")
	}
	for _, child := range n.Content {
		child.render(b)
	}
	switch n.Type {
	case "paragraph", "heading", "listItem", "codeBlock", "blockquote":
		b.WriteString("\n")
	}
}

// Jira Cloud renders timestamps as 2024-03-01T10:00:00.000+0000.
var timeLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseTime parses a Jira timestamp.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate parses a Jira due date (YYYY-MM-DD).
func ParseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil
	}
	return &t
}

// NameOrEmpty returns n.Name, or "" when n is nil.
func (n *Named) NameOrEmpty() string {
	if n == nil {
		return ""
	}
	return n.Name
}

// DisplayNameOrNil returns the display name or nil for an unset user.
func (u *User) DisplayNameOrNil() *string {
	if u == nil || strings.TrimSpace(u.DisplayName) == "" {
		return nil
	}
	name := u.DisplayName
	return &name
}
