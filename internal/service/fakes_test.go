package service

import (
	"context"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/jira"
)

type fakeJira struct {
	issues map[string]*jira.Issue
	err    error
	calls  int
}

func (f *fakeJira) GetIssue(_ context.Context, key string) (*jira.Issue, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	issue, ok := f.issues[key]
	if !ok {
		return nil, &jira.Error{StatusCode: 404}
	}
	return issue, nil
}

type memCache struct {
	entries     map[string]domain.Ticket
	invalidated []string
}

func newMemCache() *memCache { return &memCache{entries: map[string]domain.Ticket{}} }

func (c *memCache) Get(_ context.Context, id string) (*domain.Ticket, bool) {
	t, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return &t, true
}

func (c *memCache) Set(_ context.Context, t *domain.Ticket) {
	c.entries[t.ID] = *t
	c.entries[t.JiraID] = *t
}

func (c *memCache) Invalidate(_ context.Context, t *domain.Ticket) error {
	delete(c.entries, t.ID)
	delete(c.entries, t.JiraID)
	c.invalidated = append(c.invalidated, t.ID)
	return nil
}
