package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayKey(t *testing.T) {
	assert.Equal(t, "JIRA-101", DisplayKey(TicketRecord{LocalID: "1", ExternalKey: "JIRA-101"}))
	assert.Equal(t, "1", DisplayKey(TicketRecord{LocalID: "1"}))
	assert.Equal(t, "", DisplayKey(TicketRecord{}))
}

func TestDisplayAssignee(t *testing.T) {
	assert.Equal(t, "Unassigned", DisplayAssignee(TicketRecord{}))
	assert.Equal(t, "Unassigned", DisplayAssignee(TicketRecord{Assignee: StringPtr("")}))
	assert.Equal(t, "Bob", DisplayAssignee(TicketRecord{Assignee: StringPtr("Bob")}))
}

func TestDisplayAuthor(t *testing.T) {
	assert.Equal(t, "Unknown User", DisplayAuthor(Comment{Body: "x"}))
	assert.Equal(t, "carol", DisplayAuthor(Comment{Author: StringPtr("carol")}))
}

func TestBrowseURL(t *testing.T) {
	r := TicketRecord{LocalID: "7", ExternalKey: "OPS-7"}
	assert.Equal(t, "https://acme.atlassian.net/browse/OPS-7", BrowseURL(r, "https://acme.atlassian.net/"))
	assert.Empty(t, BrowseURL(r, ""))
	assert.Empty(t, BrowseURL(TicketRecord{LocalID: "7"}, "https://acme.atlassian.net"))
}

func TestHasIdentity(t *testing.T) {
	assert.False(t, TicketRecord{}.HasIdentity())
	assert.True(t, TicketRecord{LocalID: "1"}.HasIdentity())
	assert.True(t, TicketRecord{ExternalKey: "K-1"}.HasIdentity())
}

func TestClone_IsDeep(t *testing.T) {
	orig := sampleTicket("1", "K-1", "Open")
	orig.Comments = []Comment{{ID: "c1", Author: StringPtr("a"), Body: "hi"}}

	cp := orig.Clone()
	*cp.Assignee = "changed"
	*cp.Comments[0].Author = "changed"
	cp.Comments[0].Body = "changed"

	require.Equal(t, "Dev1", *orig.Assignee)
	require.Equal(t, "a", *orig.Comments[0].Author)
	require.Equal(t, "hi", orig.Comments[0].Body)
}

func TestCommentCount_AbsentThread(t *testing.T) {
	assert.Equal(t, 0, TicketRecord{}.CommentCount())
}

func TestPlaceholderTickets(t *testing.T) {
	tickets := PlaceholderTickets(sampleTicket("1", "K", "Open").CreatedAt, 0)
	require.Len(t, tickets, 2)
	for _, tk := range tickets {
		assert.True(t, IsPlaceholder(tk))
		assert.Equal(t, "Error", tk.Status)
		assert.Contains(t, tk.ExternalKey, "ERR-")
	}
	assert.False(t, IsPlaceholder(sampleTicket("1", "K", "Open")))
}
