package triage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeTracker is an in-memory Tracker with failure injection.
type fakeTracker struct {
	mu      sync.Mutex
	tickets []TicketRecord

	listErr    error
	getErr     error
	setErr     error
	commentErr error

	// block, when set, makes the matching call wait until released.
	blockSet     chan struct{}
	blockComment chan struct{}
	// blockList and blockGet hold only the next call. GetTicket reads the
	// ticket before it blocks, so the released result can be out of date.
	blockList chan struct{}
	blockGet  chan struct{}
	entered   chan string

	listCalls    int
	getCalls     int
	setCalls     int
	commentCalls int
	nextComment  int
}

func newFakeTracker(tickets ...TicketRecord) *fakeTracker {
	return &fakeTracker{tickets: tickets, entered: make(chan string, 16)}
}

func (f *fakeTracker) ListTickets(ctx context.Context) ([]TicketRecord, error) {
	f.mu.Lock()
	f.listCalls++
	block := f.blockList
	f.blockList = nil
	f.mu.Unlock()
	if block != nil {
		f.entered <- "list"
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return cloneRecords(f.tickets), nil
}

func (f *fakeTracker) GetTicket(ctx context.Context, id string) (TicketRecord, error) {
	f.mu.Lock()
	f.getCalls++
	block := f.blockGet
	f.blockGet = nil
	rec, err := f.getLocked(id)
	f.mu.Unlock()
	if block != nil {
		f.entered <- "get"
		<-block
	}
	return rec, err
}

func (f *fakeTracker) getLocked(id string) (TicketRecord, error) {
	if f.getErr != nil {
		return TicketRecord{}, f.getErr
	}
	idx := f.indexLocked(id)
	if idx < 0 {
		return TicketRecord{}, NewError(KindNotFound, "get ticket", "no ticket "+id, nil)
	}
	return f.tickets[idx].Clone(), nil
}

func (f *fakeTracker) SetTicketStatus(ctx context.Context, id, status string) (TicketRecord, error) {
	f.mu.Lock()
	f.setCalls++
	block := f.blockSet
	f.mu.Unlock()
	if block != nil {
		f.entered <- "set"
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return TicketRecord{}, f.setErr
	}
	idx := f.indexLocked(id)
	if idx < 0 {
		return TicketRecord{}, NewError(KindNotFound, "set status", "no ticket "+id, nil)
	}
	f.tickets[idx].Status = status
	f.tickets[idx].UpdatedAt = f.tickets[idx].UpdatedAt.Add(time.Minute)
	return f.tickets[idx].Clone(), nil
}

func (f *fakeTracker) AddComment(ctx context.Context, ticketID, body string) (Comment, error) {
	f.mu.Lock()
	f.commentCalls++
	block := f.blockComment
	f.mu.Unlock()
	if block != nil {
		f.entered <- "comment"
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commentErr != nil {
		return Comment{}, f.commentErr
	}
	idx := f.indexLocked(ticketID)
	if idx < 0 {
		return Comment{}, NewError(KindNotFound, "add comment", "no ticket "+ticketID, nil)
	}
	f.nextComment++
	c := Comment{
		ID:        fmt.Sprintf("c-%d", f.nextComment),
		TicketID:  ticketID,
		Author:    StringPtr("alice"),
		Body:      body,
		CreatedAt: time.Date(2024, 5, 1, 12, f.nextComment, 0, 0, time.UTC),
	}
	f.tickets[idx].Comments = append(f.tickets[idx].Comments, c)
	return c, nil
}

func (f *fakeTracker) indexLocked(id string) int {
	for i, t := range f.tickets {
		if t.LocalID == id || t.ExternalKey == id {
			return i
		}
	}
	return -1
}

func (f *fakeTracker) calls() (list, get, set, comment int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.getCalls, f.setCalls, f.commentCalls
}

func sampleTicket(id, key, status string) TicketRecord {
	return TicketRecord{
		LocalID:     id,
		ExternalKey: key,
		Title:       "Ticket " + key,
		Status:      status,
		Priority:    StringPtr("High"),
		Assignee:    StringPtr("Dev1"),
		CreatedAt:   time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}
