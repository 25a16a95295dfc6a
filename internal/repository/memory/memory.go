// Package memory holds in-process implementations of the repository
// interfaces. The API falls back to it when no Postgres DSN is configured.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/repository"
)

// Store is a mutex-guarded dataset shared by all memory repositories.
type Store struct {
	mu       sync.Mutex
	tickets  map[string]domain.Ticket
	comments []domain.Comment
	projects map[string]domain.Project
	users    map[string]domain.User
	history  []domain.TicketHistory
	now      func() time.Time
	last     time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		tickets:  map[string]domain.Ticket{},
		projects: map[string]domain.Project{},
		users:    map[string]domain.User{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stamp returns a strictly increasing timestamp. Callers hold s.mu.
func (s *Store) stamp() time.Time {
	t := s.now()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Comments returns the comment repository view.
func (s *Store) Comments() repository.CommentRepository { return commentRepo{s} }

// Projects returns the project repository view.
func (s *Store) Projects() repository.ProjectRepository { return projectRepo{s} }

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// History returns the audit repository view.
func (s *Store) History() repository.TicketHistoryRepository { return historyRepo{s} }

// SeedTicket inserts a ticket (and its project, derived from the key
// prefix) and returns the stored copy.
func (s *Store) SeedTicket(jiraID, status string) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	projectKey := strings.SplitN(jiraID, "-", 2)[0]
	p, ok := s.projects[projectKey]
	if !ok {
		p = domain.Project{ID: uuid.NewString(), JiraKey: projectKey, Name: projectKey}
		s.projects[projectKey] = p
	}
	now := s.stamp()
	t := domain.Ticket{
		ID:         uuid.NewString(),
		ProjectID:  p.ID,
		ProjectKey: p.JiraKey,
		JiraID:     jiraID,
		Title:      "Ticket " + jiraID,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.tickets[t.ID] = t
	return t
}

// UpdateUser overwrites a stored user, e.g. to deactivate it.
func (s *Store) UpdateUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// DeleteTicket removes a ticket without touching its comments.
func (s *Store) DeleteTicket(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, id)
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Upsert(_ context.Context, ticket *domain.Ticket) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.s.tickets {
		if existing.JiraID == ticket.JiraID {
			ticket.ID = id
			ticket.CreatedAt = existing.CreatedAt
			r.s.tickets[id] = withoutComments(*ticket)
			return false, nil
		}
	}
	ticket.ID = uuid.NewString()
	r.s.tickets[ticket.ID] = withoutComments(*ticket)
	return true, nil
}

func (r ticketRepo) UpdateStatus(_ context.Context, id, status string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t.Status = status
	t.UpdatedAt = r.s.stamp()
	r.s.tickets[id] = t
	return &t, nil
}

func (r ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r ticketRepo) GetByJiraID(_ context.Context, jiraID string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tickets {
		if t.JiraID == jiraID {
			return &t, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r ticketRepo) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.Ticket{}
	for _, t := range r.s.tickets {
		if !contains(&t.Status, f.Status) || !contains(t.Assignee, f.Assignee) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []domain.Ticket{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

// contains mirrors the SQL ILIKE '%term%' filter; a NULL field never matches.
func contains(field, term *string) bool {
	if term == nil || strings.TrimSpace(*term) == "" {
		return true
	}
	if field == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*field), strings.ToLower(strings.TrimSpace(*term)))
}

func withoutComments(t domain.Ticket) domain.Ticket {
	t.Comments = nil
	return t
}

type commentRepo struct{ s *Store }

func (r commentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[c.TicketID]; !ok {
		return pgx.ErrNoRows
	}
	c.ID = uuid.NewString()
	c.CreatedAt = r.s.stamp()
	c.AuthorName = nil
	if c.AuthorID != nil {
		if u, ok := r.s.users[*c.AuthorID]; ok {
			name := u.Username
			c.AuthorName = &name
		}
	}
	r.s.comments = append(r.s.comments, *c)
	return nil
}

func (r commentRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	byTicket, err := r.ListByTickets(ctx, []string{ticketID})
	if err != nil {
		return nil, err
	}
	return byTicket[ticketID], nil
}

func (r commentRepo) ListByTickets(_ context.Context, ids []string) (map[string][]domain.Comment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make(map[string][]domain.Comment, len(ids))
	for _, c := range r.s.comments {
		if want[c.TicketID] {
			out[c.TicketID] = append(out[c.TicketID], c)
		}
	}
	return out, nil
}

type projectRepo struct{ s *Store }

func (r projectRepo) GetOrCreate(_ context.Context, p *domain.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.projects[p.JiraKey]; ok {
		*p = existing
		return nil
	}
	p.ID = uuid.NewString()
	r.s.projects[p.JiraKey] = *p
	return nil
}

func (r projectRepo) List(context.Context) ([]domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Project, 0, len(r.s.projects))
	for _, p := range r.s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JiraKey < out[j].JiraKey })
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return repository.ErrDuplicate
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = r.s.stamp()
	u.UpdatedAt = u.CreatedAt
	r.s.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type historyRepo struct{ s *Store }

func (r historyRepo) Create(_ context.Context, h *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h.ID = uuid.NewString()
	h.CreatedAt = r.s.stamp()
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r historyRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []domain.TicketHistory{}
	for _, h := range r.s.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out, nil
}
