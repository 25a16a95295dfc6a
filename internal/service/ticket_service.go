package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
	"github.com/spec-kit/ticket-triage/internal/events"
	"github.com/spec-kit/ticket-triage/internal/jira"
	"github.com/spec-kit/ticket-triage/internal/repository"
	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

// IssueFetcher loads a single upstream issue.
type IssueFetcher interface {
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
}

// TicketCache is the read-through cache in front of the ticket repository.
type TicketCache interface {
	Get(ctx context.Context, id string) (*domain.Ticket, bool)
	Set(ctx context.Context, ticket *domain.Ticket)
	Invalidate(ctx context.Context, ticket *domain.Ticket) error
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	comments   repository.CommentRepository
	projects   repository.ProjectRepository
	history    repository.TicketHistoryRepository
	cache      TicketCache
	jira       IssueFetcher
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service. Cache,
// Jira, HistoryRepo and Dispatcher are optional.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	ProjectRepo repository.ProjectRepository
	HistoryRepo repository.TicketHistoryRepository
	Cache       TicketCache
	Jira        IssueFetcher
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// TicketListFilter describes list filters.
type TicketListFilter struct {
	Status   *string
	Assignee *string
	Limit    int
	Offset   int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := deps.Cache
	if cache == nil {
		cache = noopCache{}
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		projects:   deps.ProjectRepo,
		history:    deps.HistoryRepo,
		cache:      cache,
		jira:       deps.Jira,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// ListTickets returns tickets, most recently updated first, with their
// comment threads attached.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Status:   filter.Status,
		Assignee: filter.Assignee,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return []domain.Ticket{}, nil
	}

	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	threads, err := s.comments.ListByTickets(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		tickets[i].Comments = threads[tickets[i].ID]
	}
	return tickets, nil
}

// GetTicket resolves id as a local UUID or a Jira key. A Jira key the store
// has never seen is fetched from Jira and upserted; created reports whether
// that import inserted a new row.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, id string) (ticket *domain.Ticket, created bool, err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false, apperrors.NewValidationError("ticket id required", nil)
	}
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, false, nil
	}

	ticket, err = s.resolve(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, pgx.ErrNoRows) && !isLocalID(id):
		ticket, created, err = s.importFromJira(ctx, actor, id)
		if err != nil {
			return nil, false, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		return nil, false, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	default:
		return nil, false, err
	}

	if err := s.attachComments(ctx, ticket); err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, ticket)
	return ticket, created, nil
}

// UpdateStatus sets a new free-form status and returns the stored ticket.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, id, status string) (*domain.Ticket, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, apperrors.NewValidationError("status required", map[string]any{"field": "status"})
	}
	current, err := s.mustResolve(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.tickets.UpdateStatus(ctx, current.ID, status)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, updated)

	if err := s.attachComments(ctx, updated); err != nil {
		return nil, err
	}
	if current.Status != status {
		s.record(ctx, actor, updated.ID, domain.ChangeTypeStatus,
			map[string]any{"status": current.Status},
			map[string]any{"status": status})
		s.publishEvent(ctx, events.Event{
			Type:     events.EventTicketStatusChanged,
			TicketID: updated.ID,
			JiraID:   updated.JiraID,
			Actor:    userActor(actor),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: current.Status,
				NewStatus: status,
			},
		})
	}
	return updated, nil
}

// AddComment appends a comment authored by actor.
func (s *TicketService) AddComment(ctx context.Context, actor *domain.User, id, body string) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("body required", map[string]any{"field": "body"})
	}
	ticket, err := s.mustResolve(ctx, id)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{TicketID: ticket.ID, Body: body}
	if actor != nil {
		comment.AuthorID = &actor.ID
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.invalidate(ctx, ticket)

	s.record(ctx, actor, ticket.ID, domain.ChangeTypeComment, nil,
		map[string]any{"comment_id": comment.ID})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: ticket.ID,
		JiraID:   ticket.JiraID,
		Actor:    userActor(actor),
		Payload: events.TicketCommentAddedPayload{
			CommentID:   comment.ID,
			BodyPreview: stringPreview(body, 140),
		},
	})
	return comment, nil
}

// ListHistory returns the audit trail of a ticket, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, id string) ([]domain.TicketHistory, error) {
	ticket, err := s.mustResolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	return s.history.ListByTicket(ctx, ticket.ID)
}

// ListProjects returns every known project.
func (s *TicketService) ListProjects(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

func (s *TicketService) resolve(ctx context.Context, id string) (*domain.Ticket, error) {
	if isLocalID(id) {
		return s.tickets.GetByID(ctx, id)
	}
	return s.tickets.GetByJiraID(ctx, id)
}

func (s *TicketService) mustResolve(ctx context.Context, id string) (*domain.Ticket, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	ticket, err := s.resolve(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
	}
	return ticket, err
}

func (s *TicketService) importFromJira(ctx context.Context, actor *domain.User, key string) (*domain.Ticket, bool, error) {
	if s.jira == nil {
		return nil, false, apperrors.NewNotFound("ticket", map[string]any{"id": key})
	}
	issue, err := s.jira.GetIssue(ctx, key)
	if err != nil {
		status := jira.StatusCode(err)
		if status == http.StatusNotFound || errors.Is(err, jira.ErrNotConfigured) {
			return nil, false, apperrors.NewNotFound("ticket", map[string]any{"id": key, "source": "jira"})
		}
		s.logger.Warn("jira lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false, apperrors.NewUpstreamError("failed to fetch ticket from jira", status, err)
	}

	ticket, project, err := ticketFromIssue(key, issue)
	if err != nil {
		return nil, false, err
	}
	if err := s.projects.GetOrCreate(ctx, project); err != nil {
		return nil, false, err
	}
	ticket.ProjectID = project.ID
	ticket.ProjectKey = project.JiraKey

	created, err := s.tickets.Upsert(ctx, ticket)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("imported ticket from jira", zap.String("jira_id", ticket.JiraID), zap.Bool("created", created))
	s.record(ctx, actor, ticket.ID, domain.ChangeTypeImport, nil,
		map[string]any{"jira_id": ticket.JiraID, "status": ticket.Status})
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketImported,
		TicketID: ticket.ID,
		JiraID:   ticket.JiraID,
		Actor:    userActor(actor),
		Payload: events.TicketImportedPayload{
			ProjectKey: project.JiraKey,
			Title:      ticket.Title,
			Created:    created,
		},
	})
	return ticket, created, nil
}

// ticketFromIssue maps a Jira issue onto the local model. requestedKey is
// used when Jira omits the key.
func ticketFromIssue(requestedKey string, issue *jira.Issue) (*domain.Ticket, *domain.Project, error) {
	fields := issue.Fields
	if fields.Project == nil || strings.TrimSpace(fields.Project.Key) == "" {
		return nil, nil, apperrors.NewValidationError("project key not found in jira data", map[string]any{"id": requestedKey})
	}
	name := strings.TrimSpace(fields.Project.Name)
	if name == "" {
		name = "Unnamed Project"
	}
	project := &domain.Project{JiraKey: fields.Project.Key, Name: name}

	key := issue.Key
	if key == "" {
		key = requestedKey
	}
	now := time.Now().UTC()
	ticket := &domain.Ticket{
		JiraID:      key,
		Title:       fields.Summary,
		Description: fields.DescriptionText(),
		Status:      fields.Status.NameOrEmpty(),
		Assignee:    fields.Assignee.DisplayNameOrNil(),
		Reporter:    fields.Reporter.DisplayNameOrNil(),
		DueDate:     jira.ParseDate(fields.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p := fields.Priority.NameOrEmpty(); p != "" {
		ticket.Priority = &p
	}
	if t, ok := jira.ParseTime(fields.Created); ok {
		ticket.CreatedAt = t
	}
	if t, ok := jira.ParseTime(fields.Updated); ok {
		ticket.UpdatedAt = t
	}
	return ticket, project, nil
}

func (s *TicketService) attachComments(ctx context.Context, ticket *domain.Ticket) error {
	comments, err := s.comments.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return err
	}
	ticket.Comments = comments
	return nil
}

func (s *TicketService) invalidate(ctx context.Context, ticket *domain.Ticket) {
	if err := s.cache.Invalidate(ctx, ticket); err != nil {
		s.logger.Warn("ticket cache invalidation failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (s *TicketService) record(ctx context.Context, actor *domain.User, ticketID string, change domain.TicketChangeType, oldValue, newValue map[string]any) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangeType: change,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	if actor != nil {
		entry.ChangedByID = &actor.ID
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("history write failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*domain.Ticket, bool) { return nil, false }
func (noopCache) Set(context.Context, *domain.Ticket)                {}
func (noopCache) Invalidate(context.Context, *domain.Ticket) error   { return nil }

func userActor(user *domain.User) events.Actor {
	if user == nil {
		return events.Actor{}
	}
	id := user.ID
	return events.Actor{UserID: &id, Username: user.Username}
}

func isLocalID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
