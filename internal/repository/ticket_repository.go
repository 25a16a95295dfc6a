package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// TicketFilter narrows ticket listings. Status and Assignee are
// case-insensitive substring matches.
type TicketFilter struct {
	Status   *string
	Assignee *string
	Limit    int
	Offset   int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Upsert(ctx context.Context, ticket *domain.Ticket) (bool, error)
	UpdateStatus(ctx context.Context, id, status string) (*domain.Ticket, error)
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByJiraID(ctx context.Context, jiraID string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `t.id, t.project_id, p.jira_key, t.jira_id, t.title, t.description, t.status,
               t.priority, t.assignee, t.reporter, t.created_at, t.updated_at, t.due_date`

const ticketFrom = `FROM tickets t JOIN projects p ON p.id = t.project_id`

// Upsert inserts the ticket or refreshes it by jira_id. The returned flag is
// true when a new row was created.
func (r *ticketRepository) Upsert(ctx context.Context, ticket *domain.Ticket) (bool, error) {
	const query = `
        INSERT INTO tickets (project_id, jira_id, title, description, status, priority, assignee, reporter, created_at, updated_at, due_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (jira_id) DO UPDATE SET
            project_id=EXCLUDED.project_id, title=EXCLUDED.title, description=EXCLUDED.description,
            status=EXCLUDED.status, priority=EXCLUDED.priority, assignee=EXCLUDED.assignee,
            reporter=EXCLUDED.reporter, updated_at=EXCLUDED.updated_at, due_date=EXCLUDED.due_date
        RETURNING id, created_at, updated_at, (xmax = 0) AS inserted`
	var created bool
	err := r.pool.QueryRow(ctx, query,
		ticket.ProjectID,
		ticket.JiraID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Assignee,
		ticket.Reporter,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.DueDate,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt, &created)
	return created, err
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id, status string) (*domain.Ticket, error) {
	const query = `UPDATE tickets SET status=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` ` + ticketFrom + ` WHERE t.id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByJiraID(ctx context.Context, jiraID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` ` + ticketFrom + ` WHERE t.jira_id=$1`
	return r.fetchSingle(ctx, query, jiraID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses, args := filter.clauses()

	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE %s ORDER BY t.updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, ticketFrom, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (f TicketFilter) clauses() ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if f.Status != nil && strings.TrimSpace(*f.Status) != "" {
		args = append(args, likePattern(*f.Status))
		clauses = append(clauses, fmt.Sprintf("t.status ILIKE $%d", len(args)))
	}
	if f.Assignee != nil && strings.TrimSpace(*f.Assignee) != "" {
		args = append(args, likePattern(*f.Assignee))
		clauses = append(clauses, fmt.Sprintf("t.assignee ILIKE $%d", len(args)))
	}
	return clauses, args
}

func likePattern(term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(term))
	return "%" + escaped + "%"
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ProjectID,
			&ticket.ProjectKey,
			&ticket.JiraID,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Assignee,
			&ticket.Reporter,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.DueDate,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
