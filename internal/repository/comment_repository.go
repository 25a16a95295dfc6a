package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// CommentRepository persists ticket comment threads.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
	ListByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository builds repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        WITH inserted AS (
            INSERT INTO comments (ticket_id, author_id, body)
            VALUES ($1,$2,$3)
            RETURNING id, author_id, created_at
        )
        SELECT i.id, u.username, i.created_at
        FROM inserted i LEFT JOIN users u ON u.id = i.author_id`
	return r.pool.QueryRow(ctx, query,
		comment.TicketID,
		comment.AuthorID,
		comment.Body,
	).Scan(&comment.ID, &comment.AuthorName, &comment.CreatedAt)
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	byTicket, err := r.ListByTickets(ctx, []string{ticketID})
	if err != nil {
		return nil, err
	}
	return byTicket[ticketID], nil
}

// ListByTickets returns each ticket's thread oldest first.
func (r *commentRepository) ListByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.Comment, error) {
	result := make(map[string][]domain.Comment, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT c.id, c.ticket_id, c.author_id, u.username, c.body, c.created_at
        FROM comments c LEFT JOIN users u ON u.id = c.author_id
        WHERE c.ticket_id = ANY($1::uuid[])
        ORDER BY c.created_at ASC, c.id ASC`
	rows, err := r.pool.Query(ctx, query, ticketIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments, err := scanComments(rows)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		result[c.TicketID] = append(result[c.TicketID], c)
	}
	return result, nil
}

func scanComments(rows pgx.Rows) ([]domain.Comment, error) {
	var result []domain.Comment
	for rows.Next() {
		var c domain.Comment
		if err := rows.Scan(&c.ID, &c.TicketID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
