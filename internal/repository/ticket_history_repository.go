package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// TicketHistoryRepository appends to and reads a ticket's audit trail.
type TicketHistoryRepository interface {
	Create(ctx context.Context, entry *domain.TicketHistory) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
}

const (
	insertHistorySQL = `
        INSERT INTO ticket_history (ticket_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at`

	listHistorySQL = `
        SELECT id, ticket_id, changed_by_id, change_type, old_value, new_value, created_at
        FROM ticket_history
        WHERE ticket_id = $1
        ORDER BY created_at, id`
)

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository returns the Postgres-backed audit trail.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

// Create stores entry and fills in its id and timestamp. Empty value maps are
// stored as NULL.
func (r *ticketHistoryRepository) Create(ctx context.Context, entry *domain.TicketHistory) error {
	return r.pool.QueryRow(ctx, insertHistorySQL,
		entry.TicketID,
		entry.ChangedByID,
		string(entry.ChangeType),
		jsonbOrNil(entry.OldValue),
		jsonbOrNil(entry.NewValue),
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	rows, err := r.pool.Query(ctx, listHistorySQL, ticketID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanHistory)
}

func scanHistory(row pgx.CollectableRow) (domain.TicketHistory, error) {
	var (
		entry      domain.TicketHistory
		changeType string
	)
	err := row.Scan(
		&entry.ID,
		&entry.TicketID,
		&entry.ChangedByID,
		&changeType,
		&entry.OldValue,
		&entry.NewValue,
		&entry.CreatedAt,
	)
	entry.ChangeType = domain.TicketChangeType(changeType)
	return entry, err
}

func jsonbOrNil(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	return m
}
