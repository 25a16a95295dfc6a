package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

// ProjectRepository stores tracker projects.
type ProjectRepository interface {
	GetOrCreate(ctx context.Context, project *domain.Project) error
	List(ctx context.Context) ([]domain.Project, error)
}

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository builds repository.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

// GetOrCreate fills project.ID, inserting a row for an unseen jira key. The
// stored name wins over the one passed in.
func (r *projectRepository) GetOrCreate(ctx context.Context, project *domain.Project) error {
	const query = `
        INSERT INTO projects (jira_key, name, description)
        VALUES ($1,$2,$3)
        ON CONFLICT (jira_key) DO UPDATE SET jira_key=EXCLUDED.jira_key
        RETURNING id, name, description`
	return r.pool.QueryRow(ctx, query,
		project.JiraKey,
		project.Name,
		project.Description,
	).Scan(&project.ID, &project.Name, &project.Description)
}

func (r *projectRepository) List(ctx context.Context) ([]domain.Project, error) {
	const query = `SELECT id, jira_key, name, description FROM projects ORDER BY jira_key ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.JiraKey, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
