package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-clock/internal/store"
)

// TemplateRepository provides PostgreSQL-backed template storage with
// pgvector cosine search.
type TemplateRepository struct {
	pool *Pool
}

// NewTemplateRepository creates a new PostgreSQL template repository.
func NewTemplateRepository(pool *Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// Upsert creates or overwrites the template for the employee.
func (r *TemplateRepository) Upsert(ctx context.Context, template *store.StoredTemplate) error {
	query := `
		INSERT INTO templates (id, employee_id, employee_name, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employee_id) DO UPDATE SET
			employee_name = EXCLUDED.employee_name,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		template.ID,
		template.EmployeeID,
		template.EmployeeName,
		pgvector.NewVector(template.Embedding),
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

// Get returns the template for an employee, or nil when not enrolled.
func (r *TemplateRepository) Get(ctx context.Context, employeeID string) (*store.StoredTemplate, error) {
	query := `
		SELECT id, employee_id, employee_name, embedding, updated_at
		FROM templates
		WHERE employee_id = $1
	`

	var template store.StoredTemplate
	var vec pgvector.Vector

	err := r.pool.QueryRow(ctx, query, employeeID).Scan(
		&template.ID,
		&template.EmployeeID,
		&template.EmployeeName,
		&vec,
		&template.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query template: %w", err)
	}

	template.Embedding = vec.Slice()
	return &template, nil
}

// FindNearest returns up to k templates ordered by descending cosine
// similarity. Exact scan; enrolled populations are small enough that an
// approximate index is not worth the fixed-dimension column it requires.
func (r *TemplateRepository) FindNearest(ctx context.Context, embedding []float32, k int) ([]store.TemplateMatch, error) {
	query := `
		SELECT id, employee_id, employee_name, embedding, updated_at,
		       1 - (embedding <=> $1) AS similarity
		FROM templates
		ORDER BY embedding <=> $1
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("nearest templates query: %w", err)
	}
	defer rows.Close()

	var matches []store.TemplateMatch
	for rows.Next() {
		var match store.TemplateMatch
		var vec pgvector.Vector
		if err := rows.Scan(
			&match.Template.ID,
			&match.Template.EmployeeID,
			&match.Template.EmployeeName,
			&vec,
			&match.Template.UpdatedAt,
			&match.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan template match: %w", err)
		}
		match.Template.Embedding = vec.Slice()
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate template matches: %w", err)
	}
	return matches, nil
}

// Count returns the number of enrolled templates.
func (r *TemplateRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM templates").Scan(&count); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return count, nil
}
