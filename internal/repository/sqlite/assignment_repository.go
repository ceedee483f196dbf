package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/repository"
)

type assignmentRepository struct {
	db sqlx.ExtContext
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
		INSERT INTO assignments (id, issue_id, engineer_id, assigned_by, strategy, created_at)
		VALUES (:id, :issue_id, :engineer_id, :assigned_by, :strategy, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, query, assignment)
	return mapError(err)
}

func (r *assignmentRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.Assignment, error) {
	const query = `
		SELECT id, issue_id, engineer_id, assigned_by, strategy, created_at
		FROM assignments WHERE issue_id = ?
		ORDER BY created_at ASC, rowid ASC`
	var assignments []domain.Assignment
	if err := sqlx.SelectContext(ctx, r.db, &assignments, query, issueID); err != nil {
		return nil, fmt.Errorf("listing assignments for %s: %w", issueID, err)
	}
	normaliseAssignments(assignments)
	return assignments, nil
}

func (r *assignmentRepository) List(ctx context.Context, limit, offset int) ([]domain.Assignment, error) {
	if offset < 0 {
		offset = 0
	}
	const query = `
		SELECT id, issue_id, engineer_id, assigned_by, strategy, created_at
		FROM assignments
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`
	var assignments []domain.Assignment
	if err := sqlx.SelectContext(ctx, r.db, &assignments, query, repository.NormaliseLimit(limit), offset); err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	normaliseAssignments(assignments)
	return assignments, nil
}

func normaliseAssignments(assignments []domain.Assignment) {
	for i := range assignments {
		assignments[i].CreatedAt = assignments[i].CreatedAt.UTC()
	}
}
