package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/issue-engine/internal/domain"
)

type assignmentRepository struct {
	db querier
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *domain.Assignment) error {
	const query = `
        INSERT INTO assignments (id, issue_id, engineer_id, assigned_by, strategy, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := r.db.Exec(ctx, query,
		assignment.ID,
		assignment.IssueID,
		assignment.EngineerID,
		assignment.AssignedBy,
		assignment.Strategy,
		assignment.CreatedAt,
	)
	return mapPgError(err)
}

func (r *assignmentRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.Assignment, error) {
	const query = `
        SELECT id, issue_id, engineer_id, assigned_by, strategy, created_at
        FROM assignments WHERE issue_id=$1
        ORDER BY created_at ASC, seq ASC`
	rows, err := r.db.Query(ctx, query, issueID)
	if err != nil {
		return nil, err
	}
	return scanAssignments(rows)
}

func (r *assignmentRepository) List(ctx context.Context, limit, offset int) ([]domain.Assignment, error) {
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, issue_id, engineer_id, assigned_by, strategy, created_at
        FROM assignments
        ORDER BY created_at DESC, seq DESC
        LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, NormaliseLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	return scanAssignments(rows)
}

func scanAssignments(rows pgx.Rows) ([]domain.Assignment, error) {
	defer rows.Close()
	var result []domain.Assignment
	for rows.Next() {
		var assignment domain.Assignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.IssueID,
			&assignment.EngineerID,
			&assignment.AssignedBy,
			&assignment.Strategy,
			&assignment.CreatedAt,
		); err != nil {
			return nil, err
		}
		assignment.CreatedAt = assignment.CreatedAt.UTC()
		result = append(result, assignment)
	}
	return result, rows.Err()
}
