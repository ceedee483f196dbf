package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

const issueColumns = `id, title, description, category, severity, status, priority_score,
               latitude, longitude, reported_by, assignee_id, due_at, created_at, updated_at,
               resolved_at, version`

type issueRepository struct {
	db querier
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (id, title, description, category, severity, status, priority_score,
            latitude, longitude, reported_by, assignee_id, due_at, created_at, updated_at, resolved_at, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err := r.db.Exec(ctx, query,
		issue.ID,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Severity,
		issue.Status,
		issue.PriorityScore,
		issue.Latitude,
		issue.Longitude,
		issue.ReportedBy,
		issue.AssigneeID,
		issue.DueAt,
		issue.CreatedAt,
		issue.UpdatedAt,
		issue.ResolvedAt,
		issue.Version,
	)
	return mapPgError(err)
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	const query = `
        UPDATE issues SET status=$1, priority_score=$2, assignee_id=$3, updated_at=$4,
            resolved_at=$5, version=version+1
        WHERE id=$6 AND version=$7`
	cmd, err := r.db.Exec(ctx, query,
		issue.Status,
		issue.PriorityScore,
		issue.AssigneeID,
		issue.UpdatedAt,
		issue.ResolvedAt,
		issue.ID,
		issue.Version,
	)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: issue %s changed since version %d", ErrConflict, issue.ID, issue.Version)
	}
	issue.Version++
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id=$1`
	issue, err := scanIssue(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return issue, nil
}

func (r *issueRepository) List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reported_by=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE %s ORDER BY created_at ASC, id ASC LIMIT %d OFFSET %d`,
		issueColumns, strings.Join(clauses, " AND "), NormaliseLimit(filter.Limit), offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

func (r *issueRepository) OpenCountsByAssignee(ctx context.Context) (map[string]int, error) {
	const query = `
        SELECT assignee_id, COUNT(*) FROM issues
        WHERE assignee_id IS NOT NULL AND status <> $1
        GROUP BY assignee_id`
	rows, err := r.db.Query(ctx, query, domain.StatusResolved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			engineerID string
			count      int
		)
		if err := rows.Scan(&engineerID, &count); err != nil {
			return nil, err
		}
		counts[engineerID] = count
	}
	return counts, rows.Err()
}

func (r *issueRepository) Stats(ctx context.Context, now time.Time) (domain.IssueStats, error) {
	rows, err := r.db.Query(ctx, StatsQuery("$1"), now)
	if err != nil {
		return domain.IssueStats{}, err
	}
	defer rows.Close()

	acc := NewStatsAccumulator()
	for rows.Next() {
		var (
			status          domain.IssueStatus
			category        domain.IssueCategory
			total, breached int
		)
		if err := rows.Scan(&status, &category, &total, &breached); err != nil {
			return domain.IssueStats{}, err
		}
		acc.Add(status, category, total, breached)
	}
	return acc.Result(), rows.Err()
}

func scanIssue(row scanner) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Category,
		&issue.Severity,
		&issue.Status,
		&issue.PriorityScore,
		&issue.Latitude,
		&issue.Longitude,
		&issue.ReportedBy,
		&issue.AssigneeID,
		&issue.DueAt,
		&issue.CreatedAt,
		&issue.UpdatedAt,
		&issue.ResolvedAt,
		&issue.Version,
	); err != nil {
		return nil, err
	}
	issue.DueAt = issue.DueAt.UTC()
	issue.CreatedAt = issue.CreatedAt.UTC()
	issue.UpdatedAt = issue.UpdatedAt.UTC()
	issue.ResolvedAt = utcPtr(issue.ResolvedAt)
	return &issue, nil
}
