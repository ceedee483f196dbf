package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/repository"
)

const issueColumns = `id, title, description, category, severity, status, priority_score,
		latitude, longitude, reported_by, assignee_id, due_at, created_at, updated_at,
		resolved_at, version`

type issueRepository struct {
	db sqlx.ExtContext
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
		INSERT INTO issues (
			id, title, description, category, severity, status, priority_score,
			latitude, longitude, reported_by, assignee_id, due_at, created_at, updated_at,
			resolved_at, version
		) VALUES (
			:id, :title, :description, :category, :severity, :status, :priority_score,
			:latitude, :longitude, :reported_by, :assignee_id, :due_at, :created_at, :updated_at,
			:resolved_at, :version
		)`
	_, err := sqlx.NamedExecContext(ctx, r.db, query, issue)
	return mapError(err)
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	const query = `
		UPDATE issues SET status = ?, priority_score = ?, assignee_id = ?, updated_at = ?,
			resolved_at = ?, version = version + 1
		WHERE id = ? AND version = ?`
	result, err := r.db.ExecContext(ctx, query,
		issue.Status,
		issue.PriorityScore,
		issue.AssigneeID,
		issue.UpdatedAt,
		issue.ResolvedAt,
		issue.ID,
		issue.Version,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: issue %s changed since version %d", repository.ErrConflict, issue.ID, issue.Version)
	}
	issue.Version++
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	var issue domain.Issue
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = ?`
	if err := sqlx.GetContext(ctx, r.db, &issue, query, id); err != nil {
		return nil, mapError(err)
	}
	normaliseIssue(&issue)
	return &issue, nil
}

func (r *issueRepository) List(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	var (
		where []string
		args  []any
	)
	if filter.ReporterID != nil {
		where = append(where, "reported_by = ?")
		args = append(args, *filter.ReporterID)
	}
	if filter.AssigneeID != nil {
		where = append(where, "assignee_id = ?")
		args = append(args, *filter.AssigneeID)
	}
	if filter.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *filter.Category)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + issueColumns + ` FROM issues`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += " ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, repository.NormaliseLimit(filter.Limit), offset)

	var issues []domain.Issue
	if err := sqlx.SelectContext(ctx, r.db, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	for i := range issues {
		normaliseIssue(&issues[i])
	}
	return issues, nil
}

func (r *issueRepository) OpenCountsByAssignee(ctx context.Context) (map[string]int, error) {
	const query = `
		SELECT assignee_id, COUNT(*) AS open_count FROM issues
		WHERE assignee_id IS NOT NULL AND status <> ?
		GROUP BY assignee_id`
	var rows []struct {
		EngineerID string `db:"assignee_id"`
		OpenCount  int    `db:"open_count"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, domain.StatusResolved); err != nil {
		return nil, fmt.Errorf("counting open issues: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.EngineerID] = row.OpenCount
	}
	return counts, nil
}

func (r *issueRepository) Stats(ctx context.Context, now time.Time) (domain.IssueStats, error) {
	var rows []struct {
		Status   domain.IssueStatus   `db:"status"`
		Category domain.IssueCategory `db:"category"`
		Total    int                  `db:"total"`
		Breached int                  `db:"breached"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, repository.StatsQuery("?"), now); err != nil {
		return domain.IssueStats{}, fmt.Errorf("aggregating issues: %w", err)
	}
	acc := repository.NewStatsAccumulator()
	for _, row := range rows {
		acc.Add(row.Status, row.Category, row.Total, row.Breached)
	}
	return acc.Result(), nil
}

func normaliseIssue(issue *domain.Issue) {
	issue.DueAt = issue.DueAt.UTC()
	issue.CreatedAt = issue.CreatedAt.UTC()
	issue.UpdatedAt = issue.UpdatedAt.UTC()
	if issue.ResolvedAt != nil {
		resolved := issue.ResolvedAt.UTC()
		issue.ResolvedAt = &resolved
	}
}
