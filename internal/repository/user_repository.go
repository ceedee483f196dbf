package repository

import (
	"context"

	"github.com/spec-kit/issue-engine/internal/domain"
)

type userRepository struct {
	db querier
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, email, name, role, created_at)
        VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Role,
		user.CreatedAt,
	)
	return mapPgError(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, name, role, created_at FROM users WHERE id=$1`
	var user domain.User
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.CreatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	const query = `
        SELECT id, email, name, role, created_at FROM users
        WHERE ($1 = '' OR role = $1)
        ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.Role, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		result = append(result, user)
	}
	return result, rows.Err()
}
