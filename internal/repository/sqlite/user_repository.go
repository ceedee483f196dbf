package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/issue-engine/internal/domain"
)

type userRepository struct {
	db sqlx.ExtContext
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (id, email, name, role, created_at)
		VALUES (:id, :email, :name, :role, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, r.db, query, user)
	return mapError(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	const query = `SELECT id, email, name, role, created_at FROM users WHERE id = ?`
	if err := sqlx.GetContext(ctx, r.db, &user, query, id); err != nil {
		return nil, mapError(err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	const query = `
		SELECT id, email, name, role, created_at FROM users
		WHERE (? = '' OR role = ?)
		ORDER BY created_at ASC, id ASC`
	var users []domain.User
	if err := sqlx.SelectContext(ctx, r.db, &users, query, string(role), string(role)); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	for i := range users {
		users[i].CreatedAt = users[i].CreatedAt.UTC()
	}
	return users, nil
}
