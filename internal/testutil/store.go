// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/persistence"
	"github.com/spec-kit/issue-engine/internal/repository"
	"github.com/spec-kit/issue-engine/internal/repository/sqlite"
)

// NewTestStore creates an in-memory SQLite store with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) repository.Store {
	t.Helper()

	db, err := persistence.OpenSQLite(context.Background(), ":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	s := sqlite.NewStore(db)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

// SeedUser inserts a directory user with the given role and returns it.
func SeedUser(t *testing.T, store repository.Store, name string, role domain.Role, createdAt time.Time) domain.User {
	t.Helper()

	user := domain.User{
		ID:        uuid.NewString(),
		Email:     name + "@example.test",
		Name:      name,
		Role:      role,
		CreatedAt: createdAt.UTC(),
	}
	if err := store.Users().Create(context.Background(), &user); err != nil {
		t.Fatalf("seeding user %s: %v", name, err)
	}
	return user
}
