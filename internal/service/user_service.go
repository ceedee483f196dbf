package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/repository"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

// UserService manages the user directory the balancer and role fan-out
// read from.
type UserService struct {
	store    repository.Store
	clock    clock.Clock
	validate *validator.Validate
	logger   *zap.Logger
}

// NewUserService creates the service.
func NewUserService(store repository.Store, clk clock.Clock, logger *zap.Logger) *UserService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: store, clock: clk, validate: newValidator(), logger: logger}
}

// CreateUserInput describes a directory entry.
type CreateUserInput struct {
	Name  string      `json:"name" validate:"required,max=120"`
	Email string      `json:"email" validate:"required,email,max=254"`
	Role  domain.Role `json:"role" validate:"required,role"`
}

// CreateEngineerInput describes a new engineer.
type CreateEngineerInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateUser adds a user of any role. It performs no caller check and is
// meant for operator tooling.
func (s *UserService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Role = domain.Role(strings.ToUpper(strings.TrimSpace(string(input.Role))))
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:        uuid.NewString(),
		Email:     input.Email,
		Name:      input.Name,
		Role:      input.Role,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": user.Email})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// CreateEngineer adds an engineer to the assignment pool.
func (s *UserService) CreateEngineer(ctx context.Context, caller domain.Caller, input CreateEngineerInput) (*domain.User, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only admins may add engineers")
	}
	return s.CreateUser(ctx, CreateUserInput{Name: input.Name, Email: input.Email, Role: domain.RoleEngineer})
}

// List returns directory entries, optionally restricted to one role.
func (s *UserService) List(ctx context.Context, caller domain.Caller, role domain.Role) ([]domain.User, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only admins may list users")
	}
	role = domain.Role(strings.ToUpper(strings.TrimSpace(string(role))))
	if role != "" && !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	users, err := s.store.Users().ListByRole(ctx, role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}
