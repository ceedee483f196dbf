package dto

import (
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

// CreateEngineerRequest payload.
type CreateEngineerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserResponse is a directory entry.
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}
