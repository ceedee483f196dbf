package service_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/service"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

func TestCreateEngineer(t *testing.T) {
	h := newHarness(t)
	input := service.CreateEngineerInput{Name: "Nina", Email: " Nina@City.Example "}

	_, err := h.users.CreateEngineer(h.ctx, callerOf(h.citizen), input)
	requireCode(t, err, apperrors.CodeUnauthorized)

	user, err := h.users.CreateEngineer(h.ctx, callerOf(h.admin), input)
	require.NoError(t, err)
	require.Equal(t, domain.RoleEngineer, user.Role)
	require.Equal(t, "nina@city.example", user.Email)

	_, err = h.users.CreateEngineer(h.ctx, callerOf(h.admin), input)
	requireCode(t, err, apperrors.CodeConflict)

	_, err = h.users.CreateEngineer(h.ctx, callerOf(h.admin), service.CreateEngineerInput{Name: "Bad", Email: "not-an-email"})
	requireCode(t, err, apperrors.CodeValidation)

	engineers, err := h.users.List(h.ctx, callerOf(h.admin), domain.RoleEngineer)
	require.NoError(t, err)
	require.Len(t, engineers, 2)
	require.Equal(t, h.engineer.ID, engineers[0].ID)
}

func TestListUsers(t *testing.T) {
	h := newHarness(t)

	all, err := h.users.List(h.ctx, callerOf(h.admin), "")
	require.NoError(t, err)
	require.Len(t, all, 3)

	_, err = h.users.List(h.ctx, callerOf(h.admin), "janitor")
	requireCode(t, err, apperrors.CodeValidation)

	_, err = h.users.List(h.ctx, callerOf(h.engineer), "")
	requireCode(t, err, apperrors.CodeUnauthorized)
}
