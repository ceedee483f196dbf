package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/service"
	"github.com/spec-kit/issue-engine/internal/testutil"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

func TestManualAssignChecks(t *testing.T) {
	h := newHarness(t)
	admin := callerOf(h.admin)
	issue := h.report(t, h.citizen, "Pothole", 4, domain.CategoryRoad)

	_, err := h.assignments.ManualAssign(h.ctx, callerOf(h.engineer), issue.ID, h.engineer.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = h.assignments.ManualAssign(h.ctx, admin, issue.ID, "ghost")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.assignments.ManualAssign(h.ctx, admin, issue.ID, h.citizen.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.assignments.ManualAssign(h.ctx, admin, "ghost", h.engineer.ID)
	requireCode(t, err, apperrors.CodeNotFound)

	result, err := h.assignments.ManualAssign(h.ctx, admin, issue.ID, h.engineer.ID)
	require.NoError(t, err)
	require.True(t, result.Verified)
	require.Equal(t, domain.StatusVerified, result.Issue.Status)
	require.Equal(t, h.engineer.ID, *result.Issue.AssigneeID)
	require.Equal(t, h.admin.ID, result.Assignment.AssignedBy)
	require.Equal(t, domain.StrategyManual, result.Assignment.Strategy)
	require.True(t, result.Issue.DueAt.Equal(issue.DueAt))
}

func TestReassignmentAppendsHistory(t *testing.T) {
	h := newHarness(t)
	admin := callerOf(h.admin)
	second := testutil.SeedUser(t, h.store, "sid", domain.RoleEngineer, epoch)
	issue := h.report(t, h.citizen, "Leaking hydrant", 3, domain.CategoryWater)

	first, err := h.assignments.ManualAssign(h.ctx, admin, issue.ID, h.engineer.ID)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	again, err := h.assignments.ManualAssign(h.ctx, admin, issue.ID, second.ID)
	require.NoError(t, err)
	require.False(t, again.Verified)
	require.Equal(t, domain.StatusVerified, again.Issue.Status)

	h.clock.Advance(time.Minute)
	_, err = h.assignments.AutoAssign(h.ctx, admin, issue.ID)
	require.NoError(t, err)

	history, err := h.assignments.History(h.ctx, admin, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, first.Assignment.ID, history[0].ID)
	require.Equal(t, second.ID, history[1].EngineerID)

	global, err := h.assignments.GlobalHistory(h.ctx, admin, 2, 0)
	require.NoError(t, err)
	require.Len(t, global, 2)
	require.Equal(t, history[2].ID, global[0].ID)

	_, err = h.assignments.History(h.ctx, callerOf(h.citizen), issue.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = h.assignments.History(h.ctx, admin, "ghost")
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestAutoAssignBalancesLoad(t *testing.T) {
	h := newHarness(t)
	admin := callerOf(h.admin)
	busy := h.engineer
	idle := testutil.SeedUser(t, h.store, "ivan", domain.RoleEngineer, epoch)

	for i := 0; i < 2; i++ {
		issue := h.report(t, h.admin, "Backlog", 2, domain.CategoryOther)
		_, err := h.assignments.ManualAssign(h.ctx, admin, issue.ID, busy.ID)
		require.NoError(t, err)
	}

	issue := h.report(t, h.citizen, "Dark street", 3, domain.CategoryLighting)
	result, err := h.assignments.AutoAssign(h.ctx, admin, issue.ID)
	require.NoError(t, err)
	require.Equal(t, idle.ID, result.Assignment.EngineerID)

	// The issue does not count against its own holder when re-balanced.
	again, err := h.assignments.AutoAssign(h.ctx, admin, issue.ID)
	require.NoError(t, err)
	require.Equal(t, idle.ID, again.Assignment.EngineerID)

	loads, err := h.assignments.Workload(h.ctx, admin)
	require.NoError(t, err)
	require.Len(t, loads, 2)
	require.Equal(t, idle.ID, loads[0].Engineer.ID)
	require.Equal(t, 1, loads[0].OpenCount)
	require.Equal(t, 2, loads[1].OpenCount)
}

func TestAutoAssignRejections(t *testing.T) {
	h := newHarness(t)
	admin := callerOf(h.admin)
	issue := h.report(t, h.citizen, "Pothole", 4, domain.CategoryRoad)

	_, err := h.assignments.AutoAssign(h.ctx, callerOf(h.citizen), issue.ID)
	requireCode(t, err, apperrors.CodeUnauthorized)

	_, err = h.assignments.AutoAssign(h.ctx, admin, "ghost")
	requireCode(t, err, apperrors.CodeNotFound)

	_, err = h.assignments.AutoAssign(h.ctx, admin, issue.ID)
	require.NoError(t, err)
	for _, target := range []domain.IssueStatus{domain.StatusInProgress, domain.StatusResolved} {
		_, err = h.issues.Transition(h.ctx, callerOf(h.engineer), issue.ID, target)
		require.NoError(t, err)
	}

	_, err = h.assignments.AutoAssign(h.ctx, admin, issue.ID)
	requireCode(t, err, apperrors.CodeAlreadyResolved)
	_, err = h.assignments.ManualAssign(h.ctx, admin, issue.ID, h.engineer.ID)
	requireCode(t, err, apperrors.CodeAlreadyResolved)
}

func TestAutoAssignWithoutEngineers(t *testing.T) {
	store := testutil.NewTestStore(t)
	admin := testutil.SeedUser(t, store, "root", domain.RoleAdmin, epoch)
	assignments := service.NewAssignmentService(service.AssignmentDependencies{Store: store})

	_, err := assignments.AutoAssign(context.Background(), callerOf(admin), "any-issue")
	requireCode(t, err, apperrors.CodeNoEligibleEngineers)
}
