package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/lock"
	"github.com/spec-kit/issue-engine/internal/observability"
	"github.com/spec-kit/issue-engine/internal/repository"
	"github.com/spec-kit/issue-engine/internal/scoring"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

// AssignmentService handles issue assignment operations.
type AssignmentService struct {
	store   repository.Store
	clock   clock.Clock
	mutator *mutator
	logger  *zap.Logger
	metrics *observability.Metrics
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	Store            repository.Store
	Clock            clock.Clock
	Locker           lock.IssueLocker
	Nudger           Nudger
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	OperationTimeout time.Duration
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &AssignmentService{
		store:   deps.Store,
		clock:   clk,
		mutator: newMutator(deps.Store, deps.Locker, deps.Nudger, deps.OperationTimeout, logger),
		logger:  logger,
		metrics: deps.Metrics,
	}
}

// AssignmentResult is the issue after assignment together with the new
// history row.
type AssignmentResult struct {
	Issue      IssueView
	Assignment domain.Assignment
	// Verified is set when the assignment moved the issue out of REPORTED.
	Verified bool
}

// ManualAssign gives issueID to the named engineer.
func (s *AssignmentService) ManualAssign(ctx context.Context, caller domain.Caller, issueID, engineerID string) (*AssignmentResult, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only admins may assign issues")
	}
	engineer, err := s.loadEngineer(ctx, engineerID)
	if err != nil {
		return nil, err
	}

	var result AssignmentResult
	err = s.mutator.apply(ctx, issueID, func(ctx context.Context, tx repository.Store) error {
		issue, err := loadIssue(ctx, tx, issueID)
		if err != nil {
			return err
		}
		if issue.Status.Terminal() {
			return apperrors.NewAlreadyResolved(issue.ID)
		}
		result, err = s.assign(ctx, tx, caller, issue, *engineer, domain.StrategyManual)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAssigned(caller, result)
	return &result, nil
}

// AutoAssign gives issueID to the least-loaded engineer. Counts are read
// under the issue lock inside the write transaction, and the issue itself
// does not count against its current holder.
func (s *AssignmentService) AutoAssign(ctx context.Context, caller domain.Caller, issueID string) (*AssignmentResult, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only admins may assign issues")
	}
	engineers, err := s.store.Users().ListByRole(ctx, domain.RoleEngineer)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(engineers) == 0 {
		return nil, apperrors.NewNoEligibleEngineers()
	}

	var result AssignmentResult
	err = s.mutator.apply(ctx, issueID, func(ctx context.Context, tx repository.Store) error {
		issue, err := loadIssue(ctx, tx, issueID)
		if err != nil {
			return err
		}
		if issue.Status.Terminal() {
			return apperrors.NewAlreadyResolved(issue.ID)
		}

		pool, err := tx.Users().ListByRole(ctx, domain.RoleEngineer)
		if err != nil {
			return err
		}
		counts, err := tx.Issues().OpenCountsByAssignee(ctx)
		if err != nil {
			return err
		}
		if issue.AssigneeID != nil && counts[*issue.AssigneeID] > 0 {
			counts[*issue.AssigneeID]--
		}
		pick, ok := PickLeastLoaded(BuildLoads(pool, counts))
		if !ok {
			return apperrors.NewNoEligibleEngineers()
		}
		result, err = s.assign(ctx, tx, caller, issue, pick.Engineer, domain.StrategyAuto)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordAssigned(caller, result)
	return &result, nil
}

// History returns an issue's assignments, oldest first.
func (s *AssignmentService) History(ctx context.Context, caller domain.Caller, issueID string) ([]domain.Assignment, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only admins may view assignment history")
	}
	if _, err := loadIssue(ctx, s.store, issueID); err != nil {
		return nil, apperrors.MapError(err)
	}
	history, err := s.store.Assignments().ListByIssue(ctx, issueID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// GlobalHistory returns assignments across all issues, newest first.
func (s *AssignmentService) GlobalHistory(ctx context.Context, caller domain.Caller, limit, offset int) ([]domain.Assignment, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only admins may view assignment history")
	}
	if offset < 0 {
		offset = 0
	}
	history, err := s.store.Assignments().List(ctx, repository.NormaliseLimit(limit), offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

// Workload returns the balancer's current view of every engineer, least
// loaded first.
func (s *AssignmentService) Workload(ctx context.Context, caller domain.Caller) ([]EngineerLoad, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only admins may view workload")
	}
	engineers, err := s.store.Users().ListByRole(ctx, domain.RoleEngineer)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts, err := s.store.Issues().OpenCountsByAssignee(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return BuildLoads(engineers, counts), nil
}

func (s *AssignmentService) loadEngineer(ctx context.Context, engineerID string) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, engineerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("engineer", map[string]any{"engineer_id": engineerID})
		}
		return nil, apperrors.MapError(err)
	}
	if user.Role != domain.RoleEngineer {
		return nil, apperrors.NewNotFound("engineer", map[string]any{"engineer_id": engineerID})
	}
	return user, nil
}

// assign appends the history row, moves the active assignment and, for a
// freshly reported issue, verifies it. Events for both changes are queued
// in the same transaction.
func (s *AssignmentService) assign(ctx context.Context, tx repository.Store, caller domain.Caller, issue *domain.Issue, engineer domain.User, strategy domain.AssignmentStrategy) (AssignmentResult, error) {
	now := s.clock.Now()
	assignment := domain.Assignment{
		ID:         uuid.NewString(),
		IssueID:    issue.ID,
		EngineerID: engineer.ID,
		AssignedBy: caller.ID,
		Strategy:   strategy,
		CreatedAt:  now,
	}
	if err := tx.Assignments().Create(ctx, &assignment); err != nil {
		return AssignmentResult{}, err
	}

	from := issue.Status
	engineerID := engineer.ID
	issue.AssigneeID = &engineerID
	if from == domain.StatusReported {
		applyStatus(issue, domain.StatusVerified, now)
	} else {
		issue.UpdatedAt = now
		issue.PriorityScore = scoring.ScoreAt(issue, now)
	}
	if err := tx.Issues().Update(ctx, issue); err != nil {
		return AssignmentResult{}, err
	}

	assigned, err := events.New(events.EventIssueAssigned, issue.ID, events.ActorFrom(caller), now, events.IssueAssignedPayload{
		ReporterID:   issue.ReportedBy,
		Title:        issue.Title,
		AssignmentID: assignment.ID,
		EngineerID:   engineer.ID,
		EngineerName: engineer.Name,
		Strategy:     strategy,
	})
	if err != nil {
		return AssignmentResult{}, err
	}
	queued := []events.Event{assigned}
	if issue.Status != from {
		changed, err := statusChangedEvent(issue, from, caller, now)
		if err != nil {
			return AssignmentResult{}, err
		}
		queued = append(queued, changed)
	}
	if err := enqueue(ctx, tx, queued...); err != nil {
		return AssignmentResult{}, err
	}

	return AssignmentResult{
		Issue:      newIssueView(*issue, now),
		Assignment: assignment,
		Verified:   issue.Status != from,
	}, nil
}

func (s *AssignmentService) recordAssigned(caller domain.Caller, result AssignmentResult) {
	s.metrics.RecordAssignment(string(result.Assignment.Strategy))
	if result.Verified {
		s.metrics.RecordTransition(string(domain.StatusReported), string(domain.StatusVerified))
	}
	s.logger.Info("issue assigned",
		zap.String("issue_id", result.Assignment.IssueID),
		zap.String("engineer_id", result.Assignment.EngineerID),
		zap.String("strategy", string(result.Assignment.Strategy)),
		zap.String("caller_id", caller.ID))
}
