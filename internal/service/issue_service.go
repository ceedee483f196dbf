package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-engine/internal/clock"
	"github.com/spec-kit/issue-engine/internal/domain"
	"github.com/spec-kit/issue-engine/internal/events"
	"github.com/spec-kit/issue-engine/internal/lock"
	"github.com/spec-kit/issue-engine/internal/observability"
	"github.com/spec-kit/issue-engine/internal/ratelimit"
	"github.com/spec-kit/issue-engine/internal/repository"
	"github.com/spec-kit/issue-engine/internal/scoring"
	apperrors "github.com/spec-kit/issue-engine/pkg/util/errorutil"
)

// Listing scopes.
const (
	ScopeReported = "reported"
	ScopeAssigned = "assigned"
	ScopeAll      = "all"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// IssueService coordinates issue intake, listing and status transitions.
type IssueService struct {
	store    repository.Store
	clock    clock.Clock
	mutator  *mutator
	limiter  ratelimit.Limiter
	validate *validator.Validate
	logger   *zap.Logger
	metrics  *observability.Metrics
	batch    int
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	Store            repository.Store
	Clock            clock.Clock
	Locker           lock.IssueLocker
	Nudger           Nudger
	Limiter          ratelimit.Limiter
	Logger           *zap.Logger
	Metrics          *observability.Metrics
	OperationTimeout time.Duration
	// ListBatchSize is how many rows each store read fetches while a
	// listing collects its filtered set.
	ListBatchSize int
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	batch := deps.ListBatchSize
	if batch <= 0 || batch > repository.DefaultListLimit {
		batch = repository.DefaultListLimit
	}
	return &IssueService{
		store:    deps.Store,
		clock:    clk,
		mutator:  newMutator(deps.Store, deps.Locker, deps.Nudger, deps.OperationTimeout, logger),
		limiter:  deps.Limiter,
		validate: newValidator(),
		logger:   logger,
		metrics:  deps.Metrics,
		batch:    batch,
	}
}

// CreateIssueInput describes a citizen report. The location is required;
// nil coordinates are rejected rather than read as (0,0).
type CreateIssueInput struct {
	Title       string               `json:"title" validate:"required,max=200"`
	Description string               `json:"description" validate:"max=5000"`
	Category    domain.IssueCategory `json:"category" validate:"required,issue_category"`
	Severity    int                  `json:"severity" validate:"required,min=1,max=5"`
	Latitude    *float64             `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude   *float64             `json:"longitude" validate:"required,min=-180,max=180"`
}

// ListIssuesInput narrows a listing. An empty Scope picks the caller's
// default: all for admins, assigned for engineers, reported for citizens.
type ListIssuesInput struct {
	Scope    string
	Statuses []domain.IssueStatus
	Category *domain.IssueCategory
	Limit    int
	Offset   int
}

// IssueView is an issue with its priority recomputed and SLA derived as of
// the read.
type IssueView struct {
	domain.Issue
	SLA scoring.SLAView
}

// IssuePage is one page of a priority-ordered listing.
type IssuePage struct {
	Items  []IssueView
	Total  int
	Limit  int
	Offset int
}

// StatsView is the admin overview.
type StatsView struct {
	Total      int
	InProgress int
	Resolved   int
	Breached   int
	ByStatus   map[domain.IssueStatus]int
	ByCategory map[domain.IssueCategory]int
}

// Create validates and stores a new REPORTED issue with its deadline, and
// queues the issue.created notification in the same transaction.
func (s *IssueService) Create(ctx context.Context, caller domain.Caller, input CreateIssueInput) (*IssueView, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticated("caller required")
	}
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.Category = domain.IssueCategory(strings.ToUpper(strings.TrimSpace(string(input.Category))))
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}
	if err := s.checkRateLimit(ctx, caller); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	issue := &domain.Issue{
		ID:            uuid.NewString(),
		Title:         input.Title,
		Description:   input.Description,
		Category:      input.Category,
		Severity:      input.Severity,
		Status:        domain.StatusReported,
		PriorityScore: scoring.Score(input.Severity, input.Category, 0),
		Latitude:      *input.Latitude,
		Longitude:     *input.Longitude,
		ReportedBy:    caller.ID,
		DueAt:         scoring.DueAt(now, input.Severity, input.Category),
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}

	event, err := events.New(events.EventIssueCreated, issue.ID, events.ActorFrom(caller), now, events.IssueCreatedPayload{
		ReporterID:    issue.ReportedBy,
		Title:         issue.Title,
		Category:      issue.Category,
		Severity:      issue.Severity,
		PriorityScore: issue.PriorityScore,
		DueAt:         issue.DueAt,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := s.mutator.apply(ctx, "", func(ctx context.Context, tx repository.Store) error {
		if err := tx.Issues().Create(ctx, issue); err != nil {
			return err
		}
		return enqueue(ctx, tx, event)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("issue reported",
		zap.String("issue_id", issue.ID),
		zap.String("reporter_id", caller.ID),
		zap.String("category", string(issue.Category)),
		zap.Int("severity", issue.Severity))
	view := s.view(*issue, now)
	return &view, nil
}

func (s *IssueService) checkRateLimit(ctx context.Context, caller domain.Caller) error {
	if s.limiter == nil || caller.IsAdmin() {
		return nil
	}
	allowed, retryAfter, err := s.limiter.Allow(ctx, caller.ID)
	if err != nil {
		s.logger.Warn("rate limiter unavailable; allowing request", zap.String("caller_id", caller.ID), zap.Error(err))
		return nil
	}
	if !allowed {
		return apperrors.NewRateLimited(retryAfter)
	}
	return nil
}

// List returns issues visible in the requested scope ordered by live
// priority, highest first, ties by age then id.
func (s *IssueService) List(ctx context.Context, caller domain.Caller, input ListIssuesInput) (*IssuePage, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticated("caller required")
	}
	scope := input.Scope
	if scope == "" {
		scope = defaultScope(caller.Role)
	}
	for _, status := range input.Statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": status})
		}
	}
	if input.Category != nil && !input.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown category", map[string]any{"category": *input.Category})
	}

	filter := repository.IssueFilter{
		Statuses: input.Statuses,
		Category: input.Category,
	}
	switch scope {
	case ScopeReported:
		filter.ReporterID = &caller.ID
	case ScopeAssigned:
		filter.AssigneeID = &caller.ID
	case ScopeAll:
		if !caller.IsAdmin() {
			return nil, apperrors.NewUnauthorized("only admins may list all issues")
		}
	default:
		return nil, apperrors.NewValidationError("unknown scope", map[string]any{"scope": scope})
	}

	issues, err := s.collect(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.clock.Now()
	views := make([]IssueView, len(issues))
	for i, issue := range issues {
		views[i] = s.view(issue, now)
	}
	sortByPriority(views)

	limit, offset := pageBounds(input.Limit, input.Offset)
	page := &IssuePage{Total: len(views), Limit: limit, Offset: offset, Items: []IssueView{}}
	if offset < len(views) {
		end := offset + limit
		if end > len(views) {
			end = len(views)
		}
		page.Items = views[offset:end]
	}
	return page, nil
}

// collect reads every issue matching filter. Priority depends on the read
// time, so the whole set is scored and sorted before it is paginated.
func (s *IssueService) collect(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	filter.Limit = s.batch
	var all []domain.Issue
	for {
		filter.Offset = len(all)
		batch, err := s.store.Issues().List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < s.batch {
			return all, nil
		}
	}
}

// Get returns one issue to its reporter, its assignee or an admin.
func (s *IssueService) Get(ctx context.Context, caller domain.Caller, issueID string) (*IssueView, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticated("caller required")
	}
	issue, err := loadIssue(ctx, s.store, issueID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !caller.IsAdmin() && issue.ReportedBy != caller.ID && !issue.AssignedTo(caller.ID) {
		return nil, apperrors.NewUnauthorized("issue not visible to caller")
	}
	view := s.view(*issue, s.clock.Now())
	return &view, nil
}

// Transition moves an issue one step forward. Only the engineer holding the
// active assignment may do so.
func (s *IssueService) Transition(ctx context.Context, caller domain.Caller, issueID string, target domain.IssueStatus) (*IssueView, error) {
	if !caller.Authenticated() {
		return nil, apperrors.NewUnauthenticated("caller required")
	}
	if !target.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": target})
	}

	var (
		updated domain.Issue
		from    domain.IssueStatus
		now     time.Time
	)
	err := s.mutator.apply(ctx, issueID, func(ctx context.Context, tx repository.Store) error {
		issue, err := loadIssue(ctx, tx, issueID)
		if err != nil {
			return err
		}
		if issue.Status.Terminal() {
			return apperrors.NewAlreadyResolved(issue.ID)
		}
		if !domain.CanTransition(issue.Status, target) {
			return apperrors.NewInvalidTransition(string(issue.Status), string(target))
		}
		if !issue.AssignedTo(caller.ID) {
			return apperrors.NewUnauthorized("only the assigned engineer may change status")
		}

		now = s.clock.Now()
		from = issue.Status
		applyStatus(issue, target, now)
		if err := tx.Issues().Update(ctx, issue); err != nil {
			return err
		}

		event, err := statusChangedEvent(issue, from, caller, now)
		if err != nil {
			return err
		}
		if err := enqueue(ctx, tx, event); err != nil {
			return err
		}
		updated = *issue
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(string(from), string(target))
	s.logger.Info("issue status changed",
		zap.String("issue_id", issueID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
		zap.String("caller_id", caller.ID))
	view := s.view(updated, now)
	return &view, nil
}

// Stats aggregates counts for admins.
func (s *IssueService) Stats(ctx context.Context, caller domain.Caller) (*StatsView, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.NewUnauthorized("only admins may view stats")
	}
	stats, err := s.store.Issues().Stats(ctx, s.clock.Now())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &StatsView{
		Total:      stats.Total,
		InProgress: stats.ByStatus[domain.StatusInProgress],
		Resolved:   stats.ByStatus[domain.StatusResolved],
		Breached:   stats.Breached,
		ByStatus:   stats.ByStatus,
		ByCategory: stats.ByCategory,
	}, nil
}

func (s *IssueService) view(issue domain.Issue, now time.Time) IssueView {
	return newIssueView(issue, now)
}

func newIssueView(issue domain.Issue, now time.Time) IssueView {
	issue.PriorityScore = scoring.ScoreAt(&issue, now)
	return IssueView{Issue: issue, SLA: scoring.Evaluate(&issue, now)}
}

// applyStatus sets the new status and the fields that follow from it.
func applyStatus(issue *domain.Issue, target domain.IssueStatus, now time.Time) {
	issue.Status = target
	issue.UpdatedAt = now
	if target == domain.StatusResolved {
		resolvedAt := now
		issue.ResolvedAt = &resolvedAt
	}
	issue.PriorityScore = scoring.ScoreAt(issue, now)
}

func statusChangedEvent(issue *domain.Issue, from domain.IssueStatus, caller domain.Caller, now time.Time) (events.Event, error) {
	return events.New(events.EventIssueStatusChanged, issue.ID, events.ActorFrom(caller), now, events.IssueStatusChangedPayload{
		ReporterID: issue.ReportedBy,
		Title:      issue.Title,
		EngineerID: issue.AssigneeID,
		OldStatus:  from,
		NewStatus:  issue.Status,
	})
}

func defaultScope(role domain.Role) string {
	switch role {
	case domain.RoleAdmin:
		return ScopeAll
	case domain.RoleEngineer:
		return ScopeAssigned
	default:
		return ScopeReported
	}
}

func sortByPriority(views []IssueView) {
	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
