package scoring

import (
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

// SLAState classifies an issue against its deadline.
type SLAState string

const (
	SLAOnTrack  SLAState = "ON_TRACK"
	SLABreached SLAState = "BREACHED"
	SLAMet      SLAState = "MET"
)

var responseWindows = map[int]time.Duration{
	5: 4 * time.Hour,
	4: 12 * time.Hour,
	3: 24 * time.Hour,
	2: 48 * time.Hour,
	1: 72 * time.Hour,
}

// ResponseWindow maps severity and category to the time allowed before an
// issue must be resolved. WATER and SANITATION get three quarters of the
// severity window. Severities outside 1..5 are clamped.
func ResponseWindow(severity int, category domain.IssueCategory) time.Duration {
	if severity < 1 {
		severity = 1
	}
	if severity > 5 {
		severity = 5
	}
	window := responseWindows[severity]
	switch category {
	case domain.CategoryWater, domain.CategorySanitation:
		window = window * 3 / 4
	}
	return window
}

// DueAt is computed once when the issue is created and never rewritten.
func DueAt(createdAt time.Time, severity int, category domain.IssueCategory) time.Time {
	return createdAt.Add(ResponseWindow(severity, category))
}

// Remaining returns dueAt - now. Zero or negative means breached.
func Remaining(dueAt, now time.Time) time.Duration {
	return dueAt.Sub(now)
}

// SLAView is the derived deadline state computed on read.
type SLAView struct {
	DueAt     time.Time
	Remaining time.Duration
	State     SLAState
}

// Evaluate derives the SLA view for an issue as of now. An unresolved
// issue with exactly zero time left counts as breached. Resolved issues
// report whether the deadline was met at resolution.
func Evaluate(issue *domain.Issue, now time.Time) SLAView {
	if issue.ResolvedAt != nil {
		remaining := Remaining(issue.DueAt, *issue.ResolvedAt)
		state := SLAMet
		if remaining <= 0 {
			state = SLABreached
		}
		return SLAView{DueAt: issue.DueAt, Remaining: remaining, State: state}
	}
	remaining := Remaining(issue.DueAt, now)
	state := SLAOnTrack
	if remaining <= 0 {
		state = SLABreached
	}
	return SLAView{DueAt: issue.DueAt, Remaining: remaining, State: state}
}
