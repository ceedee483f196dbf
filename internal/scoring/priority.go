// Package scoring holds the pure priority and SLA functions. Nothing here
// touches storage or the wall clock; callers pass every input explicitly.
package scoring

import (
	"math"
	"time"

	"github.com/spec-kit/issue-engine/internal/domain"
)

const (
	severityPoints = 20.0
	agePoints      = 4.0
)

var categoryWeights = map[domain.IssueCategory]float64{
	domain.CategoryWater:      1.5,
	domain.CategorySanitation: 1.4,
	domain.CategoryRoad:       1.2,
	domain.CategoryLighting:   1.1,
	domain.CategoryOther:      1.0,
}

// CategoryWeight returns the multiplier applied to the severity base.
// Unknown categories weigh the same as OTHER.
func CategoryWeight(category domain.IssueCategory) float64 {
	if weight, ok := categoryWeights[category]; ok {
		return weight
	}
	return 1.0
}

// Score computes the priority of an issue. The age term grows with the
// square root of the hours an issue has waited so stale low-severity
// reports still surface. Results are rounded to two decimals.
func Score(severity int, category domain.IssueCategory, ageHours float64) float64 {
	if ageHours < 0 || math.IsNaN(ageHours) {
		ageHours = 0
	}
	base := float64(severity) * severityPoints * CategoryWeight(category)
	return round2(base + agePoints*math.Sqrt(ageHours))
}

// ScoreAt scores an issue as of now. Resolved issues stop ageing at the
// moment they were resolved.
func ScoreAt(issue *domain.Issue, now time.Time) float64 {
	end := now
	if issue.ResolvedAt != nil {
		end = *issue.ResolvedAt
	}
	return Score(issue.Severity, issue.Category, end.Sub(issue.CreatedAt).Hours())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
