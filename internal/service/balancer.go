package service

import (
	"sort"

	"github.com/spec-kit/issue-engine/internal/domain"
)

// EngineerLoad pairs an engineer with the number of unresolved issues they
// currently hold.
type EngineerLoad struct {
	Engineer  domain.User
	OpenCount int
}

// BuildLoads joins the engineer pool with open counts. Engineers missing
// from counts hold nothing.
func BuildLoads(engineers []domain.User, counts map[string]int) []EngineerLoad {
	loads := make([]EngineerLoad, 0, len(engineers))
	for _, engineer := range engineers {
		loads = append(loads, EngineerLoad{Engineer: engineer, OpenCount: counts[engineer.ID]})
	}
	sortLoads(loads)
	return loads
}

// PickLeastLoaded returns the engineer with the fewest open issues. Ties go
// to the longest-serving engineer, then the smallest id, so the same
// snapshot always yields the same pick.
func PickLeastLoaded(loads []EngineerLoad) (EngineerLoad, bool) {
	if len(loads) == 0 {
		return EngineerLoad{}, false
	}
	best := loads[0]
	for _, candidate := range loads[1:] {
		if lessLoaded(candidate, best) {
			best = candidate
		}
	}
	return best, true
}

func lessLoaded(a, b EngineerLoad) bool {
	if a.OpenCount != b.OpenCount {
		return a.OpenCount < b.OpenCount
	}
	if !a.Engineer.CreatedAt.Equal(b.Engineer.CreatedAt) {
		return a.Engineer.CreatedAt.Before(b.Engineer.CreatedAt)
	}
	return a.Engineer.ID < b.Engineer.ID
}

func sortLoads(loads []EngineerLoad) {
	sort.SliceStable(loads, func(i, j int) bool {
		return lessLoaded(loads[i], loads[j])
	})
}
