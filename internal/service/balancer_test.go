package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-engine/internal/domain"
)

func engineerAt(id string, createdAt time.Time) domain.User {
	return domain.User{ID: id, Name: id, Role: domain.RoleEngineer, CreatedAt: createdAt}
}

func TestPickLeastLoaded(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		loads []EngineerLoad
		want  string
	}{
		{
			name: "fewest open issues",
			loads: []EngineerLoad{
				{Engineer: engineerAt("a", t0), OpenCount: 3},
				{Engineer: engineerAt("b", t0.Add(time.Hour)), OpenCount: 1},
				{Engineer: engineerAt("c", t0.Add(2*time.Hour)), OpenCount: 2},
			},
			want: "b",
		},
		{
			name: "tie goes to earliest engineer",
			loads: []EngineerLoad{
				{Engineer: engineerAt("late", t0.Add(time.Hour)), OpenCount: 0},
				{Engineer: engineerAt("early", t0), OpenCount: 0},
			},
			want: "early",
		},
		{
			name: "full tie goes to smallest id",
			loads: []EngineerLoad{
				{Engineer: engineerAt("m", t0), OpenCount: 2},
				{Engineer: engineerAt("k", t0), OpenCount: 2},
			},
			want: "k",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickLeastLoaded(tt.loads)
			require.True(t, ok)
			require.Equal(t, tt.want, got.Engineer.ID)

			reversed := make([]EngineerLoad, len(tt.loads))
			for i, load := range tt.loads {
				reversed[len(tt.loads)-1-i] = load
			}
			again, ok := PickLeastLoaded(reversed)
			require.True(t, ok)
			require.Equal(t, got.Engineer.ID, again.Engineer.ID)
		})
	}
}

func TestPickLeastLoadedEmpty(t *testing.T) {
	_, ok := PickLeastLoaded(nil)
	require.False(t, ok)
}

func TestBuildLoadsDefaultsMissingCounts(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loads := BuildLoads(
		[]domain.User{engineerAt("a", t0), engineerAt("b", t0.Add(time.Minute))},
		map[string]int{"a": 4},
	)
	require.Len(t, loads, 2)
	require.Equal(t, "b", loads[0].Engineer.ID)
	require.Zero(t, loads[0].OpenCount)
	require.Equal(t, 4, loads[1].OpenCount)
}
