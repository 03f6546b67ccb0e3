package services

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"luckydraw/internal/models"
)

func people(n int) []models.Participant {
	out := make([]models.Participant, n)
	for i := range out {
		out[i] = models.Participant{ID: fmt.Sprintf("%03d", i+1), Name: fmt.Sprintf("P%d", i+1)}
	}
	return out
}

func ids(ps []models.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestSelectWinners(t *testing.T) {
	prize := models.Prize{ID: "p1", Name: "TV", Count: 50, Level: 1}

	t.Run("caps batch at ten", func(t *testing.T) {
		got := SelectWinners(rand.New(rand.NewPCG(1, 2)), prize, 50, people(30), nil)
		require.Len(t, got, BatchCap)
	})

	t.Run("caps batch at remaining slots", func(t *testing.T) {
		got := SelectWinners(rand.New(rand.NewPCG(1, 2)), prize, 3, people(30), nil)
		require.Len(t, got, 3)
	})

	t.Run("winners are distinct members of the pool", func(t *testing.T) {
		pool := people(12)
		got := SelectWinners(rand.New(rand.NewPCG(7, 7)), prize, 10, pool, nil)
		seen := map[string]bool{}
		for _, p := range got {
			require.False(t, seen[p.ID], "duplicate winner %s", p.ID)
			seen[p.ID] = true
			require.Contains(t, ids(pool), p.ID)
		}
	})

	t.Run("forced winners come first in rule order", func(t *testing.T) {
		pool := people(20)
		rules := []models.OverrideRule{
			{PrizeID: "p1", ParticipantID: "007"},
			{PrizeID: "other", ParticipantID: "001"},
			{PrizeID: "p1", ParticipantID: "003"},
			{PrizeID: "p1", ParticipantID: "007"},
		}
		got := SelectWinners(rand.New(rand.NewPCG(3, 4)), prize, 5, pool, rules)
		require.Len(t, got, 5)
		require.Equal(t, []string{"007", "003"}, ids(got[:2]))
		for _, p := range got[2:] {
			require.NotContains(t, []string{"007", "003"}, p.ID)
		}
	})

	t.Run("forced winners beyond the cap are dropped", func(t *testing.T) {
		pool := people(5)
		var rules []models.OverrideRule
		for _, p := range pool {
			rules = append(rules, models.OverrideRule{PrizeID: "p1", ParticipantID: p.ID})
		}
		got := SelectWinners(rand.New(rand.NewPCG(1, 1)), prize, 2, pool, rules)
		require.Equal(t, []string{"001", "002"}, ids(got))
	})

	t.Run("rules for ineligible participants are inert", func(t *testing.T) {
		pool := people(3)
		rules := []models.OverrideRule{{PrizeID: "p1", ParticipantID: "ghost"}}
		got := SelectWinners(rand.New(rand.NewPCG(1, 1)), prize, 10, pool, rules)
		require.ElementsMatch(t, ids(pool), ids(got))
	})

	t.Run("forced winner alone when pool is otherwise empty", func(t *testing.T) {
		pool := people(1)
		rules := []models.OverrideRule{{PrizeID: "p1", ParticipantID: "001"}}
		got := SelectWinners(rand.New(rand.NewPCG(1, 1)), prize, 10, pool, rules)
		require.Equal(t, []string{"001"}, ids(got))
	})

	t.Run("override wins regardless of seed", func(t *testing.T) {
		single := models.Prize{ID: "p1", Name: "Car", Count: 1, Level: 1}
		pool := []models.Participant{{ID: "A", Name: "A"}, {ID: "B", Name: "B"}}
		rules := []models.OverrideRule{{PrizeID: "p1", ParticipantID: "A"}}
		for seed := uint64(0); seed < 50; seed++ {
			got := SelectWinners(rand.New(rand.NewPCG(seed, seed)), single, 1, pool, rules)
			require.Equal(t, []string{"A"}, ids(got))
		}
	})

	t.Run("no slots yields nothing", func(t *testing.T) {
		require.Empty(t, SelectWinners(rand.New(rand.NewPCG(1, 1)), prize, 0, people(3), nil))
	})

	t.Run("does not reorder caller's slice", func(t *testing.T) {
		pool := people(15)
		before := ids(pool)
		SelectWinners(rand.New(rand.NewPCG(9, 9)), prize, 10, pool, nil)
		require.Equal(t, before, ids(pool))
	})
}

func TestSelectWinnersIsUniform(t *testing.T) {
	prize := models.Prize{ID: "p1", Name: "Mug", Count: 1, Level: 1}
	pool := people(4)
	r := rand.New(rand.NewPCG(42, 42))

	const rounds = 20000
	counts := map[string]int{}
	for i := 0; i < rounds; i++ {
		got := SelectWinners(r, prize, 1, pool, nil)
		counts[got[0].ID]++
	}

	// Each of four participants should land close to a quarter of the wins.
	for _, p := range pool {
		share := float64(counts[p.ID]) / rounds
		if share < 0.22 || share > 0.28 {
			t.Errorf("participant %s won %.3f of rounds, want about 0.25", p.ID, share)
		}
	}
}
