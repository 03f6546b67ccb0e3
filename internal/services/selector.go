package services

import "luckydraw/internal/models"

// BatchCap is the most winners revealed in a single round.
const BatchCap = 10

// Random is the slice of math/rand/v2 the selector needs.
type Random interface {
	IntN(n int) int
}

// SelectWinners computes the next batch of winners for prize.
//
// eligible must already exclude everyone present in the ledger. Participants
// forced by override rules come first, in rule order, followed by a uniform
// sample without replacement of the remaining eligible participants. The batch
// never holds more than min(remaining, BatchCap) entries; forced winners beyond
// that are left for a later round.
func SelectWinners(r Random, prize models.Prize, remaining int, eligible []models.Participant, rules []models.OverrideRule) []models.Participant {
	limit := min(remaining, BatchCap)
	if limit <= 0 || len(eligible) == 0 {
		return nil
	}

	byID := make(map[string]int, len(eligible))
	for i, p := range eligible {
		byID[p.ID] = i
	}

	forced := make([]models.Participant, 0, limit)
	taken := make(map[string]bool)
	for _, rule := range rules {
		if rule.PrizeID != prize.ID || taken[rule.ParticipantID] {
			continue
		}
		idx, ok := byID[rule.ParticipantID]
		if !ok {
			continue
		}
		taken[rule.ParticipantID] = true
		forced = append(forced, eligible[idx])
	}
	if len(forced) >= limit {
		return forced[:limit]
	}

	pool := make([]models.Participant, 0, len(eligible)-len(forced))
	for _, p := range eligible {
		if !taken[p.ID] {
			pool = append(pool, p)
		}
	}

	// Partial Fisher-Yates: only the first need positions are settled.
	need := min(limit-len(forced), len(pool))
	for i := 0; i < need; i++ {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	return append(forced, pool[:need]...)
}
