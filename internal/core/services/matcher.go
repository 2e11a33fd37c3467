package services

import (
	"sort"

	"github.com/valtrion/allocd/internal/core/domain"
)

// MatchResult is the outcome of one matching pass over a snapshot.
type MatchResult struct {
	Pairs     []domain.ProposedPair
	Unmatched []domain.Request
}

// Match pairs pending requests with vacant units. It is a pure function over
// the snapshot it is given: no side effects, no errors, an empty result is a
// valid outcome.
//
// Requests are served in strict priority order: ascending PriorityRank, ties
// broken by AppliedAt (earlier application wins), then by request ID so the
// order is total regardless of input ordering. Each request takes the eligible
// vacant unit with the smallest ID; a unit proposed for one request is removed
// from the working set and cannot be proposed again in the same pass.
func Match(requests []domain.Request, units []domain.Unit) MatchResult {
	ordered := make([]domain.Request, len(requests))
	copy(ordered, requests)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].PriorityRank != ordered[j].PriorityRank {
			return ordered[i].PriorityRank < ordered[j].PriorityRank
		}
		if !ordered[i].AppliedAt.Equal(ordered[j].AppliedAt) {
			return ordered[i].AppliedAt.Before(ordered[j].AppliedAt)
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})

	remaining := make([]domain.Unit, 0, len(units))
	for _, u := range units {
		if u.IsVacant() {
			remaining = append(remaining, u)
		}
	}
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].ID.String() < remaining[j].ID.String()
	})

	var result MatchResult
	for _, req := range ordered {
		if req.Fulfilled {
			continue
		}

		picked := -1
		for i, u := range remaining {
			if req.Accepts(u.Type) {
				picked = i
				break
			}
		}
		if picked == -1 {
			// Not an error: the request stays pending for the next run.
			result.Unmatched = append(result.Unmatched, req)
			continue
		}

		result.Pairs = append(result.Pairs, domain.ProposedPair{
			Request: req,
			Unit:    remaining[picked],
		})
		remaining = append(remaining[:picked], remaining[picked+1:]...)
	}

	return result
}
