package arbitration

// TallyVerdict applies majority rule over the votes of arbiters whose
// slot status is SlotVoted, the same "count then compare" shape as
// internal/knowledge.EvaluateQuorum. Ties resolve to VerdictSplit, the
// canonical "no-majority" outcome per spec.md §9.
func TallyVerdict(panel []ArbiterSlot) Verdict {
	counts := map[Verdict]int{}
	for _, slot := range panel {
		if slot.Status == SlotVoted {
			counts[slot.Vote]++
		}
	}

	best := VerdictSplit
	bestCount := 0
	tie := false
	for v, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount, tie = v, c, false
		case c == bestCount && c > 0:
			tie = true
		}
	}
	if tie || bestCount == 0 {
		return VerdictSplit
	}
	return best
}

// MajorityVoters returns the set of arbiter ids who voted for the winning
// verdict, used to compute ARBITER_REWARD eligibility.
func MajorityVoters(panel []ArbiterSlot, verdict Verdict) map[string]bool {
	out := make(map[string]bool)
	if verdict == VerdictSplit {
		return out
	}
	for _, slot := range panel {
		if slot.Status == SlotVoted && slot.Vote == verdict {
			out[slot.AgentID] = true
		}
	}
	return out
}

// ForfeitedArbiters returns ids of arbiters who accepted but never voted
// by the deadline.
func ForfeitedArbiters(panel []ArbiterSlot) []string {
	var out []string
	for _, slot := range panel {
		if slot.Status == SlotForfeited {
			out = append(out, slot.AgentID)
		}
	}
	return out
}
