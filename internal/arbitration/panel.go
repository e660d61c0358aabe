package arbitration

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
)

// eligible applies spec.md §4.5's eligibility predicate over a pool of
// pre-resolved candidates. Liveness (not away/offline) and persistent-id
// checks are expected to already have been applied by the caller when
// building the candidate list (they depend on session state this package
// does not own); this function re-checks the reputation-derived
// thresholds plus party exclusion and active-panel-count.
func eligible(c Candidate, excluded map[string]bool, activePanels func(agentID string) int) bool {
	if excluded[c.AgentID] {
		return false
	}
	if c.Rating < minRatingThreshold || c.Transactions < minTransactionsThreshold {
		return false
	}
	if c.Rating-arbiterStakeThreshold < ratingFloorThreshold {
		return false
	}
	if activePanels != nil && activePanels(c.AgentID) >= maxActivePanels {
		return false
	}
	return true
}

const (
	minRatingThreshold       = 1200
	minTransactionsThreshold = 10
	arbiterStakeThreshold    = 50
	ratingFloorThreshold     = 100
	maxActivePanels          = 3
)

// SeedFromNonces derives a deterministic 64-bit seed pair from
// server_nonce ‖ disputant_nonce, reproducible across implementations:
// SHA-256 the concatenation, then split the digest into two uint64 seeds
// for math/rand/v2's PCG source.
func SeedFromNonces(serverNonce, disputantNonce string) (seed1, seed2 uint64) {
	sum := sha256.Sum256([]byte(serverNonce + disputantNonce))
	seed1 = binary.BigEndian.Uint64(sum[0:8])
	seed2 = binary.BigEndian.Uint64(sum[8:16])
	return seed1, seed2
}

// SelectPanel performs a Fisher-Yates partial shuffle over the eligible
// candidate pool (excluding the two parties) using a PRNG seeded
// deterministically from the nonces, and returns up to panelSize
// distinct arbiter ids in draw order. If the eligible pool is smaller
// than panelSize, it returns everything available plus false.
func SelectPanel(pool []Candidate, parties map[string]bool, activePanels func(string) int, serverNonce, disputantNonce string, panelSize int) ([]string, bool) {
	var eligiblePool []Candidate
	for _, c := range pool {
		if eligible(c, parties, activePanels) {
			eligiblePool = append(eligiblePool, c)
		}
	}

	if len(eligiblePool) < panelSize {
		ids := make([]string, len(eligiblePool))
		for i, c := range eligiblePool {
			ids[i] = c.AgentID
		}
		return ids, false
	}

	s1, s2 := SeedFromNonces(serverNonce, disputantNonce)
	rng := rand.New(rand.NewPCG(s1, s2))

	// Partial Fisher-Yates: only shuffle the prefix we need.
	n := len(eligiblePool)
	for i := 0; i < panelSize; i++ {
		j := i + rng.IntN(n-i)
		eligiblePool[i], eligiblePool[j] = eligiblePool[j], eligiblePool[i]
	}

	selected := make([]string, panelSize)
	for i := 0; i < panelSize; i++ {
		selected[i] = eligiblePool[i].AgentID
	}
	return selected, true
}

// SelectReplacement draws one replacement arbiter deterministically,
// continuing the same seeded sequence logically by mixing in the round
// number so repeated replacement rounds are reproducible but distinct.
func SelectReplacement(pool []Candidate, excluded map[string]bool, activePanels func(string) int, serverNonce, disputantNonce string, round int) (string, bool) {
	var eligiblePool []Candidate
	for _, c := range pool {
		if eligible(c, excluded, activePanels) {
			eligiblePool = append(eligiblePool, c)
		}
	}
	if len(eligiblePool) == 0 {
		return "", false
	}

	s1, s2 := SeedFromNonces(serverNonce, disputantNonce)
	rng := rand.New(rand.NewPCG(s1+uint64(round), s2))
	idx := rng.IntN(len(eligiblePool))
	return eligiblePool[idx].AgentID, true
}
