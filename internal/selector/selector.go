// Package selector picks the attack technique for a run. Selection is a pure
// function of the catalog, the history and the random source: no I/O, no
// persistence. The history update after a successful run belongs to the
// orchestrator, not here.
package selector

import (
	"errors"

	"github.com/opsrange/redrill/internal/stratus"
)

// ErrEmptyCatalog is returned when there are no techniques to choose from.
var ErrEmptyCatalog = errors.New("no techniques available")

// Picker returns a uniform value in [0, n). Satisfied by *math/rand/v2.Rand;
// tests substitute a deterministic implementation.
type Picker interface {
	IntN(n int) int
}

// Select picks one technique uniformly at random. With avoidRecent set, any
// candidate whose ID appears in the last recentCount history entries is
// excluded first; if that excludes everything, selection falls back to the
// full catalog so a non-empty catalog always yields a technique.
func Select(rng Picker, techniques []stratus.Technique, history []string, avoidRecent bool, recentCount int) (stratus.Technique, error) {
	if len(techniques) == 0 {
		return stratus.Technique{}, ErrEmptyCatalog
	}

	candidates := techniques
	if avoidRecent && recentCount > 0 {
		recent := make(map[string]bool, recentCount)
		start := len(history) - recentCount
		if start < 0 {
			start = 0
		}
		for _, id := range history[start:] {
			recent[id] = true
		}

		var fresh []stratus.Technique
		for _, t := range techniques {
			if !recent[t.ID] {
				fresh = append(fresh, t)
			}
		}
		if len(fresh) > 0 {
			candidates = fresh
		}
	}

	return candidates[rng.IntN(len(candidates))], nil
}
