// Package similarity detects near-duplicate diagnostic commands.
//
// Models left unconstrained tend to propose trivial rephrasings of commands
// that already ran (head -10 instead of head -20, reordered flags). Those add
// no diagnostic value, so a candidate too similar to any previously executed
// command in the same session is rejected before it ever reaches the human.
package similarity

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the ratio above which a candidate counts as a
// near-duplicate. Tunable via config; 0.7 matches observed model behavior.
const DefaultThreshold = 0.7

// Detector compares candidate commands against a session's executed history.
type Detector struct {
	threshold float64
}

// New returns a detector with the given threshold, or DefaultThreshold when
// the value is out of (0, 1].
func New(threshold float64) *Detector {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Detector{threshold: threshold}
}

// Normalize collapses internal whitespace and lowercases a command so that
// formatting differences do not mask duplicates.
func Normalize(cmd string) string {
	return strings.ToLower(strings.Join(strings.Fields(cmd), " "))
}

// Ratio computes the gestalt sequence-similarity ratio (2M/T over character
// runs) between two normalized commands.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Match reports a conflicting prior command, if any.
type Match struct {
	Command string
	Ratio   float64
}

// FindDuplicate returns the first previously executed command whose
// similarity to candidate meets the threshold, or nil when the candidate is
// sufficiently novel.
func (d *Detector) FindDuplicate(candidate string, executed []string) *Match {
	nc := Normalize(candidate)
	for _, prev := range executed {
		r := Ratio(nc, Normalize(prev))
		if r >= d.threshold {
			return &Match{Command: prev, Ratio: r}
		}
	}
	return nil
}
