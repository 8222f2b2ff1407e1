// Package escalation defines the ordered sequence of increasingly capable
// execution tiers the controller may switch to after repeated failure.
package escalation

import "fmt"

// Council is the multi-perspective diagnostic mode sitting above the
// strongest model tier. It is a mode, not a model: reaching it means the
// session should hand the problem to a multi-perspective diagnosis.
const Council = "bug-council"

// Ladder is an ordered list of model tiers, weakest first. Steps up are
// triggered only by guard trips, never by time alone, and a tier never
// downgrades within the same session.
type Ladder struct {
	tiers []string
}

// NewLadder builds a ladder from the configured tier names.
func NewLadder(tiers []string) (*Ladder, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("escalation ladder must have at least one tier")
	}
	seen := map[string]bool{}
	for _, t := range tiers {
		if t == "" {
			return nil, fmt.Errorf("escalation ladder tier name must not be empty")
		}
		if seen[t] {
			return nil, fmt.Errorf("duplicate tier %q in escalation ladder", t)
		}
		seen[t] = true
	}
	return &Ladder{tiers: tiers}, nil
}

// Default returns the weakest tier, used at session start.
func (l *Ladder) Default() string { return l.tiers[0] }

// Strongest returns the most capable model tier.
func (l *Ladder) Strongest() string { return l.tiers[len(l.tiers)-1] }

// Contains reports whether tier is a known rung of the ladder.
func (l *Ladder) Contains(tier string) bool {
	return l.index(tier) >= 0 || tier == Council
}

// Next returns the tier one step above the given one. Stepping above the
// strongest tier yields the diagnostic council; the council is the top.
// An unknown tier steps to the default rung rather than leaping upward.
func (l *Ladder) Next(tier string) string {
	if tier == Council {
		return Council
	}
	idx := l.index(tier)
	if idx < 0 {
		return l.tiers[0]
	}
	if idx == len(l.tiers)-1 {
		return Council
	}
	return l.tiers[idx+1]
}

// AtOrAbove reports whether a is at least as capable as b. The council
// outranks every model tier. Unknown tiers rank lowest.
func (l *Ladder) AtOrAbove(a, b string) bool {
	if a == Council {
		return true
	}
	if b == Council {
		return false
	}
	return l.index(a) >= l.index(b)
}

func (l *Ladder) index(tier string) int {
	for i, t := range l.tiers {
		if t == tier {
			return i
		}
	}
	return -1
}
