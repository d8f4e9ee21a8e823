package sm2

import (
	"encoding"
	"fmt"
)

// Phase is a card's position in the review state machine:
// New → Learning → Young → Mature on consecutive successes,
// and back to Relapsed on any failure.
type Phase int

const (
	New      Phase = iota // never reviewed
	Learning              // one success
	Young                 // two consecutive successes
	Mature                // three or more
	Relapsed              // last review failed
)

var phaseNames = [...]string{
	New:      "new",
	Learning: "learning",
	Young:    "young",
	Mature:   "mature",
	Relapsed: "relapsed",
}

var (
	_ fmt.Stringer             = Phase(0)
	_ encoding.TextMarshaler   = Phase(0)
	_ encoding.TextUnmarshaler = (*Phase)(nil)
)

// PhaseOf returns the phase of card, which is nil for a topic that has no card yet.
func PhaseOf(card *RetentionCard) Phase {
	if card == nil {
		return New
	}
	return card.Phase()
}

// Phase derives the card's phase from its repetition count.
// A stored card with zero repetitions has been reviewed and failed.
func (c RetentionCard) Phase() Phase {
	switch {
	case c.Repetitions <= 0:
		return Relapsed
	case c.Repetitions == 1:
		return Learning
	case c.Repetitions == 2:
		return Young
	default:
		return Mature
	}
}

// String returns the lowercase phase name, or "Phase(n)" for unknown values.
func (p Phase) String() string {
	if p >= New && p <= Relapsed {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if p < New || p > Relapsed {
		return nil, fmt.Errorf("sm2: invalid phase %d", int(p))
	}
	return []byte(phaseNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("sm2: unknown phase %q", text)
}
