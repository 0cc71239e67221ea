// Package risk defines the ordinal risk classification used across the guardrail pipeline.
package risk

// Level classifies the potential impact of an operation.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// rank orders levels so they can be compared; unknown levels rank highest so
// an unclassified operation is never treated as safe.
var rank = map[Level]int{
	LevelLow:      0,
	LevelMedium:   1,
	LevelHigh:     2,
	LevelCritical: 3,
}

// Valid reports whether l is a known risk level.
func (l Level) Valid() bool {
	_, ok := rank[l]
	return ok
}

// Rank returns the ordinal position of the level.
func (l Level) Rank() int {
	if r, ok := rank[l]; ok {
		return r
	}
	return rank[LevelCritical] + 1
}

// AtLeast reports whether l is at or above the given level.
func (l Level) AtLeast(other Level) bool {
	return l.Rank() >= other.Rank()
}

// String returns the string representation of the level.
func (l Level) String() string {
	return string(l)
}

// Max returns the higher of two levels.
func Max(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// MaxOf returns the highest level in the list, or low for an empty list.
func MaxOf(levels ...Level) Level {
	out := LevelLow
	for _, l := range levels {
		out = Max(out, l)
	}
	return out
}
