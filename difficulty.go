package enginebridge

import (
	"fmt"
	"time"
)

// Difficulty is a named strength tier mapping to a fixed thinking-time and
// search-depth pair.
type Difficulty int

// The four canonical difficulty levels.
const (
	Beginner Difficulty = iota
	Intermediate
	Advanced
	Master
)

// DefaultDifficulty is used when the caller does not pick a level.
const DefaultDifficulty = Intermediate

// DifficultyConfig is the immutable search budget for one level.
type DifficultyConfig struct {
	// Label is the human-readable level name.
	Label string

	// MoveTime is the engine's thinking-time budget.
	MoveTime time.Duration

	// Depth is the search depth limit.
	Depth int
}

var difficultyConfigs = [...]DifficultyConfig{
	Beginner:     {Label: "beginner", MoveTime: 150 * time.Millisecond, Depth: 2},
	Intermediate: {Label: "intermediate", MoveTime: 500 * time.Millisecond, Depth: 4},
	Advanced:     {Label: "advanced", MoveTime: 1500 * time.Millisecond, Depth: 6},
	Master:       {Label: "master", MoveTime: 5 * time.Second, Depth: 10},
}

// Config returns the level's search budget. Passing an unknown level is a
// programming error and panics.
func (d Difficulty) Config() DifficultyConfig {
	if d < Beginner || int(d) >= len(difficultyConfigs) {
		panic(fmt.Sprintf("enginebridge: unknown difficulty level %d", int(d)))
	}
	return difficultyConfigs[d]
}

// String returns the level's label, or "unknown" for out-of-range values.
func (d Difficulty) String() string {
	if d < Beginner || int(d) >= len(difficultyConfigs) {
		return "unknown"
	}
	return difficultyConfigs[d].Label
}

// ParseDifficulty maps a label back to its level.
func ParseDifficulty(s string) (Difficulty, error) {
	for d, cfg := range difficultyConfigs {
		if cfg.Label == s {
			return Difficulty(d), nil
		}
	}
	return 0, fmt.Errorf("enginebridge: unknown difficulty %q", s)
}
