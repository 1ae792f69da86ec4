package enginebridge

import (
	"testing"
	"time"
)

func TestDifficulty_Config(t *testing.T) {
	tests := []struct {
		level    Difficulty
		movetime time.Duration
		depth    int
	}{
		{Beginner, 150 * time.Millisecond, 2},
		{Intermediate, 500 * time.Millisecond, 4},
		{Advanced, 1500 * time.Millisecond, 6},
		{Master, 5 * time.Second, 10},
	}
	for _, tt := range tests {
		cfg := tt.level.Config()
		if cfg.MoveTime != tt.movetime {
			t.Errorf("%s MoveTime = %v, want %v", tt.level, cfg.MoveTime, tt.movetime)
		}
		if cfg.Depth != tt.depth {
			t.Errorf("%s Depth = %d, want %d", tt.level, cfg.Depth, tt.depth)
		}
	}
}

func TestDifficulty_ConfigPanicsOnUnknown(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Config() on an unknown level did not panic")
		}
	}()
	Difficulty(42).Config()
}

func TestDefaultDifficulty(t *testing.T) {
	if DefaultDifficulty != Intermediate {
		t.Errorf("DefaultDifficulty = %v, want Intermediate", DefaultDifficulty)
	}
}

func TestParseDifficulty(t *testing.T) {
	for _, level := range []Difficulty{Beginner, Intermediate, Advanced, Master} {
		got, err := ParseDifficulty(level.String())
		if err != nil {
			t.Errorf("ParseDifficulty(%q) error = %v", level.String(), err)
			continue
		}
		if got != level {
			t.Errorf("ParseDifficulty(%q) = %v, want %v", level.String(), got, level)
		}
	}

	if _, err := ParseDifficulty("grandmaster"); err == nil {
		t.Error("ParseDifficulty() accepted an unknown label")
	}
}

func TestDifficulty_String(t *testing.T) {
	if got := Advanced.String(); got != "advanced" {
		t.Errorf("String() = %q, want advanced", got)
	}
	if got := Difficulty(-1).String(); got != "unknown" {
		t.Errorf("String() = %q, want unknown", got)
	}
}
