package enginebridge

import (
	"testing"

	"github.com/notnil/chess"

	"github.com/openboard/enginebridge/internal/uci"
)

func intp(v int) *int { return &v }

func TestResult_Score(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{"positive", Result{Centipawns: intp(125)}, "+1.25"},
		{"negative", Result{Centipawns: intp(-50)}, "-0.50"},
		{"small fraction", Result{Centipawns: intp(5)}, "+0.05"},
		{"even", Result{Centipawns: intp(0)}, "+0.00"},
		{"mate for", Result{Mate: intp(3)}, "#3"},
		{"mate against", Result{Mate: intp(-5)}, "#-5"},
		{"no evaluation", Result{}, "?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Score(); got != tt.want {
				t.Errorf("Score() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResult_IsMate(t *testing.T) {
	if (&Result{Centipawns: intp(30)}).IsMate() {
		t.Error("IsMate() = true for a centipawn evaluation")
	}
	if !(&Result{Mate: intp(2)}).IsMate() {
		t.Error("IsMate() = false for a forced mate")
	}
}

func TestResult_Move(t *testing.T) {
	res := &Result{BestMove: "e2e4"}
	pos := chess.NewGame().Position()

	move, err := res.Move(pos)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if move.S1() != chess.E2 || move.S2() != chess.E4 {
		t.Errorf("Move() = %v, want e2e4", move)
	}

	bad := &Result{BestMove: "e2e5"}
	if _, err := bad.Move(pos); err == nil {
		t.Error("Move() accepted an illegal move")
	}
}

func TestNewResult_CopiesFields(t *testing.T) {
	sr := &uci.SearchResult{
		BestMove:   "g1f3",
		Ponder:     "g8f6",
		PV:         []string{"g1f3", "g8f6"},
		Depth:      8,
		Centipawns: intp(12),
	}
	res := newResult(sr)
	if res.BestMove != "g1f3" || res.Ponder != "g8f6" || res.Depth != 8 {
		t.Errorf("newResult() = %+v", res)
	}
	if len(res.PV) != 2 {
		t.Errorf("PV = %v, want two moves", res.PV)
	}
	if res.Centipawns == nil || *res.Centipawns != 12 {
		t.Errorf("Centipawns = %v, want 12", res.Centipawns)
	}
}
