package enginebridge

import (
	"strconv"

	"github.com/notnil/chess"

	"github.com/openboard/enginebridge/internal/uci"
)

// Result is the engine's answer for one search request.
type Result struct {
	// BestMove is the recommended move in UCI notation (e.g. "e2e4").
	BestMove string

	// Ponder is the reply the engine expects, if it reported one.
	Ponder string

	// PV is the principal variation in UCI notation. May be empty.
	PV []string

	// Depth is the deepest depth the engine reported reaching.
	Depth int

	// Centipawns is the evaluation from the side to move's perspective.
	// Nil if the position has a forced mate.
	Centipawns *int

	// Mate is the number of moves until checkmate.
	// Nil if there is no forced mate.
	Mate *int
}

// newResult converts an internal uci.SearchResult to a public Result.
func newResult(sr *uci.SearchResult) *Result {
	return &Result{
		BestMove:   sr.BestMove,
		Ponder:     sr.Ponder,
		PV:         sr.PV,
		Depth:      sr.Depth,
		Centipawns: sr.Centipawns,
		Mate:       sr.Mate,
	}
}

// Move decodes the best move against pos using the chess-rules library,
// validating that it is legal there.
func (r *Result) Move(pos *chess.Position) (*chess.Move, error) {
	return chess.UCINotation{}.Decode(pos, r.BestMove)
}

// IsMate returns true if the engine reported a forced checkmate.
func (r *Result) IsMate() bool {
	return r.Mate != nil
}

// Score returns a human-readable score string for the search.
// Examples: "+1.25", "-0.50", "#3", "#-5"
func (r *Result) Score() string {
	if r.Mate != nil {
		return "#" + strconv.Itoa(*r.Mate)
	}
	if r.Centipawns == nil {
		return "?"
	}
	cp := *r.Centipawns
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	whole := cp / 100
	frac := cp % 100
	if frac < 10 {
		return sign + strconv.Itoa(whole) + ".0" + strconv.Itoa(frac)
	}
	return sign + strconv.Itoa(whole) + "." + strconv.Itoa(frac)
}
