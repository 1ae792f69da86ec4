// Package uci implements a session over the Universal Chess Interface, the
// line-oriented text protocol spoken by engines such as Stockfish over
// stdin/stdout.
package uci

import "errors"

// Sentinel errors for session failure modes.
var (
	// ErrSpawn indicates the engine process could not be started or did
	// not complete the handshake within the startup timeout.
	ErrSpawn = errors.New("uci: engine spawn failed")

	// ErrProtocol indicates a malformed or unexpected response line.
	ErrProtocol = errors.New("uci: protocol error")

	// ErrCrashed indicates the engine process exited unexpectedly.
	ErrCrashed = errors.New("uci: engine process died")
)

// SearchResult is the terminal outcome of one search: the bestmove line,
// enriched with telemetry from the last info line that carried a score.
type SearchResult struct {
	// BestMove is the engine's chosen move in UCI notation (e.g. "e2e4").
	BestMove string

	// Ponder is the expected reply, if the engine reported one.
	Ponder string

	// PV is the principal variation in UCI notation. May be empty.
	PV []string

	// Depth is the deepest search depth reported.
	Depth int

	// Centipawns is the score from the engine's perspective, nil when the
	// engine reported a forced mate instead.
	Centipawns *int

	// Mate is the distance to mate in moves, nil when there is no forced
	// mate on the board.
	Mate *int
}
