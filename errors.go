package enginebridge

import (
	"errors"

	"github.com/openboard/enginebridge/internal/bridge"
	"github.com/openboard/enginebridge/internal/uci"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrEngineNotFound indicates no usable engine executable was located.
	ErrEngineNotFound = errors.New("enginebridge: engine not found")

	// ErrSpawn indicates the engine process could not be started or failed
	// its protocol handshake.
	ErrSpawn = errors.New("enginebridge: engine spawn failed")

	// ErrProtocol indicates the engine sent a malformed or unexpected
	// response. The session can no longer be trusted after this.
	ErrProtocol = errors.New("enginebridge: protocol error")

	// ErrTimeout indicates a search did not produce a terminal result
	// within its deadline. Only the offending request is affected.
	ErrTimeout = errors.New("enginebridge: search timed out")

	// ErrCancelled indicates a request was cancelled before completion.
	ErrCancelled = errors.New("enginebridge: request cancelled")

	// ErrCrashed indicates the engine process exited unexpectedly or the
	// protocol desynchronized. The adapter is stopped.
	ErrCrashed = errors.New("enginebridge: engine crashed")

	// ErrClosed indicates the adapter has been shut down.
	ErrClosed = errors.New("enginebridge: adapter closed")

	// ErrGameOver indicates the submitted position has no legal moves to
	// search (checkmate, stalemate, or another terminal outcome).
	ErrGameOver = errors.New("enginebridge: game is over")

	// ErrQueueFull indicates the submission queue is at capacity.
	ErrQueueFull = errors.New("enginebridge: request queue full")
)

// mapErr translates internal package sentinels into the public taxonomy so
// callers can use errors.Is against the exported values.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bridge.ErrTimeout):
		return ErrTimeout
	case errors.Is(err, bridge.ErrCancelled):
		return ErrCancelled
	case errors.Is(err, bridge.ErrQueueFull):
		return ErrQueueFull
	case errors.Is(err, bridge.ErrClosed):
		return ErrClosed
	case errors.Is(err, uci.ErrCrashed):
		return ErrCrashed
	case errors.Is(err, uci.ErrProtocol):
		return ErrProtocol
	case errors.Is(err, uci.ErrSpawn):
		return ErrSpawn
	default:
		return err
	}
}
