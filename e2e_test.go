//go:build e2e

package enginebridge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/notnil/chess"

	"github.com/openboard/enginebridge"
	"github.com/openboard/enginebridge/internal/detect"
)

// TestE2E_RealEngine exercises the adapter against an actual installed
// engine. Run with: go test -tags e2e .
func TestE2E_RealEngine(t *testing.T) {
	path, err := detect.New().Find("stockfish")
	if err != nil {
		t.Skip("Skipping: no stockfish installation found")
	}

	adapter, err := enginebridge.New(path,
		enginebridge.WithEngineOption("Threads", "1"),
		enginebridge.WithHintCache(16),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer adapter.Shutdown()

	ctx := context.Background()
	game := chess.NewGame()

	// Blocking best move from the start position.
	res, err := adapter.GetBestMove(ctx, game, enginebridge.Beginner)
	if err != nil {
		t.Fatalf("GetBestMove() error = %v", err)
	}
	if _, err := res.Move(game.Position()); err != nil {
		t.Fatalf("engine returned illegal move %q: %v", res.BestMove, err)
	}
	t.Logf("best move %s (%s) at depth %d", res.BestMove, res.Score(), res.Depth)

	// Play the engine against itself for a few plies.
	for i := 0; i < 4; i++ {
		res, err := adapter.GetBestMove(ctx, game, enginebridge.Beginner)
		if err != nil {
			t.Fatalf("ply %d: GetBestMove() error = %v", i, err)
		}
		move, err := res.Move(game.Position())
		if err != nil {
			t.Fatalf("ply %d: illegal move %q: %v", i, res.BestMove, err)
		}
		if err := game.Move(move); err != nil {
			t.Fatalf("ply %d: applying move: %v", i, err)
		}
	}

	// Hints are served and cached.
	h1, err := adapter.GetHint(ctx, game, enginebridge.Beginner)
	if err != nil {
		t.Fatalf("GetHint() error = %v", err)
	}
	start := time.Now()
	h2, err := adapter.GetHint(ctx, game, enginebridge.Beginner)
	if err != nil {
		t.Fatalf("second GetHint() error = %v", err)
	}
	if h1.BestMove != h2.BestMove {
		t.Errorf("cached hint %q differs from original %q", h2.BestMove, h1.BestMove)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("cached hint took %v, expected a cache hit", elapsed)
	}

	// Cancelling an expensive search resolves promptly.
	handle, err := adapter.GetBestMoveAsync(game, enginebridge.Master, nil)
	if err != nil {
		t.Fatalf("GetBestMoveAsync() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	handle.Cancel()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := handle.Wait(waitCtx); !errors.Is(err, enginebridge.ErrCancelled) {
		t.Errorf("cancelled search resolved with %v, want ErrCancelled", err)
	}

	if err := adapter.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
