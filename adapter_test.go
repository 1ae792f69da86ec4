package enginebridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/notnil/chess"

	"github.com/openboard/enginebridge/internal/bridge"
	"github.com/openboard/enginebridge/internal/uci"
)

// fakeSession satisfies bridge.Session without a real engine process.
type fakeSession struct {
	mu        sync.Mutex
	startFENs []string
	moveLists [][]string
	searches  atomic.Int32
	shutdowns atomic.Int32

	searchFn func(ctx context.Context, movetime time.Duration, depth int) (*uci.SearchResult, error)
}

func (f *fakeSession) SetPosition(startFEN string, moves []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startFENs = append(f.startFENs, startFEN)
	f.moveLists = append(f.moveLists, append([]string(nil), moves...))
	return nil
}

func (f *fakeSession) Search(ctx context.Context, movetime time.Duration, depth int) (*uci.SearchResult, error) {
	f.searches.Add(1)
	if f.searchFn != nil {
		return f.searchFn(ctx, movetime, depth)
	}
	return &uci.SearchResult{BestMove: "e2e4", Depth: depth}, nil
}

func (f *fakeSession) Shutdown(grace time.Duration) error {
	f.shutdowns.Add(1)
	return nil
}

func (f *fakeSession) lastPosition() (string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.startFENs) == 0 {
		return "", nil
	}
	return f.startFENs[len(f.startFENs)-1], f.moveLists[len(f.moveLists)-1]
}

// newTestAdapter builds an adapter around a fake session, skipping the
// process spawn and handshake.
func newTestAdapter(t *testing.T, sess bridge.Session, opts ...Option) *Adapter {
	t.Helper()

	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	a := &Adapter{
		path:   "/fake/stockfish",
		logger: cfg.logger,
		stats:  cfg.stats,
	}
	a.attach(sess, cfg)
	a.state.Store(int32(StateReady))
	t.Cleanup(func() { a.Shutdown() })
	return a
}

func TestAdapter_GetBestMove(t *testing.T) {
	sess := &fakeSession{}
	a := newTestAdapter(t, sess)

	if !a.IsReady() {
		t.Fatalf("State() = %v, want ready", a.State())
	}

	res, err := a.GetBestMove(context.Background(), chess.NewGame(), Intermediate)
	if err != nil {
		t.Fatalf("GetBestMove() error = %v", err)
	}
	if res.BestMove != "e2e4" {
		t.Errorf("BestMove = %q, want e2e4", res.BestMove)
	}

	startFEN, moves := sess.lastPosition()
	if startFEN != "" {
		t.Errorf("startFEN = %q, want empty for the standard start position", startFEN)
	}
	if len(moves) != 0 {
		t.Errorf("moves = %v, want none for a fresh game", moves)
	}
}

func TestAdapter_GetBestMove_SendsMoveHistory(t *testing.T) {
	sess := &fakeSession{}
	a := newTestAdapter(t, sess)

	game := chess.NewGame()
	for _, san := range []string{"e4", "e5", "Nf3"} {
		if err := game.MoveStr(san); err != nil {
			t.Fatalf("MoveStr(%q) error = %v", san, err)
		}
	}

	if _, err := a.GetBestMove(context.Background(), game, Intermediate); err != nil {
		t.Fatalf("GetBestMove() error = %v", err)
	}

	_, moves := sess.lastPosition()
	want := []string{"e2e4", "e7e5", "g1f3"}
	if len(moves) != len(want) {
		t.Fatalf("moves = %v, want %v", moves, want)
	}
	for i := range want {
		if moves[i] != want[i] {
			t.Errorf("moves[%d] = %q, want %q", i, moves[i], want[i])
		}
	}
}

func TestAdapter_GetBestMove_CustomStartPosition(t *testing.T) {
	sess := &fakeSession{}
	a := newTestAdapter(t, sess)

	const fen = "8/8/8/4k3/8/4K3/4P3/8 w - - 0 1"
	opt, err := chess.FEN(fen)
	if err != nil {
		t.Fatalf("FEN() error = %v", err)
	}
	game := chess.NewGame(opt)

	if _, err := a.GetBestMove(context.Background(), game, Beginner); err != nil {
		t.Fatalf("GetBestMove() error = %v", err)
	}

	startFEN, _ := sess.lastPosition()
	if startFEN != fen {
		t.Errorf("startFEN = %q, want %q", startFEN, fen)
	}
}

func TestAdapter_GetBestMove_PassesDifficultyBudget(t *testing.T) {
	var gotMovetime time.Duration
	var gotDepth int
	sess := &fakeSession{
		searchFn: func(ctx context.Context, movetime time.Duration, depth int) (*uci.SearchResult, error) {
			gotMovetime, gotDepth = movetime, depth
			return &uci.SearchResult{BestMove: "e2e4"}, nil
		},
	}
	a := newTestAdapter(t, sess)

	if _, err := a.GetBestMove(context.Background(), chess.NewGame(), Master); err != nil {
		t.Fatalf("GetBestMove() error = %v", err)
	}

	cfg := Master.Config()
	if gotMovetime != cfg.MoveTime || gotDepth != cfg.Depth {
		t.Errorf("search budget = (%v, %d), want (%v, %d)", gotMovetime, gotDepth, cfg.MoveTime, cfg.Depth)
	}
}

func TestAdapter_GetBestMove_GameOver(t *testing.T) {
	sess := &fakeSession{}
	a := newTestAdapter(t, sess)

	// Fool's mate.
	game := chess.NewGame()
	for _, san := range []string{"f3", "e5", "g4", "Qh4#"} {
		if err := game.MoveStr(san); err != nil {
			t.Fatalf("MoveStr(%q) error = %v", san, err)
		}
	}

	if _, err := a.GetBestMove(context.Background(), game, Intermediate); !errors.Is(err, ErrGameOver) {
		t.Errorf("GetBestMove() error = %v, want ErrGameOver", err)
	}
	if n := sess.searches.Load(); n != 0 {
		t.Errorf("engine searched %d times for a finished game", n)
	}
}

func TestAdapter_GetBestMoveAsync(t *testing.T) {
	sess := &fakeSession{}
	a := newTestAdapter(t, sess)

	type outcome struct {
		res *Result
		err error
	}
	got := make(chan outcome, 1)

	h, err := a.GetBestMoveAsync(chess.NewGame(), Intermediate, func(res *Result, err error) {
		got <- outcome{res, err}
	})
	if err != nil {
		t.Fatalf("GetBestMoveAsync() error = %v", err)
	}
	if h.ID() == 0 {
		t.Error("handle ID = 0, want a nonzero identifier")
	}

	select {
	case o := <-got:
		if o.err != nil {
			t.Fatalf("callback error = %v", o.err)
		}
		if o.res.BestMove != "e2e4" {
			t.Errorf("callback BestMove = %q, want e2e4", o.res.BestMove)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never delivered")
	}
}

func TestAdapter_AsyncCancel(t *testing.T) {
	release := make(chan struct{})
	sess := &fakeSession{
		searchFn: func(ctx context.Context, movetime time.Duration, depth int) (*uci.SearchResult, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return &uci.SearchResult{BestMove: "e2e4"}, nil
			}
		},
	}
	a := newTestAdapter(t, sess)
	defer close(release)

	got := make(chan error, 1)
	h, err := a.GetBestMoveAsync(chess.NewGame(), Master, func(res *Result, err error) {
		got <- err
	})
	if err != nil {
		t.Fatalf("GetBestMoveAsync() error = %v", err)
	}

	// Wait until the worker picks it up, then cancel.
	for !a.br.InFlight() {
		time.Sleep(time.Millisecond)
	}
	if !h.Cancel() {
		t.Error("Cancel() = false for an in-flight request")
	}

	select {
	case err := <-got:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("callback error = %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never delivered")
	}
}

func TestAdapter_DispatcherRunsCallbacks(t *testing.T) {
	var dispatched atomic.Int32
	d := DispatchFunc(func(fn func()) {
		dispatched.Add(1)
		go fn()
	})

	sess := &fakeSession{}
	a := newTestAdapter(t, sess, WithDispatcher(d))

	done := make(chan struct{})
	if _, err := a.GetBestMoveAsync(chess.NewGame(), Beginner, func(*Result, error) {
		close(done)
	}); err != nil {
		t.Fatalf("GetBestMoveAsync() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never delivered")
	}
	if dispatched.Load() == 0 {
		t.Error("custom dispatcher was never used")
	}
}

func TestAdapter_HintCache(t *testing.T) {
	sess := &fakeSession{}
	a := newTestAdapter(t, sess, WithHintCache(8))

	game := chess.NewGame()
	ctx := context.Background()

	if _, err := a.GetHint(ctx, game, Intermediate); err != nil {
		t.Fatalf("GetHint() error = %v", err)
	}
	if _, err := a.GetHint(ctx, game, Intermediate); err != nil {
		t.Fatalf("GetHint() error = %v", err)
	}
	if n := sess.searches.Load(); n != 1 {
		t.Errorf("engine searched %d times, want 1 (second hint cached)", n)
	}

	// A different budget misses the cache.
	if _, err := a.GetHint(ctx, game, Master); err != nil {
		t.Fatalf("GetHint() error = %v", err)
	}
	if n := sess.searches.Load(); n != 2 {
		t.Errorf("engine searched %d times, want 2", n)
	}

	// Best-move requests never consult the cache.
	if _, err := a.GetBestMove(ctx, game, Intermediate); err != nil {
		t.Fatalf("GetBestMove() error = %v", err)
	}
	if n := sess.searches.Load(); n != 3 {
		t.Errorf("engine searched %d times, want 3", n)
	}
}

func TestAdapter_CrashStopsAdapter(t *testing.T) {
	sess := &fakeSession{
		searchFn: func(ctx context.Context, movetime time.Duration, depth int) (*uci.SearchResult, error) {
			return nil, fmt.Errorf("process exited: %w", uci.ErrCrashed)
		},
	}
	a := newTestAdapter(t, sess)

	if _, err := a.GetBestMove(context.Background(), chess.NewGame(), Intermediate); !errors.Is(err, ErrCrashed) {
		t.Fatalf("GetBestMove() error = %v, want ErrCrashed", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.State() != StateStopped {
		if time.Now().After(deadline) {
			t.Fatalf("State() = %v, want stopped after crash", a.State())
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := a.GetBestMove(context.Background(), chess.NewGame(), Intermediate); !errors.Is(err, ErrClosed) {
		t.Errorf("GetBestMove() after crash error = %v, want ErrClosed", err)
	}
}

func TestAdapter_Shutdown(t *testing.T) {
	sess := &fakeSession{}
	a := newTestAdapter(t, sess)

	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
	if n := sess.shutdowns.Load(); n != 1 {
		t.Errorf("session shut down %d times, want 1", n)
	}
	if a.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", a.State())
	}

	if _, err := a.GetBestMove(context.Background(), chess.NewGame(), Intermediate); !errors.Is(err, ErrClosed) {
		t.Errorf("GetBestMove() after Shutdown error = %v, want ErrClosed", err)
	}
}

func TestAdapter_BusyWhilePending(t *testing.T) {
	release := make(chan struct{})
	sess := &fakeSession{
		searchFn: func(ctx context.Context, movetime time.Duration, depth int) (*uci.SearchResult, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-release:
				return &uci.SearchResult{BestMove: "e2e4"}, nil
			}
		},
	}
	a := newTestAdapter(t, sess)

	h, err := a.GetBestMoveAsync(chess.NewGame(), Master, nil)
	if err != nil {
		t.Fatalf("GetBestMoveAsync() error = %v", err)
	}
	if !a.IsBusy() {
		t.Error("IsBusy() = false with a pending request")
	}

	close(release)
	if _, err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for a.IsBusy() {
		if time.Now().After(deadline) {
			t.Fatal("IsBusy() still true after the request resolved")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestAdapter_EndToEnd_ScriptedEngine drives the full adapter, bridge, and
// protocol session against an in-process engine speaking UCI over pipes.
func TestAdapter_EndToEnd_ScriptedEngine(t *testing.T) {
	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()

	go func() {
		respond := func(line string) { fmt.Fprintln(outW, line) }
		scanner := bufio.NewScanner(cmdR)
		for scanner.Scan() {
			switch cmd := scanner.Text(); {
			case cmd == "uci":
				respond("id name Scripted 1.0")
				respond("uciok")
			case cmd == "isready":
				respond("readyok")
			case strings.HasPrefix(cmd, "go"):
				time.Sleep(50 * time.Millisecond)
				respond("info depth 4 score cp 30 pv d2d4 d7d5")
				respond("bestmove d2d4 ponder d7d5")
			case cmd == "quit":
				outW.Close()
				return
			}
		}
		outW.Close()
	}()
	t.Cleanup(func() {
		cmdW.Close()
		outR.Close()
	})

	sess, err := uci.Connect(cmdW, outR)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	a := newTestAdapter(t, sess)

	start := time.Now()
	res, err := a.GetBestMove(context.Background(), chess.NewGame(), Intermediate)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("GetBestMove() error = %v", err)
	}
	if res.BestMove != "d2d4" {
		t.Errorf("BestMove = %q, want d2d4", res.BestMove)
	}
	if res.Depth != 4 {
		t.Errorf("Depth = %d, want 4", res.Depth)
	}

	budget := Intermediate.Config().MoveTime + bridge.DefaultDeadlineSlack
	if elapsed >= budget {
		t.Errorf("GetBestMove() took %v, want under %v", elapsed, budget)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateUninitialized: "uninitialized",
		StateStarting:      "starting",
		StateReady:         "ready",
		StateBusy:          "busy",
		StateShuttingDown:  "shutting down",
		StateStopped:       "stopped",
		State(99):          "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int32(s), got, want)
		}
	}
}
