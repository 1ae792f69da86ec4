package movecache

import (
	"testing"
	"time"

	"github.com/openboard/enginebridge/internal/uci"
)

func TestCache_GetAdd(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	key := Key("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 500*time.Millisecond, 4)
	if _, ok := c.Get(key); ok {
		t.Error("Get() on empty cache returned a result")
	}

	c.Add(key, &uci.SearchResult{BestMove: "e2e4"})
	res, ok := c.Get(key)
	if !ok {
		t.Fatal("Get() after Add() missed")
	}
	if res.BestMove != "e2e4" {
		t.Errorf("BestMove = %q, want e2e4", res.BestMove)
	}
}

func TestCache_Evicts(t *testing.T) {
	c, err := New(1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c.Add("a", &uci.SearchResult{BestMove: "a2a3"})
	c.Add("b", &uci.SearchResult{BestMove: "b2b3"})

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry survived past capacity")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestKey_DistinguishesBudgets(t *testing.T) {
	fen := "8/8/8/8/8/8/8/8 w - - 0 1"
	a := Key(fen, 150*time.Millisecond, 2)
	b := Key(fen, 500*time.Millisecond, 4)
	if a == b {
		t.Error("keys for different budgets collide")
	}
}
