package policy

import (
	"math/big"
	"testing"

	"github.com/Jaden-Nix/gravity-nexus/internal/vault"
)

func pools(entries ...[2]int64) []vault.PoolSnapshot {
	result := make([]vault.PoolSnapshot, 0, len(entries))
	for i, entry := range entries {
		result = append(result, vault.PoolSnapshot{
			Index:   i,
			Rate:    uint64(entry[0]),
			Balance: big.NewInt(entry[1]),
		})
	}
	return result
}

func TestEvaluateNoActionBelowThreshold(t *testing.T) {
	engine := NewEngine(100)

	// Gap of exactly the threshold must not trigger.
	intent := engine.Evaluate(pools([2]int64{500, 1000}, [2]int64{600, 0}), big.NewInt(1000))
	if intent != nil {
		t.Fatalf("gap == threshold produced intent %+v", intent)
	}

	intent = engine.Evaluate(pools([2]int64{500, 1000}, [2]int64{550, 0}), big.NewInt(1000))
	if intent != nil {
		t.Fatalf("gap < threshold produced intent %+v", intent)
	}
}

func TestEvaluateMovesTowardHighestRate(t *testing.T) {
	engine := NewEngine(100)

	intent := engine.Evaluate(pools([2]int64{500, 1000}, [2]int64{1000, 0}), big.NewInt(1000))
	if intent == nil {
		t.Fatal("expected intent")
	}
	if intent.FromIndex != 0 || intent.ToIndex != 1 {
		t.Fatalf("intent %d -> %d, want 0 -> 1", intent.FromIndex, intent.ToIndex)
	}
	if intent.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("amount %s, want 1000", intent.Amount)
	}
	if intent.RateGap != 500 {
		t.Fatalf("rate gap %d, want 500", intent.RateGap)
	}
}

func TestEvaluateDirectionFollowsRates(t *testing.T) {
	engine := NewEngine(100)

	// Funds sit in pool 1; pool 0 now pays more. The intent reverses.
	intent := engine.Evaluate(pools([2]int64{1500, 0}, [2]int64{1000, 800}), big.NewInt(800))
	if intent == nil {
		t.Fatal("expected intent")
	}
	if intent.FromIndex != 1 || intent.ToIndex != 0 {
		t.Fatalf("intent %d -> %d, want 1 -> 0", intent.FromIndex, intent.ToIndex)
	}
}

func TestEvaluateIdempotentOnceFundsMoved(t *testing.T) {
	engine := NewEngine(100)

	// Funds already in the best pool: re-evaluation degrades to no action,
	// which is what makes duplicate event delivery safe.
	intent := engine.Evaluate(pools([2]int64{500, 0}, [2]int64{1000, 1000}), big.NewInt(1000))
	if intent != nil {
		t.Fatalf("expected no action, got %+v", intent)
	}
}

func TestEvaluateSourceIsLargestBalance(t *testing.T) {
	engine := NewEngine(100)

	// Three pools; balances concentrated in pool 1, best rate in pool 2.
	intent := engine.Evaluate(
		pools([2]int64{500, 100}, [2]int64{700, 900}, [2]int64{1200, 0}),
		big.NewInt(1000),
	)
	if intent == nil {
		t.Fatal("expected intent")
	}
	if intent.FromIndex != 1 || intent.ToIndex != 2 {
		t.Fatalf("intent %d -> %d, want 1 -> 2", intent.FromIndex, intent.ToIndex)
	}
	// Amount clamps to the source pool balance.
	if intent.Amount.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("amount %s, want 900", intent.Amount)
	}
}

func TestEvaluateTiesPickLowestIndex(t *testing.T) {
	engine := NewEngine(100)

	intent := engine.Evaluate(
		pools([2]int64{500, 1000}, [2]int64{1200, 0}, [2]int64{1200, 0}),
		big.NewInt(1000),
	)
	if intent == nil {
		t.Fatal("expected intent")
	}
	if intent.ToIndex != 1 {
		t.Fatalf("target %d, want 1 (lowest index wins ties)", intent.ToIndex)
	}
}

func TestEvaluateDegenerateInputs(t *testing.T) {
	engine := NewEngine(0)
	if engine.Threshold() != DefaultThreshold {
		t.Fatalf("threshold %d, want default %d", engine.Threshold(), DefaultThreshold)
	}

	if intent := engine.Evaluate(nil, big.NewInt(100)); intent != nil {
		t.Fatalf("nil pools produced intent %+v", intent)
	}
	if intent := engine.Evaluate(pools([2]int64{500, 100}), big.NewInt(100)); intent != nil {
		t.Fatalf("single pool produced intent %+v", intent)
	}
	if intent := engine.Evaluate(pools([2]int64{500, 100}, [2]int64{1000, 0}), nil); intent != nil {
		t.Fatalf("nil amount produced intent %+v", intent)
	}
	// Empty source pool: nothing to move.
	if intent := engine.Evaluate(pools([2]int64{500, 0}, [2]int64{1000, 0}), big.NewInt(100)); intent != nil {
		t.Fatalf("empty pools produced intent %+v", intent)
	}
}

func TestSetThreshold(t *testing.T) {
	engine := NewEngine(100)
	engine.SetThreshold(600)

	intent := engine.Evaluate(pools([2]int64{500, 1000}, [2]int64{1000, 0}), big.NewInt(1000))
	if intent != nil {
		t.Fatalf("gap 500 with threshold 600 produced intent %+v", intent)
	}
	engine.SetThreshold(499)
	intent = engine.Evaluate(pools([2]int64{500, 1000}, [2]int64{1000, 0}), big.NewInt(1000))
	if intent == nil {
		t.Fatal("gap 500 with threshold 499 expected intent")
	}
}
