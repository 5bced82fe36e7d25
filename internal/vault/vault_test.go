package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	owner = common.HexToAddress("0xA1")
	mover = common.HexToAddress("0xB2")
	user  = common.HexToAddress("0xC3")
)

func newTestVault(t *testing.T, rates ...uint64) (*Vault, []*MemoryAdapter) {
	t.Helper()
	v := New("USDC", owner)
	adapters := make([]*MemoryAdapter, 0, len(rates))
	for _, rate := range rates {
		adapter := NewMemoryAdapter(rate)
		if _, err := v.AddAdapter(owner, adapter); err != nil {
			t.Fatalf("add adapter: %v", err)
		}
		adapters = append(adapters, adapter)
	}
	return v, adapters
}

func TestDepositGoesToFirstPool(t *testing.T) {
	v, adapters := newTestVault(t, 500, 1000)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	held, err := adapters[0].TotalHeld(ctx)
	if err != nil {
		t.Fatalf("total held: %v", err)
	}
	if held.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("pool 0 holds %s, want 1000", held)
	}
	if claim := v.ClaimOf(user); claim.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("claim %s, want 1000", claim)
	}
}

func TestDepositRejectsNonPositiveAmount(t *testing.T) {
	v, _ := newTestVault(t, 500)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero deposit: got %v, want ErrInvalidAmount", err)
	}
	if err := v.Deposit(ctx, user, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative deposit: got %v, want ErrInvalidAmount", err)
	}
}

func TestWithdrawPullsAcrossPoolsInOrder(t *testing.T) {
	v, adapters := newTestVault(t, 500, 1000)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := v.SetAuthorization(owner, mover, true); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if _, err := v.MoveBetweenPools(ctx, mover, 0, 1, big.NewInt(600)); err != nil {
		t.Fatalf("move: %v", err)
	}

	// 400 in pool 0, 600 in pool 1; withdrawing 700 must drain pool 0 first.
	if err := v.Withdraw(ctx, user, big.NewInt(700)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	held0, _ := adapters[0].TotalHeld(ctx)
	held1, _ := adapters[1].TotalHeld(ctx)
	if held0.Sign() != 0 {
		t.Fatalf("pool 0 holds %s, want 0", held0)
	}
	if held1.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("pool 1 holds %s, want 300", held1)
	}
	if claim := v.ClaimOf(user); claim.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("claim %s, want 300", claim)
	}
}

func TestWithdrawRejectsOverClaim(t *testing.T) {
	v, _ := newTestVault(t, 500)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := v.Withdraw(ctx, user, big.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestPauseBlocksDepositButNotWithdraw(t *testing.T) {
	v, _ := newTestVault(t, 500, 1000)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := v.Pause(owner); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if err := v.Deposit(ctx, user, big.NewInt(1)); !errors.Is(err, ErrPaused) {
		t.Fatalf("deposit while paused: got %v, want ErrPaused", err)
	}
	if err := v.SetAuthorization(owner, mover, true); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if _, err := v.MoveBetweenPools(ctx, mover, 0, 1, big.NewInt(10)); !errors.Is(err, ErrPaused) {
		t.Fatalf("move while paused: got %v, want ErrPaused", err)
	}
	// The escape hatch stays open while paused.
	if err := v.Withdraw(ctx, user, big.NewInt(100)); err != nil {
		t.Fatalf("withdraw while paused: %v", err)
	}

	if err := v.Unpause(owner); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := v.Deposit(ctx, user, big.NewInt(1)); err != nil {
		t.Fatalf("deposit after unpause: %v", err)
	}
}

func TestMoveRequiresAuthorization(t *testing.T) {
	v, _ := newTestVault(t, 500, 1000)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := v.MoveBetweenPools(ctx, mover, 0, 1, big.NewInt(10)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}

	// Owner may move without explicit authorization.
	if _, err := v.MoveBetweenPools(ctx, owner, 0, 1, big.NewInt(10)); err != nil {
		t.Fatalf("owner move: %v", err)
	}

	if err := v.SetAuthorization(owner, mover, true); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if _, err := v.MoveBetweenPools(ctx, mover, 0, 1, big.NewInt(10)); err != nil {
		t.Fatalf("authorized move: %v", err)
	}
	if err := v.SetAuthorization(owner, mover, false); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := v.MoveBetweenPools(ctx, mover, 0, 1, big.NewInt(10)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("revoked move: got %v, want ErrUnauthorized", err)
	}
}

func TestMoveClampsToAvailableBalance(t *testing.T) {
	v, adapters := newTestVault(t, 500, 1000)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(300)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	moved, err := v.MoveBetweenPools(ctx, owner, 0, 1, big.NewInt(1000))
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("moved %s, want 300", moved)
	}

	// Source is empty now; a clamp to zero still succeeds.
	moved, err = v.MoveBetweenPools(ctx, owner, 0, 1, big.NewInt(50))
	if err != nil {
		t.Fatalf("zero-clamp move: %v", err)
	}
	if moved.Sign() != 0 {
		t.Fatalf("moved %s, want 0", moved)
	}

	held1, _ := adapters[1].TotalHeld(ctx)
	if held1.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("pool 1 holds %s, want 300", held1)
	}
}

func TestMoveValidatesIndexes(t *testing.T) {
	v, _ := newTestVault(t, 500, 1000)
	ctx := context.Background()

	if _, err := v.MoveBetweenPools(ctx, owner, 0, 7, big.NewInt(10)); !errors.Is(err, ErrIndexOutOfBounds) {
		t.Fatalf("bad target: got %v, want ErrIndexOutOfBounds", err)
	}
	if _, err := v.MoveBetweenPools(ctx, owner, 5, 1, big.NewInt(10)); !errors.Is(err, ErrIndexOutOfBounds) {
		t.Fatalf("bad source: got %v, want ErrIndexOutOfBounds", err)
	}
	moved, err := v.MoveBetweenPools(ctx, owner, 0, 0, big.NewInt(10))
	if err != nil {
		t.Fatalf("same pool: %v", err)
	}
	if moved.Sign() != 0 {
		t.Fatalf("same pool moved %s, want 0", moved)
	}
}

func TestAddAdapterOwnerOnlyAppendOnly(t *testing.T) {
	v, _ := newTestVault(t, 500)

	if _, err := v.AddAdapter(user, NewMemoryAdapter(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	idx, err := v.AddAdapter(owner, NewMemoryAdapter(100))
	if err != nil {
		t.Fatalf("add adapter: %v", err)
	}
	if idx != 1 {
		t.Fatalf("index %d, want 1", idx)
	}
	if v.AdaptersCount() != 2 {
		t.Fatalf("count %d, want 2", v.AdaptersCount())
	}
}

func TestConservationAcrossMoves(t *testing.T) {
	v, _ := newTestVault(t, 500, 1000, 1500)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	moves := [][3]int64{{0, 1, 400}, {1, 2, 250}, {2, 0, 100}, {0, 2, 9999}}
	for _, m := range moves {
		if _, err := v.MoveBetweenPools(ctx, owner, int(m[0]), int(m[1]), big.NewInt(m[2])); err != nil {
			t.Fatalf("move %v: %v", m, err)
		}
		total, err := v.TotalAssets(ctx)
		if err != nil {
			t.Fatalf("total assets: %v", err)
		}
		if total.Cmp(big.NewInt(1000)) != 0 {
			t.Fatalf("total %s after move %v, want 1000", total, m)
		}
	}
}

func TestSnapshotReadsFreshRates(t *testing.T) {
	v, adapters := newTestVault(t, 500, 1000)
	ctx := context.Background()

	adapters[1].SetRate(1500)
	pools, err := v.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("pools %d, want 2", len(pools))
	}
	if pools[1].Rate != 1500 {
		t.Fatalf("rate %d, want 1500", pools[1].Rate)
	}
}

func TestRebalanceListenerFiresOnlyWhenMoved(t *testing.T) {
	var events []RebalanceEvent
	v := New("USDC", owner, WithRebalanceListener(func(e RebalanceEvent) {
		events = append(events, e)
	}))
	ctx := context.Background()
	for _, rate := range []uint64{500, 1000} {
		if _, err := v.AddAdapter(owner, NewMemoryAdapter(rate)); err != nil {
			t.Fatalf("add adapter: %v", err)
		}
	}
	if err := v.Deposit(ctx, user, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := v.MoveBetweenPools(ctx, owner, 0, 1, big.NewInt(100)); err != nil {
		t.Fatalf("move: %v", err)
	}
	// Zero-clamp move must not emit an event.
	if _, err := v.MoveBetweenPools(ctx, owner, 0, 1, big.NewInt(100)); err != nil {
		t.Fatalf("second move: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("events %d, want 1", len(events))
	}
	if events[0].FromIndex != 0 || events[0].ToIndex != 1 || events[0].Moved.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

// faultyAdapter wraps MemoryAdapter and fails withdrawals on demand.
type faultyAdapter struct {
	*MemoryAdapter
	failWithdraw bool
}

func (a *faultyAdapter) Withdraw(ctx context.Context, amount *big.Int) (*big.Int, error) {
	if a.failWithdraw {
		return nil, errors.New("pool unavailable")
	}
	return a.MemoryAdapter.Withdraw(ctx, amount)
}

func TestWithdrawRollsBackWhenPoolFails(t *testing.T) {
	v := New("USDC", owner)
	ctx := context.Background()
	good := NewMemoryAdapter(500)
	bad := &faultyAdapter{MemoryAdapter: NewMemoryAdapter(1000)}
	for _, adapter := range []Adapter{good, bad} {
		if _, err := v.AddAdapter(owner, adapter); err != nil {
			t.Fatalf("add adapter: %v", err)
		}
	}

	if err := v.Deposit(ctx, user, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := v.MoveBetweenPools(ctx, owner, 0, 1, big.NewInt(600)); err != nil {
		t.Fatalf("move: %v", err)
	}

	// 400 in pool 0, 600 in pool 1; pool 1 refuses the second leg.
	bad.failWithdraw = true
	if err := v.Withdraw(ctx, user, big.NewInt(1000)); err == nil {
		t.Fatal("withdraw through a failing pool must error")
	}

	// The first leg is restored, the claim untouched.
	if claim := v.ClaimOf(user); claim.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("claim %s after failed withdraw, want 1000", claim)
	}
	held0, _ := good.TotalHeld(ctx)
	if held0.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("pool 0 holds %s after failed withdraw, want 400", held0)
	}
	total, err := v.TotalAssets(ctx)
	if err != nil {
		t.Fatalf("total assets: %v", err)
	}
	if total.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("total %s after failed withdraw, want 1000", total)
	}

	// The vault still works once the pool recovers.
	bad.failWithdraw = false
	if err := v.Withdraw(ctx, user, big.NewInt(1000)); err != nil {
		t.Fatalf("withdraw after recovery: %v", err)
	}
}

func TestWithdrawRestoresWhenLiquidityShort(t *testing.T) {
	v, adapters := newTestVault(t, 500, 1000)
	ctx := context.Background()

	if err := v.Deposit(ctx, user, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := v.MoveBetweenPools(ctx, owner, 0, 1, big.NewInt(600)); err != nil {
		t.Fatalf("move: %v", err)
	}
	// Drain pool 1 behind the vault's back.
	if _, err := adapters[1].Withdraw(ctx, big.NewInt(600)); err != nil {
		t.Fatalf("external drain: %v", err)
	}

	if err := v.Withdraw(ctx, user, big.NewInt(1000)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}

	// Pool 0 keeps its 400; nothing was consumed by the failed call.
	held0, _ := adapters[0].TotalHeld(ctx)
	if held0.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("pool 0 holds %s after short withdraw, want 400", held0)
	}
	if claim := v.ClaimOf(user); claim.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("claim %s after short withdraw, want 1000", claim)
	}
}
