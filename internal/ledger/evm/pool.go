package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Jaden-Nix/gravity-nexus/internal/vault"
)

// poolABI is the minimal surface every yield pool contract exposes. The
// rebalancer depends on nothing beyond a rate, a balance, and fund movement.
const poolABI = `[
  {"type":"function","name":"supplyRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"RateUpdated","inputs":[{"name":"newRate","type":"uint256","indexed":false}],"anonymous":false}
]`

// RateUpdatedTopic is the log topic of the RateUpdated(uint256) event emitted
// by pool contracts whenever their supply rate changes.
var RateUpdatedTopic = crypto.Keccak256Hash([]byte("RateUpdated(uint256)"))

// PoolAdapter adapts an on-chain yield pool contract to the vault.Adapter
// interface. Reads go through eth_call; deposits and withdrawals are real
// transactions and require a configured transactor.
type PoolAdapter struct {
	address  common.Address
	contract *bind.BoundContract
	signer   *bind.TransactOpts
}

// NewPoolAdapter binds the pool contract at address using the given client.
// signer may be nil for read-only deployments; fund movement then fails fast.
func NewPoolAdapter(client *Client, address common.Address, signer *bind.TransactOpts) (*PoolAdapter, error) {
	if client == nil || client.Backend() == nil {
		return nil, errors.New("ledger client is required")
	}
	parsed, err := abi.JSON(strings.NewReader(poolABI))
	if err != nil {
		return nil, fmt.Errorf("parse pool ABI: %w", err)
	}
	backend := client.Backend()
	contract := bind.NewBoundContract(address, parsed, backend, backend, backend)
	return &PoolAdapter{address: address, contract: contract, signer: signer}, nil
}

// Address returns the pool contract address, used as the event source in
// subscription registrations.
func (p *PoolAdapter) Address() common.Address { return p.address }

// CurrentRate reads the pool supply rate in basis points.
func (p *PoolAdapter) CurrentRate(ctx context.Context) (uint64, error) {
	value, err := p.readUint(ctx, "supplyRate")
	if err != nil {
		return 0, err
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("supply rate %s overflows uint64", value)
	}
	return value.Uint64(), nil
}

// TotalHeld reads the pool balance.
func (p *PoolAdapter) TotalHeld(ctx context.Context) (*big.Int, error) {
	return p.readUint(ctx, "totalAssets")
}

// Deposit moves funds into the pool with an on-chain transaction.
func (p *PoolAdapter) Deposit(ctx context.Context, amount *big.Int) error {
	return p.transact(ctx, "deposit", amount)
}

// Withdraw moves funds out of the pool with an on-chain transaction.
func (p *PoolAdapter) Withdraw(ctx context.Context, amount *big.Int) (*big.Int, error) {
	if err := p.transact(ctx, "withdraw", amount); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

func (p *PoolAdapter) readUint(ctx context.Context, method string) (*big.Int, error) {
	var out []interface{}
	if err := p.contract.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return nil, fmt.Errorf("call %s on pool %s: %w", method, p.address.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s on pool %s: empty result", method, p.address.Hex())
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("call %s on pool %s: unexpected result type %T", method, p.address.Hex(), out[0])
	}
	return value, nil
}

func (p *PoolAdapter) transact(ctx context.Context, method string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("amount must be positive")
	}
	if p.signer == nil {
		return fmt.Errorf("pool %s has no transactor configured", p.address.Hex())
	}
	opts := *p.signer
	opts.Context = ctx
	if _, err := p.contract.Transact(&opts, method, amount); err != nil {
		return fmt.Errorf("%s on pool %s: %w", method, p.address.Hex(), err)
	}
	return nil
}

var _ vault.Adapter = (*PoolAdapter)(nil)
