// Package vault implements the capital allocation engine: a fixed-asset
// vault that spreads deposits across an append-only arena of yield pool
// adapters and lets authorized principals shift liquidity between pools.
// Pool balances and rates are always read fresh from the adapters; the
// vault itself only tracks per-principal claims and authorization.
package vault
