// Package ledger houses blockchain connectivity for the rebalancer: RPC
// clients, log subscriptions, pool contract bindings, and multi-ledger
// configuration helpers. The automation observes rate events on one ledger
// and executes callbacks against another, so clients are kept behind a small
// interface and organized in a registry keyed by ledger name.
package ledger
