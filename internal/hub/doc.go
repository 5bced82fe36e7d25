// Package hub implements the remote execution hub: the single entry point
// through which the automation principal can act on the vault. Callers are
// authenticated against one registered principal; action failures are
// reported as structured outcomes rather than errors, because the caller
// sits on the other side of a ledger boundary and cannot consume aborts.
package hub
