// Package reactive contains the automation pipeline: the subscription
// registry, the event delivery queues, the ledger log watcher and the
// agent that turns subscribed events into policy evaluations. Delivery is
// at-least-once and unordered, so every consumer in this package is
// written to be idempotent under duplicates.
package reactive
