// Package track owns per-value track state: one Track per distinct recognized
// value currently considered visible.
//
// Responsibilities: track creation from detector hits, confidence-gated
// tracker advances, hit/miss bookkeeping, lock promotion, and eviction of stale
// tracks. Key types: Track, Policy, Store.
//
// State changes are pure functions on the Track value (Detected, Advanced,
// Stale). Store applies them under a reader/writer lock and stores tracks by
// value, so a reader can never observe a half-applied update.
package track
