// Package fusion runs the per-frame protocol that keeps one stable on-screen
// label per recognized value.
//
// # Frame Protocol
//
// Each call to Engine.ProcessFrame walks the same states:
//
//	Idle -> TrackerAdvance -> (every Nth frame) DetectorPass -> Reconcile -> Idle
//
//  1. TrackerAdvance: every live track is advanced through its tracker handle.
//     Failures and low-confidence results count as misses.
//  2. Eviction: stale tracks (too many misses or timed out) are removed every
//     frame and a TrackRemoved event is emitted for each one that was shown.
//  3. DetectorPass: on every DetectorCadence-th frame the detector runs, the
//     matcher picks one region per value, and each value is upserted. Values seen
//     for the first time in the scan emit ValueCollected exactly once.
//  4. Reconcile: every track whose display position is above the exclusion band
//     emits TrackAppeared (first time) or TrackUpdated with an EMA-smoothed
//     position.
//
// # Concurrency
//
// ProcessFrame is the producer role and is meant to be called from the frame
// delivery goroutine. Refresh, Snapshot, Stats and Collected may be called from
// any other goroutine. Detector and tracker calls run without holding engine
// locks; their results are applied only if the scan generation they started in
// is still current, so results that complete after Stop or a restart are
// discarded without error.
//
// Sink delivery is serialized: events reach the sink in the order the engine
// produced them and never after the TrackRemoved for the same value.
package fusion
