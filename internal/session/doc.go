// Package session aggregates the values collected during one scanning run and
// reconciles them against the expected target list.
//
// A Session is fed by the engine's ValueCollected events (Observe) or by
// manual entry (Record). Close produces the Result that is persisted; a closed
// session can spawn a "scan for missing" round seeded with the values it did
// not find.
package session
