// Package server implements the numscan control surface: a JSON-RPC 2.0 server
// over stdio that drives the fusion engine and streams its events.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Methods:
//   - initialize, ping, methods/list
//   - scan/start, scan/stop, scan/finish, scan/missing
//   - frame/submit, frame/describe
//   - tracks/list, engine/stats
//   - session/get, session/list
//
// # Notifications
//
// The server is the engine's event sink. Each lifecycle event is written as a
// notification (track/appeared, track/updated, track/removed, value/collected)
// carrying the event fields, the current session id and, for appeared and
// updated, a label_color that contrasts with the frame behind the label.
// Notifications produced while handling frame/submit are written before its
// response.
//
// # Sessions
//
// scan/start opens a round, scan/finish closes it and scan/missing chains a
// follow-up round for what was not collected. Closed rounds are saved through
// the configured SessionStore.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses with:
//   - code: -32700 (unparseable line), -32601 (unknown method),
//     -32602 (bad params) or -32000 (method failure)
//   - message: Human-readable error description
//   - data: The Go error string
package server
