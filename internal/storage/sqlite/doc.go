// Package sqlite persists finished scan sessions in a SQLite database.
//
// The schema is managed with golang-migrate from migrations embedded in the
// binary, so a fresh database file is usable as soon as OpenDB returns.
package sqlite
