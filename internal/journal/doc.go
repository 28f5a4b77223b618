// Package journal is the local SQLite store of the CLI.
//
// It keeps two things across restarts:
//
//   - uploads whose bytes are in permanent storage but whose index write has
//     not succeeded yet, so that only the index write is ever retried;
//   - every signed funding transfer with its last known status, so that an
//     ambiguous transfer can be checked on chain before funding again.
//
// The schema is applied with embedded goose migrations on Open.
package journal
