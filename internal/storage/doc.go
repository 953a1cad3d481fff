// Package storage persists the bridge state: the selected device, the
// authorized user list and the per-device alias map, plus an optional audit
// trail of published records.
//
// Two drivers exist:
//   - "file": a JSON snapshot replaced atomically on every save, and an
//     append-only JSON Lines audit journal next to it
//   - "sqlite": a single SQLite database (modernc.org/sqlite, no cgo)
package storage
