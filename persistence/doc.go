// Package persistence provides the production SnapshotStore backends: an
// atomically-written JSON file, a Redis key, and an embedded SQLite row.
// All backends store the current workflow as a single document with
// last-writer-wins semantics; none keeps history.
package persistence
