// Package persistence provides durable storage for agent snapshots: the
// episodic record set, the semantic concept graph and the personality
// trait vector, saved together at consolidation checkpoints and on
// orderly shutdown.
//
// Supported backends:
//   - Memory: for development and testing (default)
//   - File: atomic JSON file for single-node deployments
//   - Redis: for deployments that already run Redis
//   - SQL: Postgres or SQLite rows with bounded history
//
// All backends implement SnapshotStore. Use NewSnapshotStore with a
// StoreConfig to construct the configured backend.
package persistence
