/*
Package ports defines the driven ports (interfaces) for the humanbrowse
engine.

These interfaces decouple the orchestration core from external
implementations, allowing the engine to work with different browser drivers,
artifact writers, and session-status backends.

# Key Interfaces

  - Browser / Page: The blocking capability interface over the external
    CDP-speaking browser. One fallible, timeout-aware operation per step verb.
  - ArtifactStore: The append-only per-run log plus the mutable metadata
    record. No other component writes files directly.
  - SessionStore: Persisted session-status snapshots (memory or Redis).
  - BlockDetector: The pluggable predicate deciding blocked vs error.
*/
package ports
