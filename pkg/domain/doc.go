/*
Package domain contains the core domain models for the humanbrowse engine.

It defines the fundamental entities of a browsing run, such as Steps, Runs,
StepRecords, and the Session lifecycle. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Step: One atomic browser action from the closed vocabulary.
  - Run: One execution of an ordered step list against a session.
  - StepRecord / Note: Append-only records of what happened during a run.
  - SessionState: The lifecycle of one connection to a browser instance.
*/
package domain
