// Package docstore persists storyboard documents, their numbered version
// snapshots, and per-scene asset provenance in SQLite. All writes to a
// document flow through a single code path so silent updates and explicit
// saves cannot diverge.
package docstore
