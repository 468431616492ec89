// Package pipeline coordinates the generation stages: it loads the live
// document, checks phase gates, runs the prompt or image batch, persists the
// merged result through the silent-write path, and re-evaluates phases.
// Explicit version saves and restores also run through here so they can emit
// notifications.
package pipeline
