// Package daemon coordinates the long-running storyboard process.
//
// It wires configuration, document storage, and the pipeline runner into a
// single lifecycle with flock-based locking to prevent multiple instances,
// and exposes the HTTP API through which callers drive generation stages and
// version saves. Stage logic lives in the pipeline package; the daemon owns
// startup, shutdown, and transport.
package daemon
