// Package notifications publishes pipeline lifecycle events to an ntfy
// topic. When no topic is configured the service degrades to a noop so
// callers never need to guard their notification calls.
package notifications
