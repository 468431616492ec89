// Package assets turns transient provider-hosted images into durable stored
// copies with provenance records. Archiving failures degrade to the transient
// source URL with a warning instead of aborting the enclosing batch.
package assets
