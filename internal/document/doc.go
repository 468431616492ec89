// Package document defines the storyboard document model: the per-project
// record of scenes, elements, and style that every pipeline stage reads and
// mutates, plus the immutable version snapshots cut from it.
package document
