// Package imagegen provides an OpenAI-style image generation client used by
// the bulk image generator. Results reference transient provider URLs; the
// asset archiver is responsible for making them durable.
package imagegen
