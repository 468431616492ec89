// Package prompting drives text-generation calls that produce per-scene
// image prompts. The batch strategy issues one combined provider call for
// every requested scene; the per-scene strategy trades a call per scene for
// isolated failures.
package prompting
