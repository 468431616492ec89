// Package imaging drives per-scene image generation as a strictly
// sequential batch. Sequential execution keeps provider rate limits and the
// meaning of "current item" in progress events trivial to reason about;
// per-item failures never abort the batch.
package imaging
