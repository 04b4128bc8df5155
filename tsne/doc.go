// Package tsne is the binding between Go callers and a native t-SNE routine.
//
// The package exposes one operation, RunEmbedding. It converts a caller's
// matrix and scalar settings into the native parameter types, invokes the
// routine exactly once, and hands the routine's result bundle back to the
// caller untouched. It keeps no state between calls and validates nothing
// beyond type conversion: range checks such as perplexity against the row
// count belong to the routine, which is expected to fail loudly.
//
// The routine itself is injected as an Embedder. The engine package provides
// a Go implementation and the bhtsne package binds the native library via cgo.
//
// Two error kinds cross the boundary:
//
//	errors.Is(err, tsne.ErrArgumentType)      // conversion failed, routine not called
//	errors.Is(err, tsne.ErrNativeComputation) // routine failed, message preserved
package tsne
