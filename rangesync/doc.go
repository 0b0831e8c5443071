// Package rangesync implements range-based set reconciliation between two
// peers holding unordered key/value sets, following Aljoscha Meyer's
// "Range-Based Set Reconciliation": peers exchange cryptographic
// fingerprints over key ranges and subdivide ranges whose fingerprints
// disagree until the ranges are small enough to ship their contents
// literally.
//
// The package is deliberately narrow: it knows nothing about transport,
// persistence, or entry semantics beyond a key and a fingerprint. See
// package memstore for a reference Store, and package transport for a
// minimal way to carry Messages between two processes.
package rangesync
