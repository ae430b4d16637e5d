// Package structured converts between in-process dataframes and portable
// structured-dataset literals.
//
// # Handlers
//
// A handler is bound to exactly one (dataframe type, storage protocol,
// encoding format) triple and implements Encoder, Decoder, or both. The empty
// format is a wildcard that serves any format request for its (type, protocol).
// Embed a Binding to satisfy the Handler half of either interface, or use
// NewEncoder/NewDecoder to adapt a plain function.
//
// # Registry
//
// Registry holds two three-level tables (type -> protocol -> format), one for
// encoders and one for decoders, plus the per-type default protocol and format.
// Registration rejects duplicates and happens once at process start through a
// Builder, which runs every Registrar, applies pinned defaults and seals the
// registry. A sealed registry is read-only and safe for concurrent lookups.
//
// # Engine
//
// Engine dispatches conversions. ToLiteral accepts a tagged Input (Wrapped,
// Bare or BareAs) decided by the caller, infers the protocol from the URI
// scheme, falls back to per-type defaults and invokes the resolved encoder.
// ToDataset builds a lazy Dataset without touching storage; ToFrame and Open
// resolve a decoder and return a Result, which is either a single dataframe
// or a single-pass stream of chunks.
//
// Lookup misses surface as *HandlerNotFoundError naming the level (type,
// protocol or format) that failed. Handler and storage errors are returned
// unchanged.
package structured
