// Package modelcache is a secondary cache for datastore records. It stores
// records, alternate-key references and named result sets in a
// provider-agnostic key-value backend and invalidates them with short-lived
// tombstones.
//
// Components:
//   - Provider: byte store with TTL (e.g. Redis, Ristretto, BigCache, memory).
//   - Codec[R]: (de)serializes R <-> []byte.
//   - Descriptor: per record type identity (namespace, name, primary and unique attributes).
//
// Keys:
//
//	model:<ns>.<name>[k=v,...]           - object keys (records and references)
//	model:<ns>.<name>:<set>[k=v,...]     - named sets ("[...]" omitted when empty)
//
// Vary-by pairs are sorted by attribute name, so equal maps always produce
// equal keys.
//
// Invalidation:
//
//	cache.Delete(ctx, w)                   // tombstone for TombstoneDelay (default 5s)
//	cache.Delete(ctx, w, modelcache.Force()) // hard delete
//
// A tombstone closes the window where a slow reader populates a record that
// was deleted while it was reading from the datastore: the read-through Manager
// does not populate over a live tombstone, and the tombstone itself expires
// after the delay.
//
// Around the cache:
//   - Manager[R] reads through to a Source[R] and populates on miss.
//   - Lifecycle[R] stores on save, tombstones on delete and fans out
//     Invalidation events to subscribers (see notify/redis for other processes).
//   - config builds providers, registries and Options from TOML or YAML.
package modelcache
