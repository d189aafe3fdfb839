// Package session stores refresh-token records, token families, and the
// consumed-token blacklist behind the [Store] interface.
//
// # Data model
//
// A Record is addressed by the SHA-256 hash of its secret; the raw secret is
// never persisted. Every Record belongs to exactly one Family, the lineage of
// tokens descending from a single login. Consumed hashes move to the
// blacklist, retained for refresh-TTL plus a clock-skew buffer, which is the
// window in which reuse detection is meaningful.
//
// # Implementations
//
// [RedisStore] is the production backend: all lookup-then-consume sequences
// are Lua scripts, making rotation a single atomic compare-and-delete.
// [MemoryStore] is the reference backend for tests and single-process use,
// serialized by one mutex.
//
// # Architecture boundaries
//
// This package owns persistence and the atomic consume primitives. Rotation
// policy, token minting, uniform error mapping, and audit emission belong to
// the Engine and internal/flows.
//
// # What this package must NOT do
//
//   - See raw refresh secrets or signing keys.
//   - Import goToken, jwt, or internal/flows.
package session
