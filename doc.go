// Package goToken provides a session token engine with JWT access tokens,
// single-use rotating opaque refresh tokens, token-family reuse detection
// with compromise cascade, and Redis-backed or in-memory persistence.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goToken is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (TokenPair, Claims, SessionInfo, MetricsSnapshot). All
// internal coordination — flow orchestration, record encoding, secret
// generation, audit dispatch — lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its
//     public API.
//   - Leak the internal failure taxonomy through returned errors: Rotate and
//     VerifyAccess fail with one uniform sentinel each, and classification
//     is observable only through audit events and metrics.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//
// # Performance contract
//
// VerifyAccess is the hot path. It is pure signature and clock work — no
// store round-trips — and must not allocate beyond the returned Claims
// struct. Issue and Rotate are allowed one store round-trip per call.
package goToken
