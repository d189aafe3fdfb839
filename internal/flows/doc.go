// Package flows contains the issuance and rotation algorithms as pure
// orchestration over injected dependencies.
//
// # Pattern
//
// Each flow is a RunX function taking a Deps struct and returning a Result
// with a FailureKind enum. The root package maps kinds onto metrics, audit
// events, and its uniform public errors. Keeping the algorithms here keeps
// them testable without Redis, JWT keys, or the engine.
//
// # Architecture boundaries
//
// Flows own ordering and classification. Atomicity belongs to the store;
// error uniformity belongs to the root package.
//
// # What this package must NOT do
//
//   - Import goToken or jwt.
//   - Emit audit events or touch metrics.
//   - Split an atomic store step into read-then-write.
package flows
