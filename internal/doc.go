// Package internal holds small cross-cutting helpers shared by the root
// engine and its flows: refresh secret generation, one-way hashing, opaque
// token encoding, and family ID minting.
//
// # Architecture boundaries
//
// This package owns credential byte handling only. It performs no I/O and
// never sees the store or the JWT layer.
//
// # What this package must NOT do
//
//   - Persist or log raw secrets.
//   - Import goToken, jwt, or session.
package internal
