// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a hardened
// [Manager] for stateless access tokens.
//
// # Token format
//
// Signed claim set {uid, email, role, typ, exp} with optional issuer,
// audience, iat, and kid. Only typ=access is ever minted or accepted;
// verification is pure signature + clock work with no store lookups.
//
// # Architecture boundaries
//
// This package owns access-token minting and verification. Refresh tokens
// are opaque and never pass through here.
//
// # What this package must NOT do
//
//   - Access Redis or any I/O.
//   - Import goToken or session.
//   - Accept tokens whose typ claim is not access.
package jwt
