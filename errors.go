package goToken

import "errors"

var (
	// ErrTokenInvalid is the uniform failure returned by [Engine.VerifyAccess]
	// for every malformed, mis-signed, wrong-type, or expired access token.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrRefreshInvalid is the uniform failure returned by [Engine.Rotate] for
	// every expected rotation failure. Not-found, expired, reuse, and
	// compromised-family cases are indistinguishable to the caller so the API
	// never acts as an oracle; audit events and metrics carry the real
	// classification.
	ErrRefreshInvalid = errors.New("invalid or expired refresh token")
	// ErrIdentityIncomplete is an exported constant or variable used by the token engine.
	ErrIdentityIncomplete = errors.New("identity tuple incomplete")
	// ErrStoreUnavailable is an exported constant or variable used by the token engine.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the token engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
