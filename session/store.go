package session

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is an exported constant or variable used by the token engine.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrTokenNotFound is returned when the presented hash matches no active
// record and no blacklist entry.
var ErrTokenNotFound = errors.New("refresh record not found")

// ErrTokenExpired is returned when the record exists but is logically
// expired. This is a soft failure; it never triggers the compromise cascade.
var ErrTokenExpired = errors.New("refresh record expired")

// ErrReuseDetected is returned when an already-consumed hash is presented
// again. The store has already cascaded the family by the time this returns.
var ErrReuseDetected = errors.New("refresh token reuse detected")

// ErrFamilyCompromised is returned by the defensive family re-check during
// rotation. Treated identically to reuse.
var ErrFamilyCompromised = errors.New("token family compromised")

// ErrFamilyNotFound is an exported constant or variable used by the token engine.
var ErrFamilyNotFound = errors.New("token family not found")

// FamilyConflictError wraps ErrReuseDetected or ErrFamilyCompromised with the
// identity of the family the store cascaded, so the audit trail can name the
// affected lineage and user. errors.Is against the wrapped sentinel keeps
// working; UserID may be empty when the family tombstone has aged out.
type FamilyConflictError struct {
	Sentinel error
	FamilyID string
	UserID   string
}

func (e *FamilyConflictError) Error() string { return e.Sentinel.Error() }

func (e *FamilyConflictError) Unwrap() error { return e.Sentinel }

// RotateMeta carries the caller metadata recorded on the successor token.
type RotateMeta struct {
	UserAgent string
	IPAddress string
}

// Store is the persistence contract behind the rotation engine. It merges the
// refresh-record keyspace, the family registry, and the consumed-token
// blacklist because every consume path must touch all three in one atomic
// step.
//
// Implementations must guarantee that Rotate and Revoke are atomic with
// respect to concurrent calls on the same hash: exactly one concurrent
// rotation of a given token may succeed, every other attempt must observe
// the blacklist and fail as reuse. PruneExpired must ride the same atomic
// primitives so a sweep racing an in-flight rotation cannot corrupt state.
type Store interface {
	// Save persists a fresh login: one record plus its newly created family.
	Save(ctx context.Context, rec *Record, fam *Family) error

	// Rotate atomically consumes the record addressed by providedHash,
	// blacklists it, and installs a successor record under nextHash with
	// RotationCount+1, a fresh TTL, and the caller's metadata. The family's
	// LastUsed and RotationCount advance in the same step. Returns the
	// successor.
	//
	// Failure taxonomy: ErrTokenNotFound, ErrTokenExpired, ErrReuseDetected
	// (family already cascaded), ErrFamilyCompromised (family already
	// cascaded), ErrBlobCorrupt, ErrStoreUnavailable.
	Rotate(ctx context.Context, providedHash, nextHash [32]byte, ttl time.Duration, meta RotateMeta) (*Record, error)

	// Revoke consumes and blacklists a single record without touching its
	// family. Reports whether a record was actually consumed.
	Revoke(ctx context.Context, providedHash [32]byte) (bool, error)

	// RevokeAllForUser blacklists and deletes every record for the user and
	// drops their families (logout-everywhere).
	RevokeAllForUser(ctx context.Context, userID string) error

	// InvalidateFamily marks the family compromised and blacklists and
	// deletes every active record sharing it. Used both for explicit
	// revocation and as the breach-response cascade.
	InvalidateFamily(ctx context.Context, familyID string) error

	// ListByUser returns the user's active, non-expired records.
	ListByUser(ctx context.Context, userID string) ([]*Record, error)

	// GetFamily returns the family, including compromised tombstones that
	// have not aged out yet.
	GetFamily(ctx context.Context, familyID string) (*Family, error)

	// PruneExpired evicts expired records, dangling index entries, and
	// blacklist entries older than refresh-TTL + clock-skew. Returns the
	// number of entries removed.
	PruneExpired(ctx context.Context) (int, error)

	// Ping reports backend availability and round-trip latency.
	Ping(ctx context.Context) (time.Duration, error)
}
