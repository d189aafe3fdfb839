package session

// Record defines a public type used by goToken APIs.
//
// Record instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// Exactly one active Record exists per issued-and-not-yet-rotated refresh
// token. Rotation never mutates a Record in place; it creates a successor and
// blacklists the consumed one. TokenHash is the store key and is never
// included in any caller-facing projection.
type Record struct {
	TokenHash [32]byte

	UserID string
	Email  string
	Role   string

	FamilyID string

	RotationCount uint32

	UserAgent string
	IPAddress string

	CreatedAt int64
	ExpiresAt int64
}

// Family defines a public type used by goToken APIs.
//
// Family instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// A Family represents the entire chain of refresh tokens produced by
// successive rotations starting from one login. Once Compromised is set,
// every Record referencing the family is invalid even if not yet deleted.
type Family struct {
	FamilyID string
	UserID   string

	RotationCount uint32
	Compromised   bool

	CreatedAt int64
	LastUsed  int64
}
