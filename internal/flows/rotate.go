package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/session"
)

// RotateFailureKind classifies rotation failures for root-level mapping.
// External callers receive one uniform error regardless of kind; the kind
// exists so the root can log, audit, and count each case separately.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureNextSecret
	RotateFailureNotFound
	RotateFailureExpired
	RotateFailureReuse
	RotateFailureCompromised
	RotateFailureCorrupt
	RotateFailureStore
	RotateFailureIssueAccess
)

// RotateResult carries either the issued token pair or failure metadata.
type RotateResult struct {
	Failure RotateFailureKind
	Err     error

	UserID        string
	FamilyID      string
	RotationCount uint32

	AccessToken  string
	RefreshToken string
}

// RotateStore is the atomic consume primitive the rotation flow requires.
type RotateStore interface {
	Rotate(ctx context.Context, providedHash, nextHash [32]byte, ttl time.Duration, meta session.RotateMeta) (*session.Record, error)
}

// RotateDeps captures rotation flow dependencies.
type RotateDeps struct {
	DecodeRefreshToken func(string) (internal.RefreshSecret, error)
	NewRefreshSecret   func() (internal.RefreshSecret, error)
	HashRefreshSecret  func(internal.RefreshSecret) [32]byte
	EncodeRefreshToken func(internal.RefreshSecret) string
	IssueAccessToken   func(userID, email, role string) (string, error)
	RefreshTTL         func() time.Duration
	Store              RotateStore
}

// conflictResult carries the cascaded family's identity out of a reuse or
// compromise failure so the caller's audit event can name it.
func conflictResult(kind RotateFailureKind, err error) RotateResult {
	result := RotateResult{Failure: kind, Err: err}

	var conflict *session.FamilyConflictError
	if errors.As(err, &conflict) {
		result.UserID = conflict.UserID
		result.FamilyID = conflict.FamilyID
	}
	return result
}

// RunRotate executes refresh rotation without root package dependencies.
// The lookup-then-consume sequence is delegated to the store as one atomic
// operation; this function never reads and then separately writes.
func RunRotate(ctx context.Context, refreshToken string, meta session.RotateMeta, deps RotateDeps) RotateResult {
	providedSecret, err := deps.DecodeRefreshToken(refreshToken)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err}
	}

	nextSecret, err := deps.NewRefreshSecret()
	if err != nil {
		return RotateResult{Failure: RotateFailureNextSecret, Err: err}
	}

	rec, err := deps.Store.Rotate(
		ctx,
		deps.HashRefreshSecret(providedSecret),
		deps.HashRefreshSecret(nextSecret),
		deps.RefreshTTL(),
		meta,
	)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrReuseDetected):
			return conflictResult(RotateFailureReuse, err)
		case errors.Is(err, session.ErrFamilyCompromised):
			return conflictResult(RotateFailureCompromised, err)
		case errors.Is(err, session.ErrTokenExpired):
			return RotateResult{Failure: RotateFailureExpired, Err: err}
		case errors.Is(err, session.ErrTokenNotFound):
			return RotateResult{Failure: RotateFailureNotFound, Err: err}
		case errors.Is(err, session.ErrBlobCorrupt):
			return RotateResult{Failure: RotateFailureCorrupt, Err: err}
		default:
			return RotateResult{Failure: RotateFailureStore, Err: err}
		}
	}

	access, err := deps.IssueAccessToken(rec.UserID, rec.Email, rec.Role)
	if err != nil {
		return RotateResult{
			Failure:       RotateFailureIssueAccess,
			Err:           err,
			UserID:        rec.UserID,
			FamilyID:      rec.FamilyID,
			RotationCount: rec.RotationCount,
		}
	}

	return RotateResult{
		Failure:       RotateFailureNone,
		UserID:        rec.UserID,
		FamilyID:      rec.FamilyID,
		RotationCount: rec.RotationCount,
		AccessToken:   access,
		RefreshToken:  deps.EncodeRefreshToken(nextSecret),
	}
}
