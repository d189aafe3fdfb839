package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/session"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureIdentity
	IssueFailureSecret
	IssueFailurePersist
	IssueFailureIssueAccess
)

// IssueInput is the identity tuple handed over by a successful
// authentication step, plus client metadata for the session record.
type IssueInput struct {
	UserID    string
	Email     string
	Role      string
	UserAgent string
	IPAddress string
}

// IssueResult carries either the issued token pair or failure metadata.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error

	UserID   string
	FamilyID string

	AccessToken  string
	RefreshToken string
}

// IssueStore persists a fresh login record and its new family.
type IssueStore interface {
	Save(ctx context.Context, rec *session.Record, fam *session.Family) error
}

// IssueDeps captures issuance flow dependencies.
type IssueDeps struct {
	Now                func() time.Time
	RefreshTTL         func() time.Duration
	NewFamilyID        func() string
	NewRefreshSecret   func() (internal.RefreshSecret, error)
	HashRefreshSecret  func(internal.RefreshSecret) [32]byte
	EncodeRefreshToken func(internal.RefreshSecret) string
	IssueAccessToken   func(userID, email, role string) (string, error)
	Store              IssueStore
}

// RunIssue mints the initial token pair for one login event, starting a new
// family with rotation count zero.
func RunIssue(ctx context.Context, in IssueInput, deps IssueDeps) IssueResult {
	if in.UserID == "" || in.Email == "" || in.Role == "" {
		return IssueResult{
			Failure: IssueFailureIdentity,
			Err:     errors.New("identity tuple incomplete"),
			UserID:  in.UserID,
		}
	}

	secret, err := deps.NewRefreshSecret()
	if err != nil {
		return IssueResult{Failure: IssueFailureSecret, Err: err, UserID: in.UserID}
	}

	now := deps.Now()
	familyID := deps.NewFamilyID()

	rec := &session.Record{
		TokenHash:     deps.HashRefreshSecret(secret),
		UserID:        in.UserID,
		Email:         in.Email,
		Role:          in.Role,
		FamilyID:      familyID,
		RotationCount: 0,
		UserAgent:     in.UserAgent,
		IPAddress:     in.IPAddress,
		CreatedAt:     now.Unix(),
		ExpiresAt:     now.Add(deps.RefreshTTL()).Unix(),
	}
	fam := &session.Family{
		FamilyID:  familyID,
		UserID:    in.UserID,
		CreatedAt: now.Unix(),
		LastUsed:  now.Unix(),
	}

	if err := deps.Store.Save(ctx, rec, fam); err != nil {
		return IssueResult{Failure: IssueFailurePersist, Err: err, UserID: in.UserID, FamilyID: familyID}
	}

	access, err := deps.IssueAccessToken(in.UserID, in.Email, in.Role)
	if err != nil {
		return IssueResult{Failure: IssueFailureIssueAccess, Err: err, UserID: in.UserID, FamilyID: familyID}
	}

	return IssueResult{
		Failure:      IssueFailureNone,
		UserID:       in.UserID,
		FamilyID:     familyID,
		AccessToken:  access,
		RefreshToken: deps.EncodeRefreshToken(secret),
	}
}
