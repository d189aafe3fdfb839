package goToken

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/internal"
	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/session"
)

// Engine is the facade the HTTP/auth layer talks to: issuance at login,
// rotation on refresh, verification per request, revocation on logout, and
// session enumeration for the session-management UI.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	jwtManager *jwt.Manager
	store      session.Store
	storeKind  string
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
	sweeper    *Sweeper
	now        func() time.Time
}

// Close stops the background sweep and drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time deep copy of all metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) tokenPair(access, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(e.config.JWT.AccessTTL / time.Second),
		RefreshExpiresIn: int64(e.config.Refresh.TTL / time.Second),
	}
}

// Issue mints a token pair for an identity tuple delivered by a successful
// authentication step. Every call starts a new, independent token family.
func (e *Engine) Issue(ctx context.Context, userID, email, role string, meta Metadata) (*TokenPair, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	result := flows.RunIssue(ctx, flows.IssueInput{
		UserID:    userID,
		Email:     email,
		Role:      role,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}, flows.IssueDeps{
		Now:                e.now,
		RefreshTTL:         func() time.Duration { return e.config.Refresh.TTL },
		NewFamilyID:        internal.NewFamilyID,
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		IssueAccessToken:   e.jwtManager.CreateAccess,
		Store:              e.store,
	})

	switch result.Failure {
	case flows.IssueFailureNone:
		e.metricInc(MetricIssueSuccess)
		e.emitAudit(ctx, auditEventIssueSuccess, true, result.UserID, result.FamilyID, meta, nil, nil)
		return e.tokenPair(result.AccessToken, result.RefreshToken), nil
	case flows.IssueFailureIdentity:
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventIssueFailure, false, userID, "", meta, ErrIdentityIncomplete, func() map[string]string {
			return map[string]string{"reason": "identity_incomplete"}
		})
		return nil, ErrIdentityIncomplete
	default:
		e.metricInc(MetricIssueFailure)
		e.emitAudit(ctx, auditEventIssueFailure, false, result.UserID, result.FamilyID, meta, result.Err, func() map[string]string {
			return map[string]string{"reason": issueFailureReason(result.Failure)}
		})
		return nil, result.Err
	}
}

// Rotate atomically consumes the presented refresh token and issues its
// successor, or detects reuse/compromise. Every expected failure — unknown,
// expired, reused, compromised — surfaces as the same [ErrRefreshInvalid];
// the real classification goes to audit and metrics only.
func (e *Engine) Rotate(ctx context.Context, refreshToken string, meta Metadata) (*TokenPair, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	result := flows.RunRotate(ctx, refreshToken, session.RotateMeta{
		UserAgent: meta.UserAgent,
		IPAddress: meta.IPAddress,
	}, flows.RotateDeps{
		DecodeRefreshToken: internal.DecodeRefreshToken,
		NewRefreshSecret:   internal.NewRefreshSecret,
		HashRefreshSecret:  internal.HashRefreshSecret,
		EncodeRefreshToken: internal.EncodeRefreshToken,
		IssueAccessToken:   e.jwtManager.CreateAccess,
		RefreshTTL:         func() time.Duration { return e.config.Refresh.TTL },
		Store:              e.store,
	})

	switch result.Failure {
	case flows.RotateFailureNone:
		e.metricInc(MetricRotateSuccess)
		e.emitAudit(ctx, auditEventRotateSuccess, true, result.UserID, result.FamilyID, meta, nil, nil)
		return e.tokenPair(result.AccessToken, result.RefreshToken), nil

	case flows.RotateFailureReuse:
		// Theft signal: the family has already been cascade-invalidated by
		// the store in the same atomic step that detected the reuse. Both
		// events fire: the reuse that tripped the response and the
		// compromise it caused.
		e.metricInc(MetricReuseDetected)
		e.metricInc(MetricFamilyCompromised)
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventReuseDetected, false, result.UserID, result.FamilyID, meta, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "reuse_detected", "code": string(auditErrReuseDetected)}
		})
		e.emitAudit(ctx, auditEventFamilyCompromised, false, result.UserID, result.FamilyID, meta, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "reuse_detected", "code": string(auditErrFamilyComp)}
		})
		return nil, ErrRefreshInvalid

	case flows.RotateFailureCompromised:
		e.metricInc(MetricFamilyCompromised)
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventFamilyCompromised, false, result.UserID, result.FamilyID, meta, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "family_compromised", "code": string(auditErrFamilyComp)}
		})
		return nil, ErrRefreshInvalid

	case flows.RotateFailureExpired:
		// Soft, non-security failure: no cascade, no alert severity.
		e.metricInc(MetricRotateExpired)
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventRotateExpired, false, result.UserID, result.FamilyID, meta, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": "expired", "code": string(auditErrTokenExpired)}
		})
		return nil, ErrRefreshInvalid

	case flows.RotateFailureDecode, flows.RotateFailureNotFound, flows.RotateFailureCorrupt:
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventRotateInvalid, false, result.UserID, result.FamilyID, meta, ErrRefreshInvalid, func() map[string]string {
			return map[string]string{"reason": rotateFailureReason(result.Failure)}
		})
		return nil, ErrRefreshInvalid

	default:
		// Backend breakage is not an expected failure; surface it.
		e.metricInc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventRotateInvalid, false, result.UserID, result.FamilyID, meta, result.Err, func() map[string]string {
			return map[string]string{"reason": rotateFailureReason(result.Failure)}
		})
		return nil, result.Err
	}
}

// VerifyAccess checks signature, expiry, and token type. Pure signature and
// clock work; no store lookups. All failures surface as [ErrTokenInvalid].
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*Claims, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerifyFailure, false, "", "", Metadata{}, ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": verifyFailureReason(err)}
		})
		return nil, ErrTokenInvalid
	}

	e.metricInc(MetricVerifySuccess)

	out := &Claims{
		UserID: claims.UID,
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

// RevokeOne consumes and blacklists a single refresh token; no family
// impact. Reports whether a live record was actually consumed.
func (e *Engine) RevokeOne(ctx context.Context, refreshToken string) (bool, error) {
	if e == nil || e.store == nil {
		return false, ErrEngineNotReady
	}

	secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return false, nil
	}

	revoked, err := e.store.Revoke(ctx, internal.HashRefreshSecret(secret))
	if err != nil {
		return false, err
	}
	if revoked {
		e.metricInc(MetricRevokeSession)
		e.emitAudit(ctx, auditEventRevokeSession, true, "", "", Metadata{}, nil, nil)
	}
	return revoked, nil
}

// RevokeAllForUser blacklists every outstanding refresh token for the user
// and drops their families (logout-everywhere).
func (e *Engine) RevokeAllForUser(ctx context.Context, userID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.RevokeAllForUser(ctx, userID); err != nil {
		e.emitAudit(ctx, auditEventRevokeAllUser, false, userID, "", Metadata{}, err, nil)
		return err
	}

	e.metricInc(MetricRevokeAllUser)
	e.emitAudit(ctx, auditEventRevokeAllUser, true, userID, "", Metadata{}, nil, nil)
	return nil
}

// InvalidateFamily runs the compromise cascade for one family: every active
// record sharing it is blacklisted and deleted. Exposed for explicit
// revocation from a session-management UI.
func (e *Engine) InvalidateFamily(ctx context.Context, familyID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	if err := e.store.InvalidateFamily(ctx, familyID); err != nil {
		e.emitAudit(ctx, auditEventFamilyInvalidated, false, "", familyID, Metadata{}, err, nil)
		return err
	}

	e.metricInc(MetricFamilyInvalidated)
	e.emitAudit(ctx, auditEventFamilyInvalidated, true, "", familyID, Metadata{}, nil, nil)
	return nil
}

// ListSessions returns the user's active sessions for display. Token hashes
// are redacted; only creation, expiry, client metadata, rotation count, and
// the family handle survive the projection.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	records, err := e.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]SessionInfo, 0, len(records))
	for _, rec := range records {
		sessions = append(sessions, SessionInfo{
			FamilyID:      rec.FamilyID,
			CreatedAt:     time.Unix(rec.CreatedAt, 0),
			ExpiresAt:     time.Unix(rec.ExpiresAt, 0),
			UserAgent:     rec.UserAgent,
			IPAddress:     rec.IPAddress,
			RotationCount: rec.RotationCount,
		})
	}
	return sessions, nil
}

// SweepNow runs one expiry sweep synchronously, independent of the
// background schedule. Returns the number of entries removed.
func (e *Engine) SweepNow(ctx context.Context) (int, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	// Wall clock, not e.now: the audited duration measures real elapsed
	// time even when the engine runs on a virtual clock.
	start := time.Now()
	removed, err := e.store.PruneExpired(ctx)
	e.observeSweep(ctx, removed, time.Since(start), err)
	return removed, err
}

// Ping reports store availability and round-trip latency.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	return e.store.Ping(ctx)
}

func issueFailureReason(kind flows.IssueFailureKind) string {
	switch kind {
	case flows.IssueFailureIdentity:
		return "identity_incomplete"
	case flows.IssueFailureSecret:
		return "secret_generation"
	case flows.IssueFailurePersist:
		return "persist_failed"
	case flows.IssueFailureIssueAccess:
		return "issue_access_failed"
	default:
		return "unknown"
	}
}

func rotateFailureReason(kind flows.RotateFailureKind) string {
	switch kind {
	case flows.RotateFailureDecode:
		return "decode_failed"
	case flows.RotateFailureNextSecret:
		return "next_secret_generation"
	case flows.RotateFailureNotFound:
		return "token_not_found"
	case flows.RotateFailureExpired:
		return "expired"
	case flows.RotateFailureReuse:
		return "reuse_detected"
	case flows.RotateFailureCompromised:
		return "family_compromised"
	case flows.RotateFailureCorrupt:
		return "record_corrupt"
	case flows.RotateFailureStore:
		return "store_failed"
	case flows.RotateFailureIssueAccess:
		return "issue_access_failed"
	default:
		return "unknown"
	}
}

func verifyFailureReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, jwt.ErrWrongTokenType) {
		return string(auditErrWrongTokenType)
	}
	return "parse_failed"
}
