package goToken

import (
	"context"
	"errors"
	"strconv"
	"time"
)

const (
	auditEventIssueSuccess      = "issue_success"
	auditEventIssueFailure      = "issue_failure"
	auditEventRotateSuccess     = "rotate_success"
	auditEventRotateInvalid     = "rotate_invalid"
	auditEventRotateExpired     = "rotate_expired"
	auditEventReuseDetected     = "refresh_reuse_detected"
	auditEventFamilyCompromised = "family_compromised"
	auditEventVerifyFailure     = "verify_failure"
	auditEventRevokeSession     = "revoke_session"
	auditEventRevokeAllUser     = "revoke_all_user"
	auditEventFamilyInvalidated = "family_invalidated"
	auditEventSweepCompleted    = "sweep_completed"
)

// AuditErrorCode defines a public type used by goToken APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidToken   AuditErrorCode = "invalid_token"
	auditErrTokenExpired   AuditErrorCode = "token_expired"
	auditErrReuseDetected  AuditErrorCode = "reuse_detected"
	auditErrFamilyComp     AuditErrorCode = "family_compromised"
	auditErrIdentity       AuditErrorCode = "identity_incomplete"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrInternal       AuditErrorCode = "internal_error"
	auditErrRecordCorrupt  AuditErrorCode = "record_corrupt"
	auditErrTokenNotFound  AuditErrorCode = "token_not_found"
	auditErrWrongTokenType AuditErrorCode = "wrong_token_type"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	familyID string,
	meta Metadata,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		FamilyID:  familyID,
		IP:        meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrIdentityIncomplete):
		return auditErrIdentity
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrRefreshInvalid):
		return auditErrInvalidToken
	default:
		return auditErrInternal
	}
}

// sweepObserver lets the sweeper report through the engine's audit and
// metrics pipeline without importing it.
func (e *Engine) observeSweep(ctx context.Context, removed int, d time.Duration, err error) {
	if err != nil {
		e.emitAudit(ctx, auditEventSweepCompleted, false, "", "", Metadata{}, ErrStoreUnavailable, func() map[string]string {
			return map[string]string{
				"duration": d.String(),
			}
		})
		return
	}

	e.metrics.Add(MetricSweepPruned, uint64(removed))
	e.emitAudit(ctx, auditEventSweepCompleted, true, "", "", Metadata{}, nil, func() map[string]string {
		return map[string]string{
			"removed":  strconv.Itoa(removed),
			"duration": d.String(),
		}
	})
}
