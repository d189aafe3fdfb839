package goToken

import (
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goToken/internal/audit"
)

// TokenPair is returned by [Engine.Issue] and [Engine.Rotate]. ExpiresIn and
// RefreshExpiresIn are seconds, ready for an OAuth-style JSON response.
type TokenPair struct {
	AccessToken  string
	RefreshToken string

	ExpiresIn        int64
	RefreshExpiresIn int64
}

// Claims is returned by [Engine.VerifyAccess]. It contains the authenticated
// identity tuple decoded from a valid access token.
type Claims struct {
	UserID string
	Email  string
	Role   string

	ExpiresAt time.Time
}

// Metadata carries optional client attributes recorded on the refresh
// session for the session-management UI.
type Metadata struct {
	UserAgent string
	IPAddress string
}

// SessionInfo is one entry of [Engine.ListSessions]: an active refresh
// session projected for display. The token hash is always redacted; FamilyID
// is included so a UI can revoke the session via [Engine.InvalidateFamily].
type SessionInfo struct {
	FamilyID string

	CreatedAt time.Time
	ExpiresAt time.Time

	UserAgent     string
	IPAddress     string
	RotationCount uint32
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
