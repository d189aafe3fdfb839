package goToken

import "time"

// Report is a point-in-time posture snapshot of a built engine: which
// backend it runs on, the lifetime windows in force, and which background
// machinery is active. Intended for startup logging and health endpoints.
type Report struct {
	SigningAlgorithm  string
	StoreBackend      string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	BlacklistTTL      time.Duration
	ClockSkew         time.Duration
	SweepEnabled      bool
	SweepInterval     time.Duration
	AuditEnabled      bool
	AuditDropped      uint64
	MetricsEnabled    bool
	LatencyHistograms bool
}

func (e *Engine) Report() Report {
	if e == nil {
		return Report{}
	}

	return Report{
		SigningAlgorithm:  e.jwtManager.Algorithm(),
		StoreBackend:      e.storeKind,
		AccessTTL:         e.config.JWT.AccessTTL,
		RefreshTTL:        e.config.Refresh.TTL,
		BlacklistTTL:      e.config.blacklistTTL(),
		ClockSkew:         e.config.Refresh.ClockSkew,
		SweepEnabled:      e.config.Sweep.Enabled,
		SweepInterval:     e.config.Sweep.Interval,
		AuditEnabled:      e.config.Audit.Enabled,
		AuditDropped:      e.AuditDropped(),
		MetricsEnabled:    e.config.Metrics.Enabled,
		LatencyHistograms: e.config.Metrics.EnableLatencyHistograms,
	}
}
