package server

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime connections accepted
	ActiveConnections atomic.Int64 // current active connections
	SuccessfulLogins  atomic.Int64 // successful login attempts
	FailedLogins      atomic.Int64 // rejected login attempts (banned or name in use)
	TotalDisconnects  atomic.Int64 // total client disconnects (clean + unclean)

	// Chat counters
	MessagesBroadcast atomic.Int64 // text messages fanned out to everyone
	WhispersSent      atomic.Int64 // whispers delivered to their target
	WhispersDropped   atomic.Int64 // whispers to absent targets (silently dropped)
	WhoIsInServed     atomic.Int64 // who-is-in queries answered

	// Admin counters
	BansIssued atomic.Int64 // addresses banned during this run
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	SuccessfulLogins  int64 `json:"successful_logins"`
	FailedLogins      int64 `json:"failed_logins"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	MessagesBroadcast int64 `json:"messages_broadcast"`
	WhispersSent      int64 `json:"whispers_sent"`
	WhispersDropped   int64 `json:"whispers_dropped"`
	WhoIsInServed     int64 `json:"whoisin_served"`

	BansIssued int64 `json:"bans_issued"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		SuccessfulLogins:  m.SuccessfulLogins.Load(),
		FailedLogins:      m.FailedLogins.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		MessagesBroadcast: m.MessagesBroadcast.Load(),
		WhispersSent:      m.WhispersSent.Load(),
		WhispersDropped:   m.WhispersDropped.Load(),
		WhoIsInServed:     m.WhoIsInServed.Load(),
		BansIssued:        m.BansIssued.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"logins_ok", s.SuccessfulLogins,
		"logins_failed", s.FailedLogins,
		"broadcasts", s.MessagesBroadcast,
		"whispers", s.WhispersSent,
	)
}

// StartPeriodicLog starts a goroutine that logs metrics every interval.
// It stops when the done channel is closed.
func (m *Metrics) StartPeriodicLog(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.LogSummary()
			}
		}
	}()
}
