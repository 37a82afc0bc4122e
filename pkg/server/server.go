// Package server implements the GoTalker chat server.
package server

import (
	"context"
	"net"

	"github.com/dukeofxor/gotalker/pkg/store"
	"github.com/dukeofxor/gotalker/pkg/wire"
)

// Config holds server configuration.
type Config struct {
	Addr      string // TCP bind address (e.g. ":9400")
	WSAddr    string // HTTP bind address for the WebSocket gateway (empty = disabled)
	AdminAddr string // HTTP bind address for /metrics and /bans (empty = disabled)
	DBPath    string // SQLite ban database path
	BansFile  string // YAML file seeding the ban list on startup

	// CLI-only actions (run and exit)
	ExportBans bool // export the ban list as YAML and exit
}

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Bans and will Close() it on shutdown.
type Dependencies struct {
	Bans    store.BanStore
	Display Display // nil = log events through slog
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:      ":9400",
		WSAddr:    "",
		AdminAddr: ":9402",
		DBPath:    "gotalker.db",
	}
}

// Server is the main GoTalker server.
type Server struct {
	cfg      Config
	registry *Registry
	metrics  *Metrics
	display  Display
	bans     store.BanStore
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new Server instance.
func New(cfg Config, deps Dependencies) *Server {
	display := deps.Display
	if display == nil {
		display = NewLogDisplay()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		metrics:  NewMetrics(),
		display:  display,
		bans:     deps.Bans,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Registry returns the session registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// handleConn runs one client connection to completion, regardless of which
// listener accepted it.
func (s *Server) handleConn(conn wire.Conn) {
	s.metrics.TotalConnections.Add(1)
	s.metrics.ActiveConnections.Add(1)
	defer func() {
		s.metrics.ActiveConnections.Add(-1)
		s.metrics.TotalDisconnects.Add(1)
	}()

	NewSession(conn, s.registry, s.display, s.metrics).Run()
}
