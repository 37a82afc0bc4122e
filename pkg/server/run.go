package server

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukeofxor/gotalker/pkg/model"
	"github.com/dukeofxor/gotalker/pkg/wire"
)

// Run starts the server and blocks until shutdown signal.
func (s *Server) Run() error {
	if s.bans == nil {
		return fmt.Errorf("server: missing ban store dependency")
	}
	defer func() { _ = s.bans.Close() }()

	// Load persisted bans into the registry
	bans, err := s.bans.ListBans()
	if err != nil {
		return fmt.Errorf("server: load bans: %w", err)
	}
	for _, b := range bans {
		s.registry.Ban(b.Address)
	}
	if len(bans) > 0 {
		slog.Info("loaded persisted bans", "count", len(bans))
	}

	// Seed additional bans from YAML config if provided
	if s.cfg.BansFile != "" {
		if err := s.loadBansFile(s.cfg.BansFile); err != nil {
			slog.Error("failed to load bans config", "err", err)
		}
	}

	// Start listeners
	if err := s.StartListener(); err != nil {
		return err
	}
	if err := s.StartWS(); err != nil {
		return err
	}

	slog.Info("GoTalker server running",
		"addr", s.cfg.Addr,
		"ws", s.cfg.WSAddr,
	)

	// Start the metrics/admin HTTP endpoint
	s.StartAdminHTTP()

	// Start periodic metrics logging (every 60s)
	s.metrics.StartPeriodicLog(60*time.Second, s.ctx.Done())

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	s.Shutdown()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// StartListener starts the TCP chat listener.
func (s *Server) StartListener() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.listener = ln
	slog.Info("chat listener running", "addr", s.cfg.Addr)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					slog.Error("accept error", "err", err)
					continue
				}
			}
			go s.handleConn(wire.NewStreamConn(conn))
		}
	}()

	return nil
}

// BanAddress records a ban, marks it in the registry, and disconnects any
// live sessions from that address.
func (s *Server) BanAddress(addr, reason string) error {
	if err := s.bans.AddBan(model.Ban{Address: addr, Reason: reason, CreatedAt: time.Now()}); err != nil {
		return err
	}

	kicked := s.registry.Ban(addr)
	for _, sess := range kicked {
		sess.Kick()
	}

	s.metrics.BansIssued.Add(1)
	slog.Info("address banned", "addr", addr, "reason", reason, "kicked", len(kicked))
	return nil
}
