package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// StartAdminHTTP starts a lightweight HTTP server that exposes /metrics in
// Prometheus text exposition format plus the ban list under /bans. It runs
// in the background and shuts down when the server context is cancelled.
//
// Bind address is :9402 by default — configurable via Config.AdminAddr.
func (s *Server) StartAdminHTTP() {
	addr := s.cfg.AdminAddr
	if addr == "" {
		return // admin endpoint disabled
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/bans", s.handleBans)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("admin HTTP listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("admin HTTP error", "err", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		_ = srv.Close()
	}()
}

// handleBans lists the recorded bans (GET) or bans an address (POST ?addr=).
func (s *Server) handleBans(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		bans, err := s.bans.ListBans()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(bans)

	case http.MethodPost:
		addr := r.FormValue("addr")
		if addr == "" {
			http.Error(w, "missing addr parameter", http.StatusBadRequest)
			return
		}
		if err := s.BanAddress(addr, r.FormValue("reason")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Helper for gauge/counter lines.
	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}
	writeFloat := func(name, help, mtype string, value float64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %f\n", name, value)
	}

	writeFloat("gotalker_uptime_seconds", "Server uptime in seconds.", "gauge", uptime)

	write("gotalker_connections_active", "Current active client connections.", "gauge",
		m.ActiveConnections.Load())
	write("gotalker_connections_total", "Lifetime client connections accepted.", "counter",
		m.TotalConnections.Load())
	write("gotalker_disconnects_total", "Total client disconnects.", "counter",
		m.TotalDisconnects.Load())

	write("gotalker_logins_success_total", "Successful login attempts.", "counter",
		m.SuccessfulLogins.Load())
	write("gotalker_logins_failed_total", "Rejected login attempts.", "counter",
		m.FailedLogins.Load())

	write("gotalker_broadcasts_total", "Text messages broadcast to all clients.", "counter",
		m.MessagesBroadcast.Load())
	write("gotalker_whispers_sent_total", "Whispers delivered to their target.", "counter",
		m.WhispersSent.Load())
	write("gotalker_whispers_dropped_total", "Whispers to absent targets.", "counter",
		m.WhispersDropped.Load())
	write("gotalker_whoisin_total", "Who-is-in queries answered.", "counter",
		m.WhoIsInServed.Load())

	write("gotalker_bans_total", "Addresses banned.", "counter",
		m.BansIssued.Load())
}
