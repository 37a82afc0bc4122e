package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukeofxor/gotalker/pkg/logging"
	"github.com/dukeofxor/gotalker/pkg/server"
	"github.com/dukeofxor/gotalker/pkg/store"
)

func main() {
	cfg := server.DefaultConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP chat bind address")
	flag.StringVar(&cfg.WSAddr, "ws", cfg.WSAddr, "HTTP bind address for the WebSocket gateway (empty to disable)")
	flag.StringVar(&cfg.AdminAddr, "admin", cfg.AdminAddr, "HTTP bind address for /metrics and /bans (empty to disable)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite ban database file path (empty for in-memory)")
	flag.StringVar(&cfg.BansFile, "bans-file", "", "YAML file seeding the ban list on startup")
	flag.BoolVar(&cfg.ExportBans, "export-bans", false, "Export the ban list as YAML and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	st, err := openBanStore(cfg.DBPath)
	if err != nil {
		slog.Error("open ban database", "err", err)
		os.Exit(1)
	}

	// Handle export command (run and exit)
	if cfg.ExportBans {
		defer func() { _ = st.Close() }()
		data, err := server.ExportBansYAML(st)
		if err != nil {
			slog.Error("export bans", "err", err)
			os.Exit(1)
		}
		fmt.Print(string(data))
		return
	}

	srv := server.New(cfg, server.Dependencies{Bans: st})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func openBanStore(dbPath string) (store.BanStore, error) {
	if dbPath == "" {
		return store.NewMemory(), nil
	}
	return store.New(dbPath)
}
