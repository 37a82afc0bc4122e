package server

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dukeofxor/gotalker/pkg/model"
	"github.com/dukeofxor/gotalker/pkg/store"
)

// BanYAML represents one ban in YAML config.
type BanYAML struct {
	Address string `yaml:"address"`
	Reason  string `yaml:"reason,omitempty"`
}

// BansConfig is the top-level YAML config for the ban list.
type BansConfig struct {
	Bans []BanYAML `yaml:"bans"`
}

// loadBansFile reads a bans YAML file and records each entry through the
// store and the registry.
func (s *Server) loadBansFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return fmt.Errorf("read bans config: %w", err)
	}

	var cfg BansConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse bans config: %w", err)
	}

	for _, b := range cfg.Bans {
		if b.Address == "" {
			slog.Error("skipping ban entry with empty address")
			continue
		}
		if err := s.bans.AddBan(model.Ban{Address: b.Address, Reason: b.Reason}); err != nil {
			slog.Error("failed to record ban from config", "addr", b.Address, "err", err)
			continue
		}
		s.registry.Ban(b.Address)
	}

	slog.Info("imported bans from YAML", "count", len(cfg.Bans))
	return nil
}

// ExportBansYAML exports the recorded ban list as YAML.
func ExportBansYAML(st store.BanStore) ([]byte, error) {
	bans, err := st.ListBans()
	if err != nil {
		return nil, err
	}

	cfg := BansConfig{}
	for _, b := range bans {
		cfg.Bans = append(cfg.Bans, BanYAML{Address: b.Address, Reason: b.Reason})
	}
	return yaml.Marshal(&cfg)
}
