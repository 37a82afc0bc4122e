package store

import (
	"sync"
	"time"

	"github.com/dukeofxor/gotalker/pkg/model"
)

// Memory is an in-memory BanStore used for tests and databaseless operation.
type Memory struct {
	mu    sync.Mutex
	order []string
	bans  map[string]model.Ban
}

// NewMemory creates an empty in-memory ban store.
func NewMemory() *Memory {
	return &Memory{bans: make(map[string]model.Ban)}
}

func (m *Memory) AddBan(ban model.Ban) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bans[ban.Address]; ok {
		return nil
	}
	if ban.CreatedAt.IsZero() {
		ban.CreatedAt = time.Now()
	}
	m.bans[ban.Address] = ban
	m.order = append(m.order, ban.Address)
	return nil
}

func (m *Memory) ListBans() ([]model.Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]model.Ban, 0, len(m.order))
	for _, addr := range m.order {
		result = append(result, m.bans[addr])
	}
	return result, nil
}

func (m *Memory) Close() error {
	return nil
}

var _ BanStore = (*Memory)(nil)
