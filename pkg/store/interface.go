package store

import "github.com/dukeofxor/gotalker/pkg/model"

// BanStore persists the banned address list across restarts.
//
// Implementations include the default SQLite store and an in-memory store
// used for tests and databaseless operation.
type BanStore interface {
	// AddBan records a ban. Adding an already banned address is a no-op.
	AddBan(ban model.Ban) error

	// ListBans returns all recorded bans.
	ListBans() ([]model.Ban, error)

	Close() error
}
