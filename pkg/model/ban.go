// Package model defines the core domain types for GoTalker.
package model

import "time"

// Ban represents a banned client address. Bans are append-only for the
// lifetime of the process; there is no unban operation.
type Ban struct {
	Address   string    `json:"address"` // host address without port
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
