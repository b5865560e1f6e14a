// Package domain contains core domain types for the Axion assistant.
package domain

import (
	"time"
)

// Mode is the operating mode of a session. It controls which scopes a
// session is granted and how aggressively actions require approval.
type Mode string

const (
	// ModeParanoid requires approval for every action, including low risk.
	ModeParanoid Mode = "paranoid"
	// ModeNormal requires approval for medium and high risk actions.
	ModeNormal Mode = "normal"
	// ModeHandsFree requires approval for high risk actions only.
	ModeHandsFree Mode = "hands_free"
)

// Valid reports whether m is a recognized operating mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeParanoid, ModeNormal, ModeHandsFree:
		return true
	}
	return false
}

// Session represents a user session. Sessions are immutable after creation
// except for the sandbox root, which can be changed through the settings
// endpoints and takes effect for sessions created afterwards.
type Session struct {
	ID               string    `json:"id"`
	Mode             Mode      `json:"mode"`
	AllowedScopes    []string  `json:"allowed_scopes"`
	ExpiresInMinutes int       `json:"expires_in_minutes"`
	CreatedAt        time.Time `json:"created_at"`
	RootPath         string    `json:"root_path"`
}

// ExpiresAt returns the instant the session expires.
func (s *Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(time.Duration(s.ExpiresInMinutes) * time.Minute)
}

// Expired reports whether the session has expired as of now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt())
}
