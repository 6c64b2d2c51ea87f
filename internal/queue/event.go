// Package queue defines message payloads exchanged over the message broker
// and the audit consumer that records them.
package queue

import "time"

// AuthEventsQueue is the durable queue auth events are published to.
const AuthEventsQueue = "auth.events"

const (
	EventLogin  = "login"
	EventLogout = "logout"
)

// AuthEvent is published after a successful login or logout.  It carries
// enough to audit the session without querying the users table.
type AuthEvent struct {
	Type     string `json:"type"`
	UserID   uint64 `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	RemoteIP string `json:"remote_ip,omitempty"`
	At       string `json:"at"` // RFC 3339, UTC
}

// NewAuthEvent stamps an event with the current UTC time.
func NewAuthEvent(typ string, userID uint64, email, role, remoteIP string) AuthEvent {
	return AuthEvent{
		Type:     typ,
		UserID:   userID,
		Email:    email,
		Role:     role,
		RemoteIP: remoteIP,
		At:       time.Now().UTC().Format(time.RFC3339),
	}
}
