package model

import "time"

// SessionDescriptor is the raw result of a session lookup against the remote
// identity endpoint. It carries only the signals the classifier and status
// resolver consume; everything else in the remote response is ignored.
type SessionDescriptor struct {
	Email  string
	Name   string
	Groups []string

	// Banned is the remote's explicit ban/suspension marker.
	Banned bool

	// ExpiresAt is the session expiry reported by the remote, nil when the
	// response carried none.
	ExpiresAt *time.Time
}

// Recognized reports whether the descriptor identifies an authenticated
// account at all. An empty response body parses into an unrecognized
// descriptor.
func (d *SessionDescriptor) Recognized() bool {
	return d != nil && d.Email != ""
}
