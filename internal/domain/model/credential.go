package model

import "time"

// Credential is one stored external account: the opaque session secret plus
// the last-known subscription tier and lifecycle status. Every credential
// belongs to exactly one owner; all persistence operations are scoped by
// (OwnerID, ID).
type Credential struct {
	ID      int64
	OwnerID int64

	// Label is a human-readable identifier for the external account,
	// typically the account e-mail. Free text, not validated.
	Label string

	// Secret is the plaintext session token at the domain boundary. The
	// persistence adapter encrypts it at rest; it must never be logged.
	Secret string

	Tier   Tier
	Status Status
	Notes  string

	// LastVerifiedAt is set only by reconciliation, never by user input.
	LastVerifiedAt *time.Time

	// ExpiresAt is set only when the remote response carried an expiry and
	// the tier is not free. A paid tier with a nil ExpiresAt means the
	// expiry has not been observed yet, not that it never expires.
	ExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
