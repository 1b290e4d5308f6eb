package model

import "time"

// VerificationOutcome is the result of verifying a single credential against
// the remote identity endpoint. It is returned to callers and mirrored into
// the persisted record by reconciliation; it is never stored itself.
type VerificationOutcome struct {
	// Valid is true when the remote confirmed a live, unexpired session.
	Valid bool

	// Tier is the classified subscription level, TierUnknown when the probe
	// failed before classification could run.
	Tier Tier

	// Status is the resolved lifecycle status. On transport failures it
	// echoes the credential's pre-existing status, which is left untouched.
	Status Status

	// ErrorKind and ErrorMessage are set when verification could not produce
	// a clean classification (probe rejection, transport failure, write
	// failure). Both are empty for successful verifications.
	ErrorKind    string
	ErrorMessage string

	// ObservedEmail and ObservedName are recovered from the remote response
	// when available. Creation flows use them to backfill the label.
	ObservedEmail string
	ObservedName  string

	// ExpiresAt is the remote-reported expiry, nil when absent.
	ExpiresAt *time.Time
}

// BatchItem is one credential's entry in a batch verification report.
type BatchItem struct {
	CredentialID int64
	Label        string
	Success      bool
	Tier         Tier
	Status       Status
	ErrorMessage string
}

// BatchReport aggregates per-credential results for one owner's batch
// verification. Items preserve the store's listing order regardless of the
// order verifications completed in.
type BatchReport struct {
	Items    []BatchItem
	Verified int // items whose credential was confirmed valid
	Failed   int // items that errored or were confirmed invalid
}
