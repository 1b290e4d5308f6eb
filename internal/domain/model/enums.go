package model

// Tier represents the subscription level of an external account.
type Tier string

const (
	TierFree Tier = "free"
	TierPlus Tier = "plus"
	TierPro  Tier = "pro"

	// TierUnknown is used in verification outcomes when the probe could not
	// determine a tier. It is never persisted.
	TierUnknown Tier = ""
)

// Status represents the lifecycle state of an external account.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
	StatusBanned   Status = "banned"
)

// ValidTier reports whether t is a persistable tier value.
func ValidTier(t Tier) bool {
	switch t {
	case TierFree, TierPlus, TierPro:
		return true
	}
	return false
}

// ValidStatus reports whether s is a persistable status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired, StatusBanned:
		return true
	}
	return false
}
