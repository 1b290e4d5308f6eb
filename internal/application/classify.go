// Package application contains use-case orchestration services.
package application

import (
	"time"

	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
)

// Entitlement group markers observed on the remote session payload. The
// remote does not document these; both the long and short forms have been
// seen in the wild, so both are accepted. Revising this heuristic must not
// touch orchestration -- everything downstream sees only model.Tier.
var (
	proMarkers  = []string{"chatgpt_pro", "pro"}
	plusMarkers = []string{"chatgpt_plus", "plus"}
)

// ClassifyTier maps a session descriptor's entitlement groups to a
// subscription tier. Pro takes precedence over plus; anything else,
// including a missing or malformed group list, is free. Total and pure.
func ClassifyTier(desc *model.SessionDescriptor) model.Tier {
	if desc == nil {
		return model.TierFree
	}
	if hasAnyGroup(desc.Groups, proMarkers) {
		return model.TierPro
	}
	if hasAnyGroup(desc.Groups, plusMarkers) {
		return model.TierPlus
	}
	return model.TierFree
}

// ResolveStatus combines the descriptor's ban marker, expiry, and session
// recognition into a lifecycle status. The clock is injected so callers can
// verify expiry boundaries deterministically.
func ResolveStatus(desc *model.SessionDescriptor, now time.Time) model.Status {
	if desc == nil {
		return model.StatusInactive
	}
	if desc.Banned {
		// A ban wins over everything, including an expiry in the past.
		return model.StatusBanned
	}
	if desc.ExpiresAt != nil && !desc.ExpiresAt.After(now) {
		return model.StatusExpired
	}
	if desc.Recognized() {
		return model.StatusActive
	}
	return model.StatusInactive
}

func hasAnyGroup(groups, markers []string) bool {
	for _, g := range groups {
		for _, m := range markers {
			if g == m {
				return true
			}
		}
	}
	return false
}
