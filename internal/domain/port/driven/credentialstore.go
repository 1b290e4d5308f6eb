package driven

import (
	"context"
	"errors"
	"time"

	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
)

// ErrCredentialNotFound is returned when no credential with the given id is
// owned by the requesting owner. A credential existing under a different
// owner is indistinguishable from one that does not exist.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// SESSIONWATCH_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set SESSIONWATCH_SECRET_KEY")

// CredentialPatch is a partial update applied by reconciliation or the edit
// API. Nil pointer fields are left untouched; ClearExpiresAt removes the
// stored expiry explicitly, since a nil ExpiresAt alone means "don't touch".
type CredentialPatch struct {
	Label          *string
	Secret         *string
	Notes          *string
	Tier           *model.Tier
	Status         *model.Status
	LastVerifiedAt *time.Time
	ExpiresAt      *time.Time
	ClearExpiresAt bool
}

// Empty reports whether the patch would change nothing.
func (p CredentialPatch) Empty() bool {
	return p.Label == nil && p.Secret == nil && p.Notes == nil &&
		p.Tier == nil && p.Status == nil && p.LastVerifiedAt == nil &&
		p.ExpiresAt == nil && !p.ClearExpiresAt
}

// CredentialStore defines the driven port for encrypted credential
// persistence. The adapter layer is responsible for encrypting Secret at
// rest; this interface operates on plaintext values at the domain boundary.
// All operations are owner-scoped and return ErrCredentialNotFound when the
// (ownerID, id) pair does not match a stored row.
type CredentialStore interface {
	// Create inserts a new credential and returns it with ID and lifecycle
	// timestamps populated. Returns ErrEncryptionKeyNotSet if the adapter
	// was constructed without an encryption key.
	Create(ctx context.Context, cred model.Credential) (model.Credential, error)

	// GetByID retrieves one credential with its decrypted secret.
	GetByID(ctx context.Context, ownerID, id int64) (model.Credential, error)

	// ListByOwner returns all credentials for one owner, newest first,
	// matching the order the panel presents them in.
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Credential, error)

	// ListOwners returns the distinct owner ids that have at least one
	// stored credential. Used by the re-verification scheduler.
	ListOwners(ctx context.Context) ([]int64, error)

	// Update applies a partial update and returns the resulting row.
	// Fields not present in the patch are never overwritten.
	Update(ctx context.Context, ownerID, id int64, patch CredentialPatch) (model.Credential, error)

	// Delete removes one credential.
	Delete(ctx context.Context, ownerID, id int64) error
}
