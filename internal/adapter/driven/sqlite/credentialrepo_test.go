package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
	"github.com/ericfisherdev/sessionwatch/internal/domain/port/driven"
)

func newTestCredential(ownerID int64) model.Credential {
	return model.Credential{
		OwnerID: ownerID,
		Label:   "a@example.com",
		Secret:  "tok-secret-value",
		Tier:    model.TierFree,
		Status:  model.StatusInactive,
		Notes:   "test account",
	}
}

func TestCredentialRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(1), created.OwnerID)
	assert.Equal(t, "tok-secret-value", created.Secret)
	assert.Equal(t, model.TierFree, created.Tier)
	assert.Equal(t, model.StatusInactive, created.Status)
	assert.Nil(t, created.LastVerifiedAt)
	assert.Nil(t, created.ExpiresAt)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "tok-secret-value", got.Secret)
}

func TestCredentialRepo_SecretEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)

	var raw string
	err = db.Reader.QueryRowContext(ctx, `SELECT secret FROM credentials WHERE id = ?`, created.ID).Scan(&raw)
	require.NoError(t, err)
	assert.NotEqual(t, "tok-secret-value", raw)
	assert.NotContains(t, raw, "tok-secret-value")
}

func TestCredentialRepo_GetWrongOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, 2, created.ID)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)

	_, err := repo.GetByID(context.Background(), 1, 9999)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_ListByOwnerScoping(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestCredential(2))
	require.NoError(t, err)

	creds, err := repo.ListByOwner(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, creds, 2)
	for _, c := range creds {
		assert.Equal(t, int64(1), c.OwnerID)
	}

	empty, err := repo.ListByOwner(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCredentialRepo_ListOwners(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestCredential(2))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)

	owners, err := repo.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, owners)
}

func TestCredentialRepo_UpdatePartial(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)

	tier := model.TierPlus
	status := model.StatusActive
	verifiedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiresAt := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	updated, err := repo.Update(ctx, 1, created.ID, driven.CredentialPatch{
		Tier:           &tier,
		Status:         &status,
		LastVerifiedAt: &verifiedAt,
		ExpiresAt:      &expiresAt,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TierPlus, updated.Tier)
	assert.Equal(t, model.StatusActive, updated.Status)
	require.NotNil(t, updated.LastVerifiedAt)
	assert.True(t, updated.LastVerifiedAt.Equal(verifiedAt))
	require.NotNil(t, updated.ExpiresAt)
	assert.True(t, updated.ExpiresAt.Equal(expiresAt))

	// Fields absent from the patch survive.
	assert.Equal(t, "a@example.com", updated.Label)
	assert.Equal(t, "tok-secret-value", updated.Secret)
	assert.Equal(t, "test account", updated.Notes)
}

func TestCredentialRepo_UpdateStatusOnlyKeepsTier(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	cred := newTestCredential(1)
	cred.Tier = model.TierPro
	cred.Status = model.StatusActive
	created, err := repo.Create(ctx, cred)
	require.NoError(t, err)

	status := model.StatusInactive
	updated, err := repo.Update(ctx, 1, created.ID, driven.CredentialPatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, model.TierPro, updated.Tier)
	assert.Equal(t, model.StatusInactive, updated.Status)
}

func TestCredentialRepo_UpdateClearExpiresAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	expiresAt := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cred := newTestCredential(1)
	cred.ExpiresAt = &expiresAt
	created, err := repo.Create(ctx, cred)
	require.NoError(t, err)
	require.NotNil(t, created.ExpiresAt)

	updated, err := repo.Update(ctx, 1, created.ID, driven.CredentialPatch{ClearExpiresAt: true})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)
}

func TestCredentialRepo_UpdateSecretReencrypts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)

	newSecret := "tok-rotated"
	updated, err := repo.Update(ctx, 1, created.ID, driven.CredentialPatch{Secret: &newSecret})
	require.NoError(t, err)
	assert.Equal(t, "tok-rotated", updated.Secret)

	var raw string
	err = db.Reader.QueryRowContext(ctx, `SELECT secret FROM credentials WHERE id = ?`, created.ID).Scan(&raw)
	require.NoError(t, err)
	assert.NotContains(t, raw, "tok-rotated")
}

func TestCredentialRepo_UpdateWrongOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)

	status := model.StatusActive
	_, err = repo.Update(ctx, 2, created.ID, driven.CredentialPatch{Status: &status})
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)

	// The row is untouched.
	got, err := repo.GetByID(ctx, 1, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInactive, got.Status)
}

func TestCredentialRepo_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, 1, created.ID))

	_, err = repo.GetByID(ctx, 1, created.ID)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)
}

func TestCredentialRepo_DeleteWrongOwner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestCredential(1))
	require.NoError(t, err)

	err = repo.Delete(ctx, 2, created.ID)
	assert.ErrorIs(t, err, driven.ErrCredentialNotFound)

	_, err = repo.GetByID(ctx, 1, created.ID)
	assert.NoError(t, err)
}

func TestCredentialRepo_NoEncryptionKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestCredential(1))
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.GetByID(ctx, 1, 1)
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.ListByOwner(ctx, 1)
	assert.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}
