package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ericfisherdev/sessionwatch/internal/domain/model"
	"github.com/ericfisherdev/sessionwatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Session secrets are encrypted with AES-256-GCM before write and decrypted
// after read; every query is scoped by owner_id so one owner can never
// observe or mutate another owner's rows.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

const credentialColumns = `id, owner_id, label, secret, tier, status, notes, last_verified_at, expires_at, created_at, updated_at`

// Create inserts a new credential and returns the stored row.
func (r *CredentialRepo) Create(ctx context.Context, cred model.Credential) (model.Credential, error) {
	encrypted, err := r.encrypt(cred.Secret)
	if err != nil {
		return model.Credential{}, err
	}

	const query = `INSERT INTO credentials
		(owner_id, label, secret, tier, status, notes, last_verified_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := r.db.Writer.ExecContext(ctx, query,
		cred.OwnerID, cred.Label, encrypted,
		string(cred.Tier), string(cred.Status), cred.Notes,
		formatNullableTime(cred.LastVerifiedAt), formatNullableTime(cred.ExpiresAt),
	)
	if err != nil {
		return model.Credential{}, fmt.Errorf("create credential: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Credential{}, fmt.Errorf("create credential: last insert id: %w", err)
	}

	return r.GetByID(ctx, cred.OwnerID, id)
}

// GetByID retrieves one credential with its decrypted secret.
func (r *CredentialRepo) GetByID(ctx context.Context, ownerID, id int64) (model.Credential, error) {
	if r.key == nil {
		return model.Credential{}, driven.ErrEncryptionKeyNotSet
	}

	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ? AND owner_id = ?`

	cred, err := r.scanCredential(r.db.Reader.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Credential{}, driven.ErrCredentialNotFound
	}
	if err != nil {
		return model.Credential{}, fmt.Errorf("get credential %d: %w", id, err)
	}

	return cred, nil
}

// ListByOwner returns all credentials for one owner, newest first.
func (r *CredentialRepo) ListByOwner(ctx context.Context, ownerID int64) ([]model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE owner_id = ? ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		cred, err := r.scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	if creds == nil {
		creds = []model.Credential{}
	}

	return creds, nil
}

// ListOwners returns the distinct owner ids with at least one credential.
func (r *CredentialRepo) ListOwners(ctx context.Context) ([]int64, error) {
	const query = `SELECT DISTINCT owner_id FROM credentials ORDER BY owner_id`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w", err)
	}

	return owners, nil
}

// Update applies a partial update restricted to the fields present in the
// patch and returns the resulting row. A patch that touches nothing still
// refreshes updated_at.
func (r *CredentialRepo) Update(ctx context.Context, ownerID, id int64, patch driven.CredentialPatch) (model.Credential, error) {
	if r.key == nil {
		return model.Credential{}, driven.ErrEncryptionKeyNotSet
	}

	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	var args []any

	if patch.Label != nil {
		sets = append(sets, "label = ?")
		args = append(args, *patch.Label)
	}
	if patch.Secret != nil {
		encrypted, err := r.encrypt(*patch.Secret)
		if err != nil {
			return model.Credential{}, err
		}
		sets = append(sets, "secret = ?")
		args = append(args, encrypted)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *patch.Notes)
	}
	if patch.Tier != nil {
		sets = append(sets, "tier = ?")
		args = append(args, string(*patch.Tier))
	}
	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.LastVerifiedAt != nil {
		sets = append(sets, "last_verified_at = ?")
		args = append(args, formatTime(*patch.LastVerifiedAt))
	}
	if patch.ClearExpiresAt {
		sets = append(sets, "expires_at = NULL")
	} else if patch.ExpiresAt != nil {
		sets = append(sets, "expires_at = ?")
		args = append(args, formatTime(*patch.ExpiresAt))
	}

	query := "UPDATE credentials SET " + strings.Join(sets, ", ") + " WHERE id = ? AND owner_id = ?"
	args = append(args, id, ownerID)

	res, err := r.db.Writer.ExecContext(ctx, query, args...)
	if err != nil {
		return model.Credential{}, fmt.Errorf("update credential %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.Credential{}, fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return model.Credential{}, driven.ErrCredentialNotFound
	}

	return r.GetByID(ctx, ownerID, id)
}

// Delete removes one credential.
func (r *CredentialRepo) Delete(ctx context.Context, ownerID, id int64) error {
	const query = `DELETE FROM credentials WHERE id = ? AND owner_id = ?`

	res, err := r.db.Writer.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete credential %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return driven.ErrCredentialNotFound
	}

	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (r *CredentialRepo) scanCredential(s scanner) (model.Credential, error) {
	var cred model.Credential
	var encrypted, tier, status, createdAt, updatedAt string
	var lastVerifiedAt, expiresAt sql.NullString

	err := s.Scan(
		&cred.ID, &cred.OwnerID, &cred.Label, &encrypted,
		&tier, &status, &cred.Notes,
		&lastVerifiedAt, &expiresAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return model.Credential{}, err
	}

	cred.Secret, err = r.decrypt(encrypted)
	if err != nil {
		return model.Credential{}, fmt.Errorf("decrypt secret: %w", err)
	}

	cred.Tier = model.Tier(tier)
	cred.Status = model.Status(status)

	if cred.LastVerifiedAt, err = parseNullableTime(lastVerifiedAt); err != nil {
		return model.Credential{}, fmt.Errorf("parse last_verified_at: %w", err)
	}
	if cred.ExpiresAt, err = parseNullableTime(expiresAt); err != nil {
		return model.Credential{}, fmt.Errorf("parse expires_at: %w", err)
	}
	if cred.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Credential{}, fmt.Errorf("parse created_at: %w", err)
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Credential{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return cred, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

// formatTime stores timestamps as UTC RFC3339 text so round-trips through
// SQLite are deterministic.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
