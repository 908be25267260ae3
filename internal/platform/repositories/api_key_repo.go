package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"caelex/internal/platform/models"
)

type APIKeyRepository struct {
	db *sql.DB
}

func NewAPIKeyRepository(db *sql.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(key *models.APIKey) error {
	if key.ID == "" {
		key.ID = "key_" + uuid.New().String()
	}
	key.CreatedAt = time.Now().Unix()
	key.Active = true

	scopesJSON, err := json.Marshal(key.Scopes)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_keys (id, organization_id, created_by, name, key_hash, key_prefix, scopes, rate_limit, active, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`
	_, err = r.db.Exec(query, key.ID, key.OrganizationID, key.CreatedBy, key.Name, key.KeyHash, key.KeyPrefix, string(scopesJSON), key.RateLimit, key.CreatedAt, key.ExpiresAt)
	return err
}

func (r *APIKeyRepository) GetByHash(hash string) (*models.APIKey, error) {
	query := `
		SELECT id, organization_id, created_by, name, key_prefix, scopes, rate_limit, active, last_used_at, created_at, expires_at, revoked_at
		FROM api_keys WHERE key_hash = ?
	`
	row := r.db.QueryRow(query, hash)

	k, err := scanKey(row)
	if err != nil {
		return nil, err
	}
	k.KeyHash = hash
	return k, nil
}

func (r *APIKeyRepository) GetByID(id string) (*models.APIKey, error) {
	query := `
		SELECT id, organization_id, created_by, name, key_prefix, scopes, rate_limit, active, last_used_at, created_at, expires_at, revoked_at
		FROM api_keys WHERE id = ?
	`
	return scanKey(r.db.QueryRow(query, id))
}

func (r *APIKeyRepository) ListByOrg(orgID string) ([]*models.APIKey, error) {
	query := `
		SELECT id, organization_id, created_by, name, key_prefix, scopes, rate_limit, active, last_used_at, created_at, expires_at, revoked_at
		FROM api_keys WHERE organization_id = ? ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke soft-deletes a key. Revoking an already-revoked key is a
// no-op so the operation stays idempotent.
func (r *APIKeyRepository) Revoke(id, revokedBy, reason string) error {
	_, err := r.db.Exec(`
		UPDATE api_keys SET active = 0, revoked_at = ?, revoked_by = ?, revoked_reason = ?
		WHERE id = ? AND active = 1
	`, time.Now().Unix(), revokedBy, reason, id)
	return err
}

func (r *APIKeyRepository) UpdateLastUsed(id string) error {
	_, err := r.db.Exec(`UPDATE api_keys SET last_used_at = ? WHERE id = ?`, time.Now().Unix(), id)
	return err
}

// InsertRequest appends one row to the rate-limit ledger.
func (r *APIKeyRepository) InsertRequest(keyID string) error {
	_, err := r.db.Exec(`
		INSERT INTO api_requests (id, api_key_id, created_at) VALUES (?, ?, ?)
	`, "req_"+uuid.New().String(), keyID, time.Now().Unix())
	return err
}

// CountRequestsSince counts ledger rows for a key with created_at at
// or after the given unix timestamp.
func (r *APIKeyRepository) CountRequestsSince(keyID string, since int64) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM api_requests WHERE api_key_id = ? AND created_at >= ?
	`, keyID, since).Scan(&count)
	return count, err
}

// PruneRequests drops ledger rows older than the given unix timestamp
// and returns how many were removed.
func (r *APIKeyRepository) PruneRequests(before int64) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM api_requests WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type keyScanner interface {
	Scan(dest ...interface{}) error
}

func scanKey(row keyScanner) (*models.APIKey, error) {
	var k models.APIKey
	var scopesStr string
	var lastUsedAt, expiresAt, revokedAt sql.NullInt64

	err := row.Scan(&k.ID, &k.OrganizationID, &k.CreatedBy, &k.Name, &k.KeyPrefix, &scopesStr, &k.RateLimit, &k.Active, &lastUsedAt, &k.CreatedAt, &expiresAt, &revokedAt)
	if err != nil {
		return nil, err
	}

	if lastUsedAt.Valid {
		k.LastUsedAt = &lastUsedAt.Int64
	}
	if expiresAt.Valid {
		k.ExpiresAt = &expiresAt.Int64
	}
	if revokedAt.Valid {
		k.RevokedAt = &revokedAt.Int64
	}
	json.Unmarshal([]byte(scopesStr), &k.Scopes)

	return &k, nil
}
