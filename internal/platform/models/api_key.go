package models

type APIKey struct {
	ID             string   `json:"id"`
	OrganizationID string   `json:"organization_id"`
	CreatedBy      string   `json:"created_by"`
	Name           string   `json:"name"`
	KeyHash        string   `json:"-"`
	KeyPrefix      string   `json:"key_prefix"`
	Scopes         []string `json:"scopes"` // JSON array in DB
	RateLimit      int      `json:"rate_limit"`
	Active         bool     `json:"active"`
	LastUsedAt     *int64   `json:"last_used_at,omitempty"`
	ExpiresAt      *int64   `json:"expires_at,omitempty"`
	CreatedAt      int64    `json:"created_at"`
	RevokedAt      *int64   `json:"revoked_at,omitempty"`
	RevokedBy      string   `json:"revoked_by,omitempty"`
	RevokedReason  string   `json:"revoked_reason,omitempty"`
}

// APIRequest is one row of the rate-limit ledger. Created on every
// accepted request, never updated, periodically pruned.
type APIRequest struct {
	ID        string `json:"id"`
	APIKeyID  string `json:"api_key_id"`
	CreatedAt int64  `json:"created_at"`
}
