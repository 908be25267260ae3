package keys

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"caelex/internal/pkg/errors"
	"caelex/internal/platform/models"
	"caelex/internal/platform/repositories"
)

// Service issues, verifies and revokes API credentials.
type Service struct {
	repo         *repositories.APIKeyRepository
	defaultLimit int
}

func NewService(repo *repositories.APIKeyRepository, defaultLimit int) *Service {
	return &Service{repo: repo, defaultLimit: defaultLimit}
}

// Create issues a new key. The returned plaintext token exists only in
// this response; the store keeps its hash and a display prefix.
func (s *Service) Create(orgID, userID, name string, scopes []string, rateLimit, expiresInDays int) (*models.APIKey, string, error) {
	if name == "" {
		return nil, "", errors.Validation("name is required")
	}
	if len(scopes) == 0 {
		return nil, "", errors.Validation("at least one scope is required")
	}
	for _, scope := range scopes {
		if !IsValidScope(scope) {
			return nil, "", errors.Validation(fmt.Sprintf("unknown scope: %s", scope))
		}
	}
	if rateLimit <= 0 {
		rateLimit = s.defaultLimit
	}

	token, err := GenerateToken()
	if err != nil {
		return nil, "", errors.Internal("failed to generate token")
	}

	key := &models.APIKey{
		OrganizationID: orgID,
		CreatedBy:      userID,
		Name:           name,
		KeyHash:        HashToken(token),
		KeyPrefix:      DisplayPrefix(token),
		Scopes:         scopes,
		RateLimit:      rateLimit,
	}

	if expiresInDays > 0 {
		exp := time.Now().Add(time.Duration(expiresInDays) * 24 * time.Hour).Unix()
		key.ExpiresAt = &exp
	}

	if err := s.repo.Create(key); err != nil {
		log.Error().Err(err).Str("org_id", orgID).Msg("api key insert failed")
		return nil, "", errors.Internal("failed to create api key")
	}

	return key, token, nil
}

// Verify authenticates a presented token. Tokens without the expected
// prefix are rejected before any storage access. A successful
// verification updates last_used_at off the request path.
func (s *Service) Verify(token string) (*models.APIKey, error) {
	if !HasTokenFormat(token) {
		return nil, errors.Unauthorized("Invalid API key")
	}

	key, err := s.repo.GetByHash(HashToken(token))
	if err == sql.ErrNoRows {
		return nil, errors.Unauthorized("Invalid API key")
	}
	if err != nil {
		log.Error().Err(err).Msg("api key lookup failed")
		return nil, errors.Internal("failed to verify api key")
	}

	if !key.Active {
		return nil, errors.Unauthorized("Invalid API key")
	}
	if key.ExpiresAt != nil && *key.ExpiresAt < time.Now().Unix() {
		return nil, errors.Unauthorized("Invalid API key")
	}

	go func(id string) {
		if err := s.repo.UpdateLastUsed(id); err != nil {
			log.Warn().Err(err).Str("key_id", id).Msg("last_used update failed")
		}
	}(key.ID)

	return key, nil
}

// Revoke soft-deletes a key belonging to the given organization.
// Idempotent: revoking an already-revoked key succeeds.
func (s *Service) Revoke(orgID, keyID, revokedBy, reason string) error {
	key, err := s.repo.GetByID(keyID)
	if err == sql.ErrNoRows {
		return errors.NotFound("API key not found")
	}
	if err != nil {
		return errors.Internal("failed to load api key")
	}
	if key.OrganizationID != orgID {
		return errors.NotFound("API key not found")
	}
	if !key.Active {
		return nil
	}

	if err := s.repo.Revoke(keyID, revokedBy, reason); err != nil {
		return errors.Internal("failed to revoke api key")
	}

	log.Info().Str("key_id", keyID).Str("revoked_by", revokedBy).Msg("api key revoked")
	return nil
}

func (s *Service) ListByOrg(orgID string) ([]*models.APIKey, error) {
	keys, err := s.repo.ListByOrg(orgID)
	if err != nil {
		return nil, errors.Internal("failed to list api keys")
	}
	return keys, nil
}
