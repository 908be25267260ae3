package webhooks

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"

	"caelex/internal/pkg/errors"
	"caelex/internal/platform/models"
	"caelex/internal/platform/repositories"
)

// SecretPrefix marks webhook signing secrets.
const SecretPrefix = "whsec_"

// Registry manages webhook subscriptions. The signing secret is stored
// verbatim because the server must reproduce signatures on every
// delivery; reads only ever expose a redacted prefix.
type Registry struct {
	repo *repositories.WebhookRepository
}

func NewRegistry(repo *repositories.WebhookRepository) *Registry {
	return &Registry{repo: repo}
}

// Create registers a subscription and returns it with the plaintext
// secret. The secret is not retrievable afterwards.
func (r *Registry) Create(orgID, name, rawURL string, events []string, headers map[string]string) (*models.Webhook, string, error) {
	if name == "" {
		return nil, "", errors.Validation("name is required")
	}
	if err := validateURL(rawURL); err != nil {
		return nil, "", err
	}
	if len(events) == 0 {
		return nil, "", errors.Validation("at least one event type is required")
	}
	for _, e := range events {
		if !IsValidEvent(e) {
			return nil, "", errors.Validation(fmt.Sprintf("unknown event type: %s", e))
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, "", errors.Internal("failed to generate secret")
	}

	webhook := &models.Webhook{
		OrganizationID: orgID,
		Name:           name,
		URL:            rawURL,
		Events:         events,
		Secret:         secret,
		SecretPrefix:   redactSecret(secret),
		Headers:        headers,
	}

	if err := r.repo.Create(webhook); err != nil {
		log.Error().Err(err).Str("org_id", orgID).Msg("webhook insert failed")
		return nil, "", errors.Internal("failed to create webhook")
	}

	return webhook, secret, nil
}

// Get returns an org's webhook with the secret stripped.
func (r *Registry) Get(orgID, id string) (*models.Webhook, error) {
	webhook, err := r.repo.GetByID(id)
	if err != nil {
		return nil, errors.Internal("failed to load webhook")
	}
	if webhook == nil || webhook.OrganizationID != orgID {
		return nil, errors.NotFound("Webhook not found")
	}
	webhook.Secret = ""
	return webhook, nil
}

// List returns an org's webhooks with secrets stripped.
func (r *Registry) List(orgID string) ([]*models.Webhook, error) {
	webhooks, err := r.repo.ListByOrg(orgID)
	if err != nil {
		return nil, errors.Internal("failed to list webhooks")
	}
	for _, w := range webhooks {
		w.Secret = ""
	}
	return webhooks, nil
}

// Delete hard-removes a subscription. Delivery history stays behind
// for audit.
func (r *Registry) Delete(orgID, id string) error {
	webhook, err := r.repo.GetByID(id)
	if err != nil {
		return errors.Internal("failed to load webhook")
	}
	if webhook == nil || webhook.OrganizationID != orgID {
		return errors.NotFound("Webhook not found")
	}
	if err := r.repo.Delete(id); err != nil {
		return errors.Internal("failed to delete webhook")
	}
	log.Info().Str("webhook_id", id).Str("org_id", orgID).Msg("webhook deleted")
	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.Validation("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return errors.Validation("url must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Validation("url must use http or https")
	}
	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return SecretPrefix + hex.EncodeToString(buf), nil
}

// redactSecret keeps enough of the secret to recognize it in the UI,
// e.g. "whsec_ab12...yz".
func redactSecret(secret string) string {
	if len(secret) < 12 {
		return secret
	}
	return secret[:10] + "..." + secret[len(secret)-2:]
}
