package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"caelex/internal/platform/models"
)

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(webhook *models.Webhook) error {
	if webhook.ID == "" {
		webhook.ID = "wh_" + uuid.New().String()
	}
	webhook.CreatedAt = time.Now().Unix()
	webhook.UpdatedAt = webhook.CreatedAt
	webhook.Active = true

	eventsJSON, err := json.Marshal(webhook.Events)
	if err != nil {
		return err
	}
	headersJSON, err := json.Marshal(webhook.Headers)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhooks (id, organization_id, name, url, events, secret, secret_prefix, headers, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`
	_, err = r.db.Exec(query, webhook.ID, webhook.OrganizationID, webhook.Name, webhook.URL, string(eventsJSON), webhook.Secret, webhook.SecretPrefix, string(headersJSON), webhook.CreatedAt, webhook.UpdatedAt)
	return err
}

func (r *WebhookRepository) GetByID(id string) (*models.Webhook, error) {
	row := r.db.QueryRow(selectWebhook+` WHERE id = ?`, id)
	w, err := scanWebhook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

func (r *WebhookRepository) ListByOrg(orgID string) ([]*models.Webhook, error) {
	rows, err := r.db.Query(selectWebhook+` WHERE organization_id = ? ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// ListActiveByEvent returns the org's active subscriptions whose event
// set contains eventType or the wildcard. Matching happens in the app
// since events are stored as a JSON array.
func (r *WebhookRepository) ListActiveByEvent(orgID, eventType string) ([]*models.Webhook, error) {
	rows, err := r.db.Query(selectWebhook+` WHERE organization_id = ? AND active = 1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []*models.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		for _, e := range w.Events {
			if e == eventType || e == "*" {
				matched = append(matched, w)
				break
			}
		}
	}
	return matched, rows.Err()
}

// Delete hard-removes the subscription. Delivery history is kept for
// audit; webhook_deliveries carries no foreign key for that reason.
func (r *WebhookRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM webhooks WHERE id = ?`, id)
	return err
}

func (r *WebhookRepository) RecordSuccess(id string, at int64) error {
	_, err := r.db.Exec(`
		UPDATE webhooks
		SET success_count = success_count + 1, last_triggered_at = ?, last_success_at = ?, last_error = '', updated_at = ?
		WHERE id = ?
	`, at, at, time.Now().Unix(), id)
	return err
}

func (r *WebhookRepository) RecordFailure(id string, at int64, lastError string) error {
	_, err := r.db.Exec(`
		UPDATE webhooks
		SET failure_count = failure_count + 1, last_triggered_at = ?, last_failure_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, at, at, lastError, time.Now().Unix(), id)
	return err
}

const selectWebhook = `
	SELECT id, organization_id, name, url, events, secret, secret_prefix, headers, active,
	       success_count, failure_count, last_triggered_at, last_success_at, last_failure_at, last_error,
	       created_at, updated_at
	FROM webhooks`

func scanWebhook(row keyScanner) (*models.Webhook, error) {
	var w models.Webhook
	var eventsStr, headersStr string
	var lastTriggeredAt, lastSuccessAt, lastFailureAt sql.NullInt64
	var lastError sql.NullString

	err := row.Scan(&w.ID, &w.OrganizationID, &w.Name, &w.URL, &eventsStr, &w.Secret, &w.SecretPrefix, &headersStr, &w.Active,
		&w.SuccessCount, &w.FailureCount, &lastTriggeredAt, &lastSuccessAt, &lastFailureAt, &lastError,
		&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastTriggeredAt.Valid {
		w.LastTriggeredAt = &lastTriggeredAt.Int64
	}
	if lastSuccessAt.Valid {
		w.LastSuccessAt = &lastSuccessAt.Int64
	}
	if lastFailureAt.Valid {
		w.LastFailureAt = &lastFailureAt.Int64
	}
	if lastError.Valid {
		w.LastError = lastError.String
	}
	json.Unmarshal([]byte(eventsStr), &w.Events)
	json.Unmarshal([]byte(headersStr), &w.Headers)

	return &w, nil
}
