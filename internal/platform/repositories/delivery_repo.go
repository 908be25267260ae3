package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"caelex/internal/platform/models"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(d *models.WebhookDelivery) error {
	if d.ID == "" {
		d.ID = "whd_" + uuid.New().String()
	}
	d.CreatedAt = time.Now().Unix()
	d.UpdatedAt = d.CreatedAt
	if d.Status == "" {
		d.Status = models.DeliveryPending
	}

	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event_type, payload, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err := r.db.Exec(query, d.ID, d.WebhookID, d.EventType, string(d.Payload), d.Status, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DeliveryRepository) GetByID(id string) (*models.WebhookDelivery, error) {
	row := r.db.QueryRow(selectDelivery+` WHERE id = ?`, id)
	d, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *DeliveryRepository) ListByWebhook(webhookID string, limit, offset int) ([]*models.WebhookDelivery, error) {
	rows, err := r.db.Query(selectDelivery+`
		WHERE webhook_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`, webhookID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func (r *DeliveryRepository) CountByWebhook(webhookID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM webhook_deliveries WHERE webhook_id = ?`, webhookID).Scan(&count)
	return count, err
}

// RecordAttempt persists the outcome of one delivery attempt. The
// attempt counter only moves forward; the payload is never touched.
func (r *DeliveryRepository) RecordAttempt(id, status string, statusCode int, responseBody string, latencyMs int, errMsg string, nextRetryAt *int64) error {
	_, err := r.db.Exec(`
		UPDATE webhook_deliveries
		SET status = ?, status_code = ?, response_body = ?, latency_ms = ?, error = ?,
		    next_retry_at = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ?
	`, status, statusCode, responseBody, latencyMs, errMsg, nextRetryAt, time.Now().Unix(), id)
	return err
}

// Requeue moves a delivery into retrying with the given schedule. The
// fromStatus guard makes the transition conditional; it reports whether
// this caller won the transition.
func (r *DeliveryRepository) Requeue(id, fromStatus string, nextRetryAt int64) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE webhook_deliveries SET status = ?, next_retry_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.DeliveryRetrying, nextRetryAt, time.Now().Unix(), id, fromStatus)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListDue returns retrying deliveries whose next_retry_at has elapsed.
func (r *DeliveryRepository) ListDue(now int64, limit int) ([]*models.WebhookDelivery, error) {
	rows, err := r.db.Query(selectDelivery+`
		WHERE status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?
		ORDER BY next_retry_at ASC LIMIT ?`, models.DeliveryRetrying, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// Claim transitions a retrying delivery to in_flight. The conditional
// update is the serialization point: with several scheduler workers
// racing, exactly one sees RowsAffected == 1.
func (r *DeliveryRepository) Claim(id string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE webhook_deliveries SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.DeliveryInFlight, time.Now().Unix(), id, models.DeliveryRetrying)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ReapStuck moves deliveries that a crashed process left behind back
// to retrying: claimed in_flight rows and pending rows whose initial
// attempt never recorded an outcome.
func (r *DeliveryRepository) ReapStuck(updatedBefore int64) (int64, error) {
	now := time.Now().Unix()
	res, err := r.db.Exec(`
		UPDATE webhook_deliveries SET status = ?, next_retry_at = ?, updated_at = ?
		WHERE status IN (?, ?) AND updated_at < ?
	`, models.DeliveryRetrying, now, now, models.DeliveryInFlight, models.DeliveryPending, updatedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const selectDelivery = `
	SELECT id, webhook_id, event_type, payload, status, status_code, response_body,
	       latency_ms, attempts, next_retry_at, error, created_at, updated_at
	FROM webhook_deliveries`

func scanDelivery(row keyScanner) (*models.WebhookDelivery, error) {
	var d models.WebhookDelivery
	var payload string
	var statusCode, latencyMs sql.NullInt64
	var responseBody, errMsg sql.NullString
	var nextRetryAt sql.NullInt64

	err := row.Scan(&d.ID, &d.WebhookID, &d.EventType, &payload, &d.Status, &statusCode, &responseBody,
		&latencyMs, &d.Attempts, &nextRetryAt, &errMsg, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.Payload = []byte(payload)
	d.StatusCode = int(statusCode.Int64)
	d.ResponseBody = responseBody.String
	d.LatencyMs = int(latencyMs.Int64)
	if nextRetryAt.Valid {
		d.NextRetryAt = &nextRetryAt.Int64
	}
	d.Error = errMsg.String

	return &d, nil
}
