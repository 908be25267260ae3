package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"caelex/internal/pkg/errors"
	"caelex/internal/platform/config"
	"caelex/internal/platform/models"
	"caelex/internal/platform/repositories"
)

// maxResponseBody caps how much of a target's response is stored per
// attempt.
const maxResponseBody = 1024

// Dispatcher fans domain events out to matching subscriptions and
// performs signed HTTP delivery. Per-delivery state machine:
//
//	pending -> delivered
//	pending -> retrying -> ... -> delivered | failed
//
// A terminal failed delivery can be re-queued once per manual retry
// request, provided the owning webhook is still active.
type Dispatcher struct {
	webhooks    *repositories.WebhookRepository
	deliveries  *repositories.DeliveryRepository
	client      *http.Client
	backoff     BackoffPolicy
	maxAttempts int
}

func NewDispatcher(webhooks *repositories.WebhookRepository, deliveries *repositories.DeliveryRepository, cfg config.WebhooksConfig) *Dispatcher {
	return &Dispatcher{
		webhooks:   webhooks,
		deliveries: deliveries,
		client:     &http.Client{Timeout: cfg.DeliveryTimeout},
		backoff: BackoffPolicy{
			BaseDelay:      cfg.RetryBaseDelay,
			MaxDelay:       cfg.RetryMaxDelay,
			JitterFraction: cfg.RetryJitterFraction,
		},
		maxAttempts: cfg.MaxAttempts,
	}
}

// Dispatch creates one pending delivery per matching active
// subscription and delivers each concurrently. The event envelope is
// marshalled exactly once; those bytes are signed now and re-sent
// verbatim by every retry.
func (d *Dispatcher) Dispatch(ctx context.Context, orgID, eventType string, data interface{}) error {
	matched, err := d.webhooks.ListActiveByEvent(orgID, eventType)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("webhook lookup failed")
		return err
	}
	if len(matched) == 0 {
		return nil
	}

	event := &models.WebhookEvent{
		ID:        "evt_" + uuid.New().String(),
		Event:     eventType,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, webhook := range matched {
		delivery := &models.WebhookDelivery{
			WebhookID: webhook.ID,
			EventType: eventType,
			Payload:   payload,
			Status:    models.DeliveryPending,
		}
		if err := d.deliveries.Create(delivery); err != nil {
			log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("delivery insert failed")
			continue
		}

		go d.DeliverOnce(context.WithoutCancel(ctx), delivery, webhook)
	}

	return nil
}

// DeliverOnce performs a single signed delivery attempt and records
// the outcome. Failures are scheduled for retry until the attempt
// budget is spent, after which the delivery is terminally failed.
func (d *Dispatcher) DeliverOnce(ctx context.Context, delivery *models.WebhookDelivery, webhook *models.Webhook) {
	statusCode, respBody, latency, attemptErr := d.post(ctx, delivery, webhook)
	now := time.Now().Unix()
	attempt := delivery.Attempts + 1

	if attemptErr == nil && statusCode >= 200 && statusCode < 300 {
		if err := d.deliveries.RecordAttempt(delivery.ID, models.DeliveryDelivered, statusCode, respBody, latency, "", nil); err != nil {
			log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("delivery update failed")
		}
		if err := d.webhooks.RecordSuccess(webhook.ID, now); err != nil {
			log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("webhook counter update failed")
		}
		log.Debug().Str("delivery_id", delivery.ID).Int("status", statusCode).Msg("webhook delivered")
		return
	}

	errMsg := fmt.Sprintf("HTTP %d", statusCode)
	if attemptErr != nil {
		errMsg = attemptErr.Error()
	}

	if attempt < d.maxAttempts {
		retryAt := time.Now().Add(d.backoff.NextDelay(attempt)).Unix()
		if err := d.deliveries.RecordAttempt(delivery.ID, models.DeliveryRetrying, statusCode, respBody, latency, errMsg, &retryAt); err != nil {
			log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("delivery update failed")
		}
		log.Warn().Str("delivery_id", delivery.ID).Int("attempt", attempt).Str("error", errMsg).Msg("webhook delivery failed, retry scheduled")
		return
	}

	// Budget spent: terminal failure.
	if err := d.deliveries.RecordAttempt(delivery.ID, models.DeliveryFailed, statusCode, respBody, latency, errMsg, nil); err != nil {
		log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("delivery update failed")
	}
	if err := d.webhooks.RecordFailure(webhook.ID, now, errMsg); err != nil {
		log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("webhook counter update failed")
	}
	log.Warn().Str("delivery_id", delivery.ID).Int("attempts", attempt).Str("error", errMsg).Msg("webhook delivery permanently failed")
}

func (d *Dispatcher) post(ctx context.Context, delivery *models.WebhookDelivery, webhook *models.Webhook) (statusCode int, respBody string, latencyMs int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return 0, "", 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Caelex-Webhooks/1.0")
	req.Header.Set("X-Caelex-Signature", Sign(webhook.Secret, delivery.Payload))
	req.Header.Set("X-Caelex-Event", delivery.EventType)
	req.Header.Set("X-Caelex-Delivery", delivery.ID)
	for k, v := range webhook.Headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		return 0, "", latency, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return resp.StatusCode, string(body), latency, nil
}

// RetryManually re-queues a terminally failed delivery at the
// operator's request. The original payload bytes are reused; the
// owning webhook must still exist and be active.
func (d *Dispatcher) RetryManually(ctx context.Context, orgID, deliveryID string) (*models.WebhookDelivery, error) {
	delivery, err := d.deliveries.GetByID(deliveryID)
	if err != nil {
		return nil, errors.Internal("failed to load delivery")
	}
	if delivery == nil {
		return nil, errors.NotFound("Delivery not found")
	}

	webhook, err := d.webhooks.GetByID(delivery.WebhookID)
	if err != nil {
		return nil, errors.Internal("failed to load webhook")
	}
	if webhook == nil || webhook.OrganizationID != orgID {
		return nil, errors.NotFound("Delivery not found")
	}
	if !webhook.Active {
		return nil, errors.InvalidState("Webhook is not active")
	}
	if delivery.Status != models.DeliveryFailed {
		return nil, errors.InvalidState("Only failed deliveries can be retried")
	}

	// Conditional transition failed -> retrying; a concurrent manual
	// retry for the same delivery loses the race and errors out.
	won, err := d.deliveries.Requeue(deliveryID, models.DeliveryFailed, time.Now().Unix())
	if err != nil {
		return nil, errors.Internal("failed to requeue delivery")
	}
	if !won {
		return nil, errors.InvalidState("Delivery is already being retried")
	}

	// Claim it like a scheduler worker would, so a concurrently
	// running scheduler cannot pick up the same row.
	claimed, err := d.deliveries.Claim(deliveryID)
	if err != nil {
		return nil, errors.Internal("failed to claim delivery")
	}
	if claimed {
		delivery.Status = models.DeliveryInFlight
		d.DeliverOnce(ctx, delivery, webhook)
	}

	updated, err := d.deliveries.GetByID(deliveryID)
	if err != nil || updated == nil {
		return delivery, nil
	}
	return updated, nil
}
